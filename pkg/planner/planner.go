package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/utils"
)

// ReasonForced marks plan items added by request rather than by need.
const ReasonForced = "Forced by request"

// ReasonFullRefresh marks plan items produced by full-refresh mode.
const ReasonFullRefresh = "Full refresh"

// Planner maps missing and stale context fields to the labs responsible for
// them and builds a prioritized execution plan.
type Planner struct {
	catalog *labs.Catalog
	logger  *utils.Logger
}

// NewPlanner creates a planner backed by the given lab catalog.
func NewPlanner(catalog *labs.Catalog) *Planner {
	return &Planner{catalog: catalog, logger: utils.GetLogger()}
}

// Plan builds an execution plan from a health assessment. Fields without a
// registered owner lab are skipped but surfaced on the plan so registry
// drift is observable.
func (p *Planner) Plan(health models.ContextHealthAssessment, forceLabs, skipLabs []models.LabID) *models.LabRunPlan {
	skip := make(map[models.LabID]bool, len(skipLabs))
	for _, id := range skipLabs {
		skip[id] = true
	}

	// Union of missing critical and stale fields, first occurrence wins.
	var considered []string
	seen := make(map[string]bool)
	for _, path := range health.MissingCriticalFields {
		if !seen[path] {
			seen[path] = true
			considered = append(considered, path)
		}
	}
	for _, path := range health.StaleFields {
		if !seen[path] {
			seen[path] = true
			considered = append(considered, path)
		}
	}

	fieldsByLab := make(map[models.LabID][]string)
	var labOrder []models.LabID
	var unmapped []string
	for _, path := range considered {
		labID, ok := p.catalog.FieldOwner(path)
		if !ok {
			unmapped = append(unmapped, path)
			continue
		}
		if skip[labID] {
			continue
		}
		if _, present := fieldsByLab[labID]; !present {
			labOrder = append(labOrder, labID)
		}
		_, field, _ := models.SplitFieldPath(path)
		fieldsByLab[labID] = append(fieldsByLab[labID], field)
	}

	if len(unmapped) > 0 {
		p.logger.Warn("Fields without a registered owner lab were skipped from planning",
			utils.Component("planner"),
			utils.Int("count", len(unmapped)),
			utils.String("fields", strings.Join(unmapped, ", ")))
	}

	var items []models.LabRunPlanItem
	for _, labID := range labOrder {
		meta, ok := p.catalog.Lab(labID)
		if !ok {
			continue
		}
		fields := fieldsByLab[labID]
		items = append(items, models.LabRunPlanItem{
			LabID:               labID,
			LabName:             meta.Name,
			Reason:              fmt.Sprintf("Missing or stale fields: %s", strings.Join(fields, ", ")),
			FieldsToFill:        fields,
			Priority:            meta.Priority,
			EstimatedDurationMs: meta.EstimatedDurationMs,
		})
	}

	// Forced labs not already planned join with an empty field list.
	planned := make(map[models.LabID]bool, len(items))
	for _, item := range items {
		planned[item.LabID] = true
	}
	for _, labID := range forceLabs {
		if planned[labID] || skip[labID] {
			continue
		}
		meta, ok := p.catalog.Lab(labID)
		if !ok {
			continue
		}
		items = append(items, models.LabRunPlanItem{
			LabID:               labID,
			LabName:             meta.Name,
			Reason:              ReasonForced,
			FieldsToFill:        []string{},
			Priority:            meta.Priority,
			EstimatedDurationMs: meta.EstimatedDurationMs,
		})
		planned[labID] = true
	}

	// Lower priority number runs first; ties keep insertion order.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority < items[j].Priority
	})

	var totalDuration int64
	for _, item := range items {
		totalDuration += item.EstimatedDurationMs
	}

	return &models.LabRunPlan{
		Items:                    items,
		TotalEstimatedDurationMs: totalDuration,
		MissingFieldsCount:       len(considered),
		UnmappedFields:           unmapped,
	}
}

// FullRefreshPlan bypasses health entirely and plans every known lab except
// those skipped.
func (p *Planner) FullRefreshPlan(skipLabs []models.LabID) *models.LabRunPlan {
	skip := make(map[models.LabID]bool, len(skipLabs))
	for _, id := range skipLabs {
		skip[id] = true
	}

	var items []models.LabRunPlanItem
	var totalDuration int64
	for _, meta := range p.catalog.All() {
		if skip[meta.ID] {
			continue
		}
		items = append(items, models.LabRunPlanItem{
			LabID:               meta.ID,
			LabName:             meta.Name,
			Reason:              ReasonFullRefresh,
			FieldsToFill:        append([]string(nil), meta.Fields...),
			Priority:            meta.Priority,
			EstimatedDurationMs: meta.EstimatedDurationMs,
		})
		totalDuration += meta.EstimatedDurationMs
	}

	return &models.LabRunPlan{
		Items:                    items,
		TotalEstimatedDurationMs: totalDuration,
		MissingFieldsCount:       0,
	}
}
