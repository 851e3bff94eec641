package health

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// FreshnessThresholdDays is the age beyond which a populated field counts as
// stale.
const FreshnessThresholdDays = 90

// bootstrapCompletenessThreshold is the completeness score below which a
// full bootstrap run is recommended.
const bootstrapCompletenessThreshold = 30

// staleRefreshThreshold is the stale-field count above which a refresh run
// is recommended.
const staleRefreshThreshold = 5

// CriticalFields lists the dotted field paths a usable context graph must
// have populated.
var CriticalFields = []string{
	"brand.positioning",
	"brand.valueProps",
	"brand.messagingPillars",
	"audience.primarySegments",
	"audience.icpDescription",
	"audience.painPoints",
	"seo.topKeywords",
	"seo.organicTrafficTrend",
	"competitive.competitors",
	"competitive.positionSummary",
	"website.conversionPath",
	"website.performanceScore",
	"ops.salesMotion",
	"ops.crmStack",
	"digitalInfra.analyticsSetup",
	"digitalInfra.techStack",
	"performanceMedia.activeChannels",
	"performanceMedia.blendedCpa",
	"identity.businessModel",
	"identity.productOffer",
	"objectives.primaryGoal",
}

// Assessor computes context health assessments. Pure over its inputs; the
// clock is injectable for tests.
type Assessor struct {
	catalog *labs.Catalog
	now     func() time.Time
}

// NewAssessor creates an assessor backed by the given lab catalog.
func NewAssessor(catalog *labs.Catalog) *Assessor {
	return &Assessor{catalog: catalog, now: time.Now}
}

// WithClock returns a copy of the assessor using the given clock. Test hook.
func (a *Assessor) WithClock(now func() time.Time) *Assessor {
	return &Assessor{catalog: a.catalog, now: now}
}

// Assess computes completeness and freshness for a graph snapshot and lists
// missing critical and stale fields. A nil graph yields a zeroed assessment
// with every critical field missing.
func (a *Assessor) Assess(graph *models.CompanyContextGraph) models.ContextHealthAssessment {
	if graph == nil {
		return models.ContextHealthAssessment{
			Completeness:          0,
			Freshness:             0,
			MissingCriticalFields: append([]string(nil), CriticalFields...),
			StaleFields:           []string{},
			StaleSections:         []string{},
			Recommendations: []string{
				"No context graph exists yet; run a full GAP bootstrap to build one",
			},
		}
	}

	now := a.now()
	staleBefore := now.AddDate(0, 0, -FreshnessThresholdDays)

	populated := 0
	fresh := 0
	var staleFields []string
	staleSectionSet := make(map[string]bool)
	populatedPaths := make(map[string]bool)
	totalPaths := make(map[string]bool)

	for _, domainName := range models.GraphDomains {
		domain, ok := graph.Domains[domainName]
		if !ok {
			continue
		}
		fieldNames := make([]string, 0, len(domain))
		for name := range domain {
			fieldNames = append(fieldNames, name)
		}
		sort.Strings(fieldNames)

		for _, fieldName := range fieldNames {
			path := domainName + "." + fieldName
			totalPaths[path] = true

			cell := domain[fieldName]
			if !cell.IsPopulated() {
				continue
			}
			populated++
			populatedPaths[path] = true

			// No provenance means stale regardless of value.
			prov := cell.CurrentProvenance()
			if prov == nil || prov.UpdatedAt.Before(staleBefore) {
				staleFields = append(staleFields, path)
				staleSectionSet[domainName] = true
				continue
			}
			fresh++
		}
	}

	var missingCritical []string
	for _, path := range CriticalFields {
		totalPaths[path] = true
		if !populatedPaths[path] {
			missingCritical = append(missingCritical, path)
		}
	}

	total := len(totalPaths)
	completeness := 0
	if total > 0 {
		completeness = roundPct(populated, total)
	}
	freshness := 0
	if populated > 0 {
		freshness = roundPct(fresh, populated)
	}

	staleSections := make([]string, 0, len(staleSectionSet))
	for section := range staleSectionSet {
		staleSections = append(staleSections, section)
	}
	sort.Strings(staleSections)

	assessment := models.ContextHealthAssessment{
		Completeness:          completeness,
		Freshness:             freshness,
		MissingCriticalFields: emptyIfNil(missingCritical),
		StaleFields:           emptyIfNil(staleFields),
		StaleSections:         staleSections,
	}
	assessment.Recommendations = a.recommendations(assessment)
	return assessment
}

// recommendations deterministically maps an assessment to operator guidance.
func (a *Assessor) recommendations(assessment models.ContextHealthAssessment) []string {
	var recs []string

	// Group missing critical fields by their owning lab.
	byLab := make(map[models.LabID][]string)
	var labOrder []models.LabID
	for _, path := range assessment.MissingCriticalFields {
		labID, ok := a.catalog.FieldOwner(path)
		if !ok {
			continue
		}
		if _, seen := byLab[labID]; !seen {
			labOrder = append(labOrder, labID)
		}
		_, field, _ := models.SplitFieldPath(path)
		byLab[labID] = append(byLab[labID], field)
	}
	sort.Slice(labOrder, func(i, j int) bool { return labOrder[i] < labOrder[j] })
	for _, labID := range labOrder {
		recs = append(recs, fmt.Sprintf("Run %s to populate: %s",
			a.catalog.LabName(labID), strings.Join(byLab[labID], ", ")))
	}

	if len(assessment.StaleFields) > staleRefreshThreshold {
		recs = append(recs, fmt.Sprintf(
			"%d fields are older than %d days; schedule a context refresh run",
			len(assessment.StaleFields), FreshnessThresholdDays))
	}
	if assessment.Completeness < bootstrapCompletenessThreshold {
		recs = append(recs, "Context graph is sparse; run a full GAP bootstrap")
	}
	return recs
}

// QuickHealthScore collapses a full assessment into a single 0-100 score.
func (a *Assessor) QuickHealthScore(graph *models.CompanyContextGraph) int {
	return a.Assess(graph).QuickScore()
}

func roundPct(part, whole int) int {
	return int(float64(part)/float64(whole)*100 + 0.5)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
