// Package merge folds lab refinement outputs into a context graph under
// append-only provenance rules.
package merge

import (
	"fmt"
	"reflect"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// Result reports what a merge did. SkippedWrites lists "domain.field" paths
// whose target domain does not exist on the graph; they are dropped by
// policy (forward-compatible, ignore unknown) but counted so drift between
// the field registry and the graph schema stays visible.
type Result struct {
	Graph         *models.CompanyContextGraph
	Applied       int
	SkippedWrites []string
}

// Merge folds refined context candidates into a deep clone of the graph.
// The input graph is never mutated. Each applied write prepends a new
// provenance entry, so the newest entry is always first and history is
// never replaced.
func Merge(graph *models.CompanyContextGraph, refined []models.LabRefinedContext, sourceLab models.LabID) Result {
	clone := graph.Clone()
	result := Result{Graph: clone}
	now := time.Now().UTC()
	source := fmt.Sprintf("%s_lab", sourceLab)

	for _, candidate := range refined {
		domain, ok := clone.Domains[candidate.Domain]
		if !ok {
			// No domain auto-creation.
			result.SkippedWrites = append(result.SkippedWrites,
				candidate.Domain+"."+candidate.Field)
			continue
		}

		entry := models.ProvenanceEntry{
			Source:     source,
			UpdatedAt:  now,
			Confidence: candidate.Confidence,
			Notes:      fmt.Sprintf("refinement run by %s", sourceLab),
		}

		var history []models.ProvenanceEntry
		if existing, present := domain[candidate.Field]; present && existing != nil {
			history = existing.Provenance
		}
		domain[candidate.Field] = &models.ContextField{
			Value:      candidate.Value,
			Provenance: append([]models.ProvenanceEntry{entry}, history...),
		}
		result.Applied++
	}

	return result
}

// DiffGraphs structurally compares two graphs and counts fields whose value
// changed and fields newly added. This replaces the serialized-substring
// change heuristic of earlier revisions with exact counts.
func DiffGraphs(before, after *models.CompanyContextGraph) (updated, added int) {
	if after == nil {
		return 0, 0
	}
	for domainName, afterDomain := range after.Domains {
		var beforeDomain models.ContextDomain
		if before != nil {
			beforeDomain = before.Domains[domainName]
		}
		for fieldName, afterCell := range afterDomain {
			if afterCell == nil {
				continue
			}
			var beforeCell *models.ContextField
			if beforeDomain != nil {
				beforeCell = beforeDomain[fieldName]
			}
			if beforeCell == nil {
				if afterCell.IsPopulated() {
					added++
				}
				continue
			}
			if !reflect.DeepEqual(beforeCell.Value, afterCell.Value) {
				updated++
			}
		}
	}
	return updated, added
}
