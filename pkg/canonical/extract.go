// Package canonical distills lab and GAP outputs into the restricted
// canonical context fields downstream strategy generation relies on.
// Proposals are quality-arbitrated and may never overwrite a confirmed
// value.
package canonical

import (
	"fmt"
	"strings"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// Field is one canonical field proposal.
type Field struct {
	Path       string  `json:"path"` // dotted "domain.field"
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// ExtractionResult groups the proposals from one source.
type ExtractionResult struct {
	Source string  `json:"source"`
	Fields []Field `json:"fields"`
}

// RejectedField pairs a discarded proposal with the arbitration reason.
type RejectedField struct {
	Field  Field  `json:"field"`
	Reason string `json:"reason"`
}

// GAPAllowedFields is the fixed allow-list of paths the full-GAP engine may
// propose. Competitive paths are deliberately absent: the competition gap
// runner is their sole writer.
var GAPAllowedFields = []string{
	"identity.businessModel",
	"identity.productOffer",
	"identity.primaryOffers",
	"audience.audienceSummary",
	"brand.brandIdentityNotes",
	"objectives.unknowns",
}

// Arbitration limits.
const (
	minConfidence = 0.5
	maxTextLen    = 2000
)

// canonicalKeys maps raw engine data keys to canonical field paths with a
// fixed per-key confidence.
var canonicalKeys = []struct {
	DataKey    string
	Path       string
	Confidence float64
}{
	{DataKey: "business_model", Path: "identity.businessModel", Confidence: 0.75},
	{DataKey: "product_offer", Path: "identity.productOffer", Confidence: 0.75},
	{DataKey: "primary_offers", Path: "identity.primaryOffers", Confidence: 0.70},
	{DataKey: "audience_summary", Path: "audience.audienceSummary", Confidence: 0.70},
	{DataKey: "icp_description", Path: "audience.audienceSummary", Confidence: 0.65},
	{DataKey: "brand_identity_notes", Path: "brand.brandIdentityNotes", Confidence: 0.70},
}

// ExtractFromLabOutputs pulls canonical field candidates from each lab's
// raw engine data.
func ExtractFromLabOutputs(outputs []models.LabRefinementOutput) []ExtractionResult {
	var results []ExtractionResult
	for _, output := range outputs {
		if !output.Success || output.RawEngineData == nil {
			continue
		}
		var fields []Field
		for _, key := range canonicalKeys {
			value, ok := output.RawEngineData[key.DataKey]
			if !ok || value == nil {
				continue
			}
			fields = append(fields, Field{
				Path:       key.Path,
				Value:      value,
				Confidence: key.Confidence,
				Source:     fmt.Sprintf("%s_lab", output.LabID),
			})
		}
		if len(fields) > 0 {
			results = append(results, ExtractionResult{
				Source: string(output.LabID),
				Fields: fields,
			})
		}
	}
	return results
}

// ExtractFromFullGap pulls canonical field candidates from the full-GAP
// structured output's extended fields.
func ExtractFromFullGap(findings *models.GAPStructuredOutput) ExtractionResult {
	result := ExtractionResult{Source: "gap_plan"}
	if findings == nil {
		return result
	}
	add := func(path string, value any, confidence float64) {
		result.Fields = append(result.Fields, Field{
			Path: path, Value: value, Confidence: confidence, Source: "gap_plan",
		})
	}
	if len(findings.PrimaryOffers) > 0 {
		add("identity.primaryOffers", toAnySlice(findings.PrimaryOffers), 0.70)
	}
	if findings.AudienceSummary != "" {
		add("audience.audienceSummary", findings.AudienceSummary, 0.70)
	}
	if findings.BrandIdentityNotes != "" {
		add("brand.brandIdentityNotes", findings.BrandIdentityNotes, 0.70)
	}
	if len(findings.Unknowns) > 0 {
		add("objectives.unknowns", toAnySlice(findings.Unknowns), 0.60)
	}
	return result
}

// MergeExtractionResults folds proposals from multiple sources into one
// proposal per path, arbitrated by confidence. Ties keep the earlier
// source.
func MergeExtractionResults(results []ExtractionResult) []Field {
	best := make(map[string]Field)
	var order []string
	for _, result := range results {
		for _, field := range result.Fields {
			existing, seen := best[field.Path]
			if !seen {
				order = append(order, field.Path)
				best[field.Path] = field
				continue
			}
			if field.Confidence > existing.Confidence {
				best[field.Path] = field
			}
		}
	}
	merged := make([]Field, 0, len(order))
	for _, path := range order {
		merged = append(merged, best[path])
	}
	return merged
}

// GetFieldsForGapToPropose filters full-GAP proposals down to paths that
// are both allow-listed and currently missing from the graph. GAP must
// never overwrite a confirmed value.
func GetFieldsForGapToPropose(graph *models.CompanyContextGraph, fields []Field) []Field {
	allowed := make(map[string]bool, len(GAPAllowedFields))
	for _, path := range GAPAllowedFields {
		allowed[path] = true
	}
	var proposals []Field
	for _, field := range fields {
		if !allowed[field.Path] {
			continue
		}
		if cell, ok := graph.FieldByPath(field.Path); ok && cell.IsPopulated() {
			continue
		}
		proposals = append(proposals, field)
	}
	return proposals
}

// CanonicalizeFindings applies quality arbitration to proposals: empty
// values, oversized text, and low-confidence candidates are rejected with
// reasons.
func CanonicalizeFindings(fields []Field) ([]Field, []RejectedField) {
	var accepted []Field
	var rejected []RejectedField
	for _, field := range fields {
		if field.Confidence < minConfidence {
			rejected = append(rejected, RejectedField{
				Field:  field,
				Reason: fmt.Sprintf("confidence %.2f below threshold %.2f", field.Confidence, minConfidence),
			})
			continue
		}
		switch v := field.Value.(type) {
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				rejected = append(rejected, RejectedField{Field: field, Reason: "empty value"})
				continue
			}
			if len(trimmed) > maxTextLen {
				rejected = append(rejected, RejectedField{
					Field:  field,
					Reason: fmt.Sprintf("text exceeds %d characters", maxTextLen),
				})
				continue
			}
			field.Value = trimmed
		case []any:
			if len(v) == 0 {
				rejected = append(rejected, RejectedField{Field: field, Reason: "empty list"})
				continue
			}
		case nil:
			rejected = append(rejected, RejectedField{Field: field, Reason: "nil value"})
			continue
		}
		accepted = append(accepted, field)
	}
	return accepted, rejected
}

// UpsertContextFields writes canonical proposals into the graph, prepending
// provenance. Populated cells are left untouched; writes into nonexistent
// domains are skipped. Returns the number of fields written.
func UpsertContextFields(graph *models.CompanyContextGraph, fields []Field, now time.Time) int {
	written := 0
	for _, field := range fields {
		domainName, fieldName, ok := models.SplitFieldPath(field.Path)
		if !ok {
			continue
		}
		domain, ok := graph.Domains[domainName]
		if !ok {
			continue
		}
		if existing, present := domain[fieldName]; present && existing.IsPopulated() {
			// Confirmed values win over canonical proposals.
			continue
		}
		var history []models.ProvenanceEntry
		if existing, present := domain[fieldName]; present && existing != nil {
			history = existing.Provenance
		}
		domain[fieldName] = &models.ContextField{
			Value: field.Value,
			Provenance: append([]models.ProvenanceEntry{{
				Source:     field.Source,
				UpdatedAt:  now.UTC(),
				Confidence: field.Confidence,
				Notes:      "canonical extraction",
			}}, history...),
		}
		written++
	}
	return written
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
