package merge

import (
	"testing"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

func TestMergeAppendsProvenance(t *testing.T) {
	graph := models.NewCompanyContextGraph("c1", "Acme")
	graph.Domains["brand"]["positioning"] = &models.ContextField{
		Value: "old positioning",
		Provenance: []models.ProvenanceEntry{
			{Source: "user", UpdatedAt: time.Now().AddDate(0, 0, -30), Confidence: 1.0},
			{Source: "bootstrap", UpdatedAt: time.Now().AddDate(0, 0, -60), Confidence: 0.5},
		},
	}

	result := Merge(graph, []models.LabRefinedContext{
		{Domain: "brand", Field: "positioning", Value: "new positioning", Confidence: 0.8},
	}, models.LabBrand)

	cell, _ := result.Graph.Field("brand", "positioning")
	if cell.Value != "new positioning" {
		t.Errorf("Expected new value, got %v", cell.Value)
	}
	if len(cell.Provenance) != 3 {
		t.Fatalf("Expected 3 provenance entries, got %d", len(cell.Provenance))
	}
	if cell.Provenance[0].Source != "brand_lab" {
		t.Errorf("Expected newest entry source brand_lab, got %s", cell.Provenance[0].Source)
	}
	if cell.Provenance[1].Source != "user" || cell.Provenance[2].Source != "bootstrap" {
		t.Error("History entries must be preserved in order")
	}
	if result.Applied != 1 {
		t.Errorf("Expected 1 applied write, got %d", result.Applied)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	graph := models.NewCompanyContextGraph("c1", "Acme")

	result := Merge(graph, []models.LabRefinedContext{
		{Domain: "seo", Field: "topKeywords", Value: []string{"crm"}, Confidence: 0.8},
	}, models.LabSEO)

	if _, ok := graph.Field("seo", "topKeywords"); ok {
		t.Error("Input graph must not be mutated")
	}
	if _, ok := result.Graph.Field("seo", "topKeywords"); !ok {
		t.Error("Clone must carry the applied write")
	}
}

func TestMergeSkipsUnknownDomain(t *testing.T) {
	graph := models.NewCompanyContextGraph("c1", "Acme")

	result := Merge(graph, []models.LabRefinedContext{
		{Domain: "madeUpDomain", Field: "x", Value: "y", Confidence: 0.8},
		{Domain: "brand", Field: "positioning", Value: "z", Confidence: 0.8},
	}, models.LabBrand)

	if result.Applied != 1 {
		t.Errorf("Expected 1 applied write, got %d", result.Applied)
	}
	if len(result.SkippedWrites) != 1 || result.SkippedWrites[0] != "madeUpDomain.x" {
		t.Errorf("Expected madeUpDomain.x skipped, got %v", result.SkippedWrites)
	}
	if len(result.Graph.Domains) != len(models.GraphDomains) {
		t.Error("Merge must never create domains")
	}
}

func TestDiffGraphs(t *testing.T) {
	before := models.NewCompanyContextGraph("c1", "Acme")
	before.Domains["brand"]["positioning"] = &models.ContextField{Value: "old"}
	before.Domains["brand"]["toneOfVoice"] = &models.ContextField{Value: "direct"}

	after := before.Clone()
	after.Domains["brand"]["positioning"].Value = "new"
	after.Domains["seo"]["topKeywords"] = &models.ContextField{Value: []string{"crm"}}

	updated, added := DiffGraphs(before, after)
	if updated != 1 {
		t.Errorf("Expected 1 updated field, got %d", updated)
	}
	if added != 1 {
		t.Errorf("Expected 1 added field, got %d", added)
	}
}

func TestDiffGraphsNilBefore(t *testing.T) {
	after := models.NewCompanyContextGraph("c1", "Acme")
	after.Domains["brand"]["positioning"] = &models.ContextField{Value: "x"}

	updated, added := DiffGraphs(nil, after)
	if updated != 0 || added != 1 {
		t.Errorf("Expected 0 updated / 1 added, got %d / %d", updated, added)
	}
}
