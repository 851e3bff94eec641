package labs

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

func testCompany() *models.Company {
	return &models.Company{
		ID:         "c1",
		Name:       "StridePath",
		WebsiteURL: "stridepath.example/",
	}
}

func TestRunLabInRefinementModeUnknownLab(t *testing.T) {
	adapter := NewAdapter(NewRegistry(), NewCatalog(), nil)

	output := adapter.RunLabInRefinementMode(context.Background(), models.LabBrand, testCompany(), nil)

	if output.Success {
		t.Fatal("expected failed output for unregistered lab")
	}
	if !strings.Contains(output.Error, "unknown lab") {
		t.Errorf("unexpected error %q", output.Error)
	}
	if output.LabName != "Brand Lab" {
		t.Errorf("expected catalog name, got %q", output.LabName)
	}
	if output.RunID == "" {
		t.Error("expected run id even on failure")
	}
}

func TestRunLabInRefinementModeEngineFailure(t *testing.T) {
	registry := NewRegistry()
	registry.Register(models.LabSEO, EngineFunc(func(ctx context.Context, input EngineInput) (*EngineResult, error) {
		return &EngineResult{Success: false, Error: "crawler blocked"}, nil
	}))
	adapter := NewAdapter(registry, NewCatalog(), nil)

	output := adapter.RunLabInRefinementMode(context.Background(), models.LabSEO, testCompany(), nil)

	if output.Success {
		t.Fatal("expected failure")
	}
	if output.Error != "crawler blocked" {
		t.Errorf("unexpected error %q", output.Error)
	}
}

func TestRunLabInRefinementModeEngineError(t *testing.T) {
	registry := NewRegistry()
	registry.Register(models.LabSEO, EngineFunc(func(ctx context.Context, input EngineInput) (*EngineResult, error) {
		return nil, fmt.Errorf("network down")
	}))
	adapter := NewAdapter(registry, NewCatalog(), nil)

	output := adapter.RunLabInRefinementMode(context.Background(), models.LabSEO, testCompany(), nil)

	if output.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(output.Error, "network down") {
		t.Errorf("unexpected error %q", output.Error)
	}
}

func TestRunLabInRefinementModeProjections(t *testing.T) {
	var gotInput EngineInput
	registry := NewRegistry()
	registry.Register(models.LabBrand, EngineFunc(func(ctx context.Context, input EngineInput) (*EngineResult, error) {
		gotInput = input
		return &EngineResult{
			Success: true,
			Score:   72,
			Data: map[string]any{
				"positioning":     "Performance everyday shoes",
				"value_props":     []any{"comfort", "durability"},
				"business_model":  "DTC ecommerce",
				"summary":         "Solid positioning, weak messaging",
				"issues":          []any{"No messaging pillars documented"},
				"recommendations": []any{"Write a messaging house"},
			},
		}, nil
	}))
	adapter := NewAdapter(registry, NewCatalog(), nil)

	output := adapter.RunLabInRefinementMode(context.Background(), models.LabBrand, testCompany(), nil)

	if !output.Success {
		t.Fatalf("expected success, got error %q", output.Error)
	}
	if gotInput.WebsiteURL != "https://stridepath.example" {
		t.Errorf("expected normalized url, got %q", gotInput.WebsiteURL)
	}
	if output.Diagnostics.Score != 72 {
		t.Errorf("unexpected score %v", output.Diagnostics.Score)
	}
	if output.Diagnostics.Summary != "Solid positioning, weak messaging" {
		t.Errorf("unexpected summary %q", output.Diagnostics.Summary)
	}

	byPath := map[string]models.LabRefinedContext{}
	for _, refined := range output.RefinedContext {
		byPath[refined.Domain+"."+refined.Field] = refined
	}
	if _, ok := byPath["brand.positioning"]; !ok {
		t.Error("expected brand.positioning candidate")
	}
	if _, ok := byPath["identity.businessModel"]; !ok {
		t.Error("expected identity.businessModel candidate")
	}
}

func TestProjectInsightsCapsAndTruncation(t *testing.T) {
	longIssue := strings.Repeat("a", 150)
	longWin := strings.Repeat("b", 120)
	data := map[string]any{
		"issues": []any{
			"one", "two", "three", "four", "five", "six", "seven", longIssue,
		},
		"quick_wins": []any{"w1", "w2", "w3", "w4", longWin},
	}

	insights := projectInsights(data)

	issues := 0
	wins := 0
	for _, unit := range insights {
		switch unit.Kind {
		case models.InsightKindIssue:
			issues++
			if len(unit.Text) > 100 {
				t.Errorf("issue text over limit: %d chars", len(unit.Text))
			}
		case models.InsightKindQuickWin:
			wins++
			if len(unit.Text) > 80 {
				t.Errorf("quick win text over limit: %d chars", len(unit.Text))
			}
		}
	}
	if issues != 5 {
		t.Errorf("expected 5 issues, got %d", issues)
	}
	if wins != 3 {
		t.Errorf("expected 3 quick wins, got %d", wins)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	text := strings.Repeat("a", 99) + "日本語のテキスト"

	got := truncate(text, 100)

	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("expected 100 characters, got %d", n)
	}
	if !strings.HasSuffix(got, "日") {
		t.Errorf("expected truncation at a rune boundary, got suffix %q", got[len(got)-4:])
	}
	if short := truncate("short", 100); short != "short" {
		t.Errorf("short input changed: %q", short)
	}
}

func TestProjectInsightsObjectItems(t *testing.T) {
	data := map[string]any{
		"issues": []any{
			map[string]any{"title": "Slow LCP on mobile", "severity": "high"},
			map[string]any{"description": "Missing canonical tags", "priority": "low"},
			map[string]any{"irrelevant": true},
		},
	}

	insights := projectInsights(data)

	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(insights))
	}
	if insights[0].Text != "Slow LCP on mobile" || insights[0].Severity != models.SeverityHigh {
		t.Errorf("unexpected first insight %+v", insights[0])
	}
	if insights[1].Severity != models.SeverityLow {
		t.Errorf("unexpected severity %q", insights[1].Severity)
	}
}

func TestNormalizeWebsiteURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"stridepath.example", "https://stridepath.example"},
		{"https://StridePath.Example/", "https://stridepath.example"},
		{"http://stridepath.example/Path/Page", "http://stridepath.example/Path/Page"},
		{"  stridepath.example  ", "https://stridepath.example"},
	}
	for _, tc := range cases {
		if got := NormalizeWebsiteURL(tc.in); got != tc.want {
			t.Errorf("NormalizeWebsiteURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
