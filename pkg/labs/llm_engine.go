package labs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/ai"
	"github.com/growthdesk/growthdesk-go/utils"
)

const (
	fetchTimeout     = 15 * time.Second
	maxPageSnippet   = 6000 // characters of homepage HTML passed to the model
	maxRobotsSnippet = 500
)

// LLMEngine is a generic lab engine: it gathers lightweight site signals,
// prompts the LLM for a structured analysis, and returns the parsed JSON as
// the engine data payload. One instance is registered per lab id.
type LLMEngine struct {
	labID   string
	labName string
	keys    []string
	client  ai.Client
	http    *http.Client
	logger  *utils.Logger
}

// NewLLMEngine creates an engine for one lab. Keys are the data payload
// fields the model is asked to produce, in addition to the common
// score/summary/issues/recommendations/quick_wins shape.
func NewLLMEngine(labID, labName string, keys []string, client ai.Client) *LLMEngine {
	return &LLMEngine{
		labID:   labID,
		labName: labName,
		keys:    keys,
		client:  client,
		http:    &http.Client{Timeout: fetchTimeout},
		logger:  utils.GetLogger(),
	}
}

// RegisterLLMEngines registers an LLM engine for every cataloged lab.
func RegisterLLMEngines(registry *Registry, catalog *Catalog, client ai.Client) {
	for _, meta := range catalog.All() {
		keys := make([]string, 0, len(refinementProjections[meta.ID]))
		for _, proj := range refinementProjections[meta.ID] {
			keys = append(keys, proj.DataKey)
		}
		registry.Register(meta.ID, NewLLMEngine(string(meta.ID), meta.Name, keys, client))
	}
}

// Run implements Engine.
func (e *LLMEngine) Run(ctx context.Context, input EngineInput) (*EngineResult, error) {
	signals := e.gatherSiteSignals(ctx, input.WebsiteURL)

	prompt := e.buildPrompt(input, signals)
	resp, err := e.client.Complete(ctx, ai.Request{
		SystemMsg: fmt.Sprintf(
			"You are the %s analyst of a marketing agency. Respond with a single JSON object and nothing else.",
			e.labName),
		Messages: []ai.Message{{Role: "user", Content: prompt}},
		JSONMode: true,
	})
	if err != nil {
		return &EngineResult{Success: false, Error: fmt.Sprintf("%s engine call failed: %v", e.labID, err)}, nil
	}

	data, err := parseEngineJSON(resp.Content)
	if err != nil {
		return &EngineResult{Success: false, Error: fmt.Sprintf("%s engine returned unparseable output: %v", e.labID, err)}, nil
	}

	score := 0.0
	if raw, ok := data["score"].(float64); ok {
		score = raw
	}

	return &EngineResult{Success: true, Data: data, Score: score}, nil
}

// siteSignals are the independent leaf fetches gathered before the analysis
// call. Each fetch fails individually into a safe default; the join never
// blocks on a single failure.
type siteSignals struct {
	homepage string
	robots   string
}

func (e *LLMEngine) gatherSiteSignals(ctx context.Context, websiteURL string) siteSignals {
	if websiteURL == "" {
		return siteSignals{}
	}

	var signals siteSignals
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		signals.homepage = e.fetchSnippet(ctx, websiteURL, maxPageSnippet)
	}()
	go func() {
		defer wg.Done()
		signals.robots = e.fetchSnippet(ctx, websiteURL+"/robots.txt", maxRobotsSnippet)
	}()
	wg.Wait()

	return signals
}

// fetchSnippet fetches a URL and returns at most max characters of the
// body. Any failure yields an empty string.
func (e *LLMEngine) fetchSnippet(ctx context.Context, url string, max int) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	resp, err := e.http.Do(req)
	if err != nil {
		e.logger.Debug("Site signal fetch failed",
			utils.Component("labs"),
			utils.String("url", url),
			utils.String("error", err.Error()))
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(max)*4))
	if err != nil {
		return ""
	}
	text := string(body)
	if len(text) > max {
		text = text[:max]
	}
	return text
}

func (e *LLMEngine) buildPrompt(input EngineInput, signals siteSignals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the company below for the %s.\n\n", e.labName)
	fmt.Fprintf(&b, "Company: %s\n", input.Company.Name)
	if input.WebsiteURL != "" {
		fmt.Fprintf(&b, "Website: %s\n", input.WebsiteURL)
	}
	if input.Company.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", input.Company.Industry)
	}
	if input.Company.BusinessModel != "" {
		fmt.Fprintf(&b, "Business model: %s\n", input.Company.BusinessModel)
	}
	if signals.homepage != "" {
		fmt.Fprintf(&b, "\nHomepage HTML (truncated):\n%s\n", signals.homepage)
	}
	if signals.robots != "" {
		fmt.Fprintf(&b, "\nrobots.txt (truncated):\n%s\n", signals.robots)
	}

	b.WriteString("\nReturn a JSON object with these keys:\n")
	b.WriteString(`- "score": number 0-100` + "\n")
	b.WriteString(`- "summary": one-paragraph assessment` + "\n")
	b.WriteString(`- "issues": array of {"title", "severity"} objects` + "\n")
	b.WriteString(`- "recommendations": array of strings` + "\n")
	b.WriteString(`- "quick_wins": array of {"title", "impact"} objects` + "\n")
	for _, key := range e.keys {
		fmt.Fprintf(&b, "- %q\n", key)
	}
	b.WriteString("Use null for anything you cannot determine from the provided material.\n")
	return b.String()
}

// parseEngineJSON parses a model response into a data map, tolerating
// markdown code fences around the JSON object.
func parseEngineJSON(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return data, nil
}
