package models

import (
	"strings"
	"time"
)

// Context graph domain names. Every graph carries all domains; labs and the
// orchestrator only ever write into these.
const (
	DomainBrand            = "brand"
	DomainAudience         = "audience"
	DomainSEO              = "seo"
	DomainCompetitive      = "competitive"
	DomainWebsite          = "website"
	DomainOps              = "ops"
	DomainDigitalInfra     = "digitalInfra"
	DomainCreative         = "creative"
	DomainPerformanceMedia = "performanceMedia"
	DomainIdentity         = "identity"
	DomainObjectives       = "objectives"
)

// GraphDomains lists every context domain in a stable order.
var GraphDomains = []string{
	DomainBrand,
	DomainAudience,
	DomainSEO,
	DomainCompetitive,
	DomainWebsite,
	DomainOps,
	DomainDigitalInfra,
	DomainCreative,
	DomainPerformanceMedia,
	DomainIdentity,
	DomainObjectives,
}

// ProvenanceEntry records who/what set a field value, when, and with what
// confidence. Entries are ordered newest-first; the first entry is the
// current one.
type ProvenanceEntry struct {
	Source       string    `json:"source"`
	UpdatedAt    time.Time `json:"updated_at"`
	Confidence   float64   `json:"confidence"`
	Notes        string    `json:"notes,omitempty"`
	ValidForDays int       `json:"valid_for_days,omitempty"`
}

// ContextField is a single cell of the context graph: a value plus its
// append-only provenance history.
type ContextField struct {
	Value      any               `json:"value"`
	Provenance []ProvenanceEntry `json:"provenance"`
}

// IsPopulated reports whether the field holds a usable value. Empty strings
// (after trimming) and empty slices do not count.
func (f *ContextField) IsPopulated() bool {
	if f == nil || f.Value == nil {
		return false
	}
	switch v := f.Value.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// CurrentProvenance returns the newest provenance entry, or nil when the
// field has no history. A populated field without provenance must be treated
// as stale by callers.
func (f *ContextField) CurrentProvenance() *ProvenanceEntry {
	if f == nil || len(f.Provenance) == 0 {
		return nil
	}
	return &f.Provenance[0]
}

// ContextDomain maps field names to cells within one domain.
type ContextDomain map[string]*ContextField

// CompanyContextGraph is the per-company accumulated knowledge base.
// Version increases on every save so concurrent last-write-wins races are
// observable in snapshots and audit logs.
type CompanyContextGraph struct {
	CompanyID   string                   `json:"company_id"`
	CompanyName string                   `json:"company_name"`
	Version     int64                    `json:"version"`
	Domains     map[string]ContextDomain `json:"domains"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// NewCompanyContextGraph creates an empty graph with every domain present.
func NewCompanyContextGraph(companyID, companyName string) *CompanyContextGraph {
	domains := make(map[string]ContextDomain, len(GraphDomains))
	for _, d := range GraphDomains {
		domains[d] = make(ContextDomain)
	}
	now := time.Now().UTC()
	return &CompanyContextGraph{
		CompanyID:   companyID,
		CompanyName: companyName,
		Version:     0,
		Domains:     domains,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Field looks up a cell by domain and field name.
func (g *CompanyContextGraph) Field(domain, field string) (*ContextField, bool) {
	if g == nil {
		return nil, false
	}
	d, ok := g.Domains[domain]
	if !ok {
		return nil, false
	}
	f, ok := d[field]
	return f, ok
}

// FieldByPath looks up a cell by a dotted "domain.field" path.
func (g *CompanyContextGraph) FieldByPath(path string) (*ContextField, bool) {
	domain, field, ok := SplitFieldPath(path)
	if !ok {
		return nil, false
	}
	return g.Field(domain, field)
}

// SplitFieldPath splits a dotted "domain.field" path into its parts.
func SplitFieldPath(path string) (domain, field string, ok bool) {
	idx := strings.Index(path, ".")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", false
	}
	return path[:idx], path[idx+1:], true
}

// Clone returns a deep copy of the graph. The copy shares no mutable state
// with the original, so callers can fold candidate writes into a working
// copy without touching the committed graph.
func (g *CompanyContextGraph) Clone() *CompanyContextGraph {
	if g == nil {
		return nil
	}
	clone := &CompanyContextGraph{
		CompanyID:   g.CompanyID,
		CompanyName: g.CompanyName,
		Version:     g.Version,
		Domains:     make(map[string]ContextDomain, len(g.Domains)),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
	for name, domain := range g.Domains {
		cloned := make(ContextDomain, len(domain))
		for field, cell := range domain {
			if cell == nil {
				cloned[field] = nil
				continue
			}
			prov := make([]ProvenanceEntry, len(cell.Provenance))
			copy(prov, cell.Provenance)
			cloned[field] = &ContextField{
				Value:      cloneValue(cell.Value),
				Provenance: prov,
			}
		}
		clone.Domains[name] = cloned
	}
	return clone
}

// cloneValue deep-copies the JSON-shaped values the graph stores. Scalars
// are returned as-is.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return val
	}
}
