package labs

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// LabMeta is the static catalog entry for one lab: display name, execution
// priority (1 = highest), a fixed duration estimate, and the dotted
// "domain.field" paths the lab is responsible for filling.
type LabMeta struct {
	ID                  models.LabID `yaml:"id"`
	Name                string       `yaml:"name"`
	Priority            int          `yaml:"priority"`
	EstimatedDurationMs int64        `yaml:"estimated_duration_ms"`
	Fields              []string     `yaml:"fields"`
}

// defaultCatalog is the built-in lab registry. Priorities and duration
// estimates are operational tuning values, not derived.
var defaultCatalog = []LabMeta{
	{
		ID: models.LabAudience, Name: "Audience Lab", Priority: 1, EstimatedDurationMs: 45000,
		Fields: []string{
			"audience.primarySegments", "audience.icpDescription", "audience.painPoints",
			"audience.buyingTriggers",
		},
	},
	{
		ID: models.LabBrand, Name: "Brand Lab", Priority: 2, EstimatedDurationMs: 60000,
		Fields: []string{
			"brand.positioning", "brand.valueProps", "brand.messagingPillars",
			"brand.toneOfVoice", "identity.businessModel", "identity.productOffer",
		},
	},
	{
		ID: models.LabWebsite, Name: "Website Lab", Priority: 3, EstimatedDurationMs: 50000,
		Fields: []string{
			"website.conversionPath", "website.performanceScore", "website.uxIssues",
		},
	},
	{
		ID: models.LabCompetitor, Name: "Competition Lab", Priority: 4, EstimatedDurationMs: 90000,
		Fields: []string{
			"competitive.competitors", "competitive.positionSummary", "competitive.differentiators",
		},
	},
	{
		ID: models.LabSEO, Name: "SEO Lab", Priority: 5, EstimatedDurationMs: 55000,
		Fields: []string{
			"seo.topKeywords", "seo.organicTrafficTrend", "seo.technicalIssues",
		},
	},
	{
		ID: models.LabContent, Name: "Content Lab", Priority: 6, EstimatedDurationMs: 40000,
		Fields: []string{
			"creative.contentThemes", "creative.contentGaps",
		},
	},
	{
		ID: models.LabDemand, Name: "Demand Lab", Priority: 7, EstimatedDurationMs: 45000,
		Fields: []string{
			"performanceMedia.activeChannels", "performanceMedia.blendedCpa",
			"objectives.primaryGoal", "objectives.growthTargets",
		},
	},
	{
		ID: models.LabOps, Name: "Ops Lab", Priority: 8, EstimatedDurationMs: 35000,
		Fields: []string{
			"ops.salesMotion", "ops.crmStack", "digitalInfra.analyticsSetup",
			"digitalInfra.techStack",
		},
	},
	{
		ID: models.LabCreative, Name: "Creative Lab", Priority: 9, EstimatedDurationMs: 40000,
		Fields: []string{
			"creative.adCreativeThemes", "creative.visualIdentityNotes",
		},
	},
	{
		ID: models.LabMedia, Name: "Media Lab", Priority: 10, EstimatedDurationMs: 45000,
		Fields: []string{
			"performanceMedia.channelMix", "performanceMedia.spendAllocation",
		},
	},
	{
		ID: models.LabUX, Name: "UX Lab", Priority: 11, EstimatedDurationMs: 40000,
		Fields: []string{
			"website.accessibilityScore", "website.mobileExperience",
		},
	},
}

// Catalog provides lab metadata lookups and the field-to-lab registry.
type Catalog struct {
	labs       map[models.LabID]LabMeta
	fieldOwner map[string]models.LabID
	ordered    []LabMeta
}

// NewCatalog builds the default lab catalog.
func NewCatalog() *Catalog {
	return buildCatalog(defaultCatalog)
}

// LoadCatalog builds a catalog from the defaults overlaid with a YAML
// overrides file. Unknown lab ids in the file are rejected.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lab catalog: %w", err)
	}

	var overrides []LabMeta
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse lab catalog: %w", err)
	}

	known := make(map[models.LabID]int, len(defaultCatalog))
	merged := append([]LabMeta(nil), defaultCatalog...)
	for i, meta := range merged {
		known[meta.ID] = i
	}
	for _, override := range overrides {
		idx, ok := known[override.ID]
		if !ok {
			return nil, fmt.Errorf("unknown lab id in catalog overrides: %s", override.ID)
		}
		if override.Name != "" {
			merged[idx].Name = override.Name
		}
		if override.Priority > 0 {
			merged[idx].Priority = override.Priority
		}
		if override.EstimatedDurationMs > 0 {
			merged[idx].EstimatedDurationMs = override.EstimatedDurationMs
		}
		if len(override.Fields) > 0 {
			merged[idx].Fields = override.Fields
		}
	}

	return buildCatalog(merged), nil
}

func buildCatalog(entries []LabMeta) *Catalog {
	c := &Catalog{
		labs:       make(map[models.LabID]LabMeta, len(entries)),
		fieldOwner: make(map[string]models.LabID),
	}
	for _, meta := range entries {
		c.labs[meta.ID] = meta
		for _, field := range meta.Fields {
			c.fieldOwner[field] = meta.ID
		}
	}
	c.ordered = append([]LabMeta(nil), entries...)
	sort.SliceStable(c.ordered, func(i, j int) bool {
		return c.ordered[i].Priority < c.ordered[j].Priority
	})
	return c
}

// Lab returns the catalog entry for a lab id.
func (c *Catalog) Lab(id models.LabID) (LabMeta, bool) {
	meta, ok := c.labs[id]
	return meta, ok
}

// LabName returns the display name for a lab id, or the id itself when the
// lab is unknown.
func (c *Catalog) LabName(id models.LabID) string {
	if meta, ok := c.labs[id]; ok {
		return meta.Name
	}
	return string(id)
}

// FieldOwner resolves a dotted field path to the lab responsible for it.
func (c *Catalog) FieldOwner(path string) (models.LabID, bool) {
	id, ok := c.fieldOwner[path]
	return id, ok
}

// All returns every lab sorted by priority.
func (c *Catalog) All() []LabMeta {
	return append([]LabMeta(nil), c.ordered...)
}
