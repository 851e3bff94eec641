// Package insights normalizes lab findings into persistable client
// insights and maintains a semantic index over them.
package insights

import (
	"time"

	"github.com/google/uuid"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// labCategories maps each lab to a stable insight category.
var labCategories = map[models.LabID]string{
	models.LabBrand:      "brand",
	models.LabWebsite:    "website",
	models.LabSEO:        "seo",
	models.LabContent:    "content",
	models.LabDemand:     "demand_gen",
	models.LabOps:        "operations",
	models.LabAudience:   "audience",
	models.LabCreative:   "creative",
	models.LabMedia:      "paid_media",
	models.LabUX:         "ux",
	models.LabCompetitor: "competitive",
}

const defaultCategory = "general"

// CategoryForLab resolves the insight category for a lab.
func CategoryForLab(labID models.LabID) string {
	if category, ok := labCategories[labID]; ok {
		return category
	}
	return defaultCategory
}

// ExtractFromLabOutputs flattens lab insight units into client insights.
// Failed labs contribute nothing; every insight opens in status "open".
func ExtractFromLabOutputs(companyID string, outputs []models.LabRefinementOutput, now time.Time) []models.ClientInsight {
	var extracted []models.ClientInsight
	for _, output := range outputs {
		if !output.Success {
			continue
		}
		category := CategoryForLab(output.LabID)
		for _, unit := range output.Insights {
			if unit.Text == "" {
				continue
			}
			extracted = append(extracted, models.ClientInsight{
				ID:        uuid.NewString(),
				CompanyID: companyID,
				LabID:     output.LabID,
				Category:  category,
				Title:     unit.Text,
				Kind:      unit.Kind,
				Severity:  unit.Severity,
				Status:    models.InsightStatusOpen,
				CreatedAt: now.UTC(),
			})
		}
	}
	return extracted
}
