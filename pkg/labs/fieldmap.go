package labs

import "github.com/growthdesk/growthdesk-go/pkg/models"

// fieldProjection maps one key of a lab engine's raw data payload to a
// context-graph cell. Confidence values are empirically tuned per field
// type, not derived.
type fieldProjection struct {
	Domain     string
	Field      string
	DataKey    string
	Confidence float64
}

// refinementProjections is the per-lab table of candidate context writes
// extracted from successful engine results.
var refinementProjections = map[models.LabID][]fieldProjection{
	models.LabBrand: {
		{Domain: models.DomainBrand, Field: "positioning", DataKey: "positioning", Confidence: 0.85},
		{Domain: models.DomainBrand, Field: "valueProps", DataKey: "value_props", Confidence: 0.85},
		{Domain: models.DomainBrand, Field: "messagingPillars", DataKey: "messaging_pillars", Confidence: 0.80},
		{Domain: models.DomainBrand, Field: "toneOfVoice", DataKey: "tone_of_voice", Confidence: 0.75},
		{Domain: models.DomainIdentity, Field: "businessModel", DataKey: "business_model", Confidence: 0.80},
		{Domain: models.DomainIdentity, Field: "productOffer", DataKey: "product_offer", Confidence: 0.80},
	},
	models.LabWebsite: {
		{Domain: models.DomainWebsite, Field: "conversionPath", DataKey: "conversion_path", Confidence: 0.80},
		{Domain: models.DomainWebsite, Field: "performanceScore", DataKey: "performance_score", Confidence: 0.85},
		{Domain: models.DomainWebsite, Field: "uxIssues", DataKey: "ux_issues", Confidence: 0.75},
	},
	models.LabSEO: {
		{Domain: models.DomainSEO, Field: "topKeywords", DataKey: "top_keywords", Confidence: 0.85},
		{Domain: models.DomainSEO, Field: "organicTrafficTrend", DataKey: "organic_traffic_trend", Confidence: 0.80},
		{Domain: models.DomainSEO, Field: "technicalIssues", DataKey: "technical_issues", Confidence: 0.80},
	},
	models.LabContent: {
		{Domain: models.DomainCreative, Field: "contentThemes", DataKey: "content_themes", Confidence: 0.75},
		{Domain: models.DomainCreative, Field: "contentGaps", DataKey: "content_gaps", Confidence: 0.75},
	},
	models.LabDemand: {
		{Domain: models.DomainPerformanceMedia, Field: "activeChannels", DataKey: "active_channels", Confidence: 0.80},
		{Domain: models.DomainPerformanceMedia, Field: "blendedCpa", DataKey: "blended_cpa", Confidence: 0.75},
		{Domain: models.DomainObjectives, Field: "primaryGoal", DataKey: "primary_goal", Confidence: 0.75},
		{Domain: models.DomainObjectives, Field: "growthTargets", DataKey: "growth_targets", Confidence: 0.75},
	},
	models.LabOps: {
		{Domain: models.DomainOps, Field: "salesMotion", DataKey: "sales_motion", Confidence: 0.75},
		{Domain: models.DomainOps, Field: "crmStack", DataKey: "crm_stack", Confidence: 0.80},
		{Domain: models.DomainDigitalInfra, Field: "analyticsSetup", DataKey: "analytics_setup", Confidence: 0.80},
		{Domain: models.DomainDigitalInfra, Field: "techStack", DataKey: "tech_stack", Confidence: 0.85},
	},
	models.LabAudience: {
		{Domain: models.DomainAudience, Field: "primarySegments", DataKey: "primary_segments", Confidence: 0.85},
		{Domain: models.DomainAudience, Field: "icpDescription", DataKey: "icp_description", Confidence: 0.80},
		{Domain: models.DomainAudience, Field: "painPoints", DataKey: "pain_points", Confidence: 0.80},
		{Domain: models.DomainAudience, Field: "buyingTriggers", DataKey: "buying_triggers", Confidence: 0.75},
	},
	models.LabCreative: {
		{Domain: models.DomainCreative, Field: "adCreativeThemes", DataKey: "ad_creative_themes", Confidence: 0.75},
		{Domain: models.DomainCreative, Field: "visualIdentityNotes", DataKey: "visual_identity_notes", Confidence: 0.75},
	},
	models.LabMedia: {
		{Domain: models.DomainPerformanceMedia, Field: "channelMix", DataKey: "channel_mix", Confidence: 0.80},
		{Domain: models.DomainPerformanceMedia, Field: "spendAllocation", DataKey: "spend_allocation", Confidence: 0.75},
	},
	models.LabUX: {
		{Domain: models.DomainWebsite, Field: "accessibilityScore", DataKey: "accessibility_score", Confidence: 0.85},
		{Domain: models.DomainWebsite, Field: "mobileExperience", DataKey: "mobile_experience", Confidence: 0.75},
	},
	models.LabCompetitor: {
		{Domain: models.DomainCompetitive, Field: "competitors", DataKey: "competitors", Confidence: 0.85},
		{Domain: models.DomainCompetitive, Field: "positionSummary", DataKey: "position_summary", Confidence: 0.80},
		{Domain: models.DomainCompetitive, Field: "differentiators", DataKey: "differentiators", Confidence: 0.75},
	},
}
