package competition

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// Signal-word lists for the category guardrail. Candidates matching a
// category the target company is not in get rejected so an LLM-sourced
// competitor list cannot pollute non-relevant categories.
var (
	agencySignalWords = []string{
		"agency", "agencies", "consulting", "consultancy", "studio",
		"advertising", "media buying", "creative services", "marketing services",
	}
	marketplaceSignalWords = []string{
		"marketplace", "platform connecting", "two-sided", "buyers and sellers",
		"listing", "peer-to-peer",
	}
	saasSignalWords = []string{
		"saas", "software as a service", "platform", "api", "cloud software",
	}

	// Well-known marketing vendors that only make sense as competitors for
	// companies that are themselves agencies.
	genericMarketingVendors = []string{
		"disruptive advertising", "wpromote", "tinuiti", "power digital",
		"directive consulting", "klientboost", "single grain", "neil patel digital",
		"ignite visibility", "seer interactive",
	}
)

// Max edit distance at which two competitor names count as duplicates.
const dedupeMaxDistance = 2

// DeriveCategoryFingerprint infers the target company's category profile
// from substring matches against its industry, business model, and offer
// text.
func DeriveCategoryFingerprint(company *models.Company) models.CategoryFingerprint {
	if company == nil {
		return models.CategoryFingerprint{}
	}
	text := strings.ToLower(strings.Join([]string{
		company.Industry, company.BusinessModel, company.ProductOffer,
	}, " "))
	return models.CategoryFingerprint{
		IsAgencyOrServices: matchesAny(text, agencySignalWords),
		IsMarketplace:      matchesAny(text, marketplaceSignalWords),
		IsPlatformOrSaaS:   matchesAny(text, saasSignalWords),
	}
}

// ShouldRejectCompetitor applies the category guardrail rules to one
// candidate. It returns a human-readable rejection reason, or "" when the
// candidate passes. Rules short-circuit in order.
func ShouldRejectCompetitor(fingerprint models.CategoryFingerprint, candidate models.CompetitorCandidate) string {
	text := strings.ToLower(strings.Join([]string{
		candidate.Name, candidate.Domain, candidate.Category,
	}, " "))

	if !fingerprint.IsAgencyOrServices && matchesAny(text, agencySignalWords) {
		return fmt.Sprintf("%q looks like an agency/services business but the target company is not one", candidate.Name)
	}
	if !fingerprint.IsMarketplace && matchesAny(text, marketplaceSignalWords) {
		return fmt.Sprintf("%q looks like a marketplace but the target company is not one", candidate.Name)
	}
	if !fingerprint.IsAgencyOrServices && matchesAny(text, genericMarketingVendors) {
		return fmt.Sprintf("%q is a generic marketing vendor, not a category competitor", candidate.Name)
	}
	return ""
}

// FilterCompetitorsByCategory partitions a candidate list into accepted and
// rejected, pairing each rejection with its guardrail reason.
func FilterCompetitorsByCategory(fingerprint models.CategoryFingerprint, candidates []models.CompetitorCandidate) models.CompetitorFilterResult {
	result := models.CompetitorFilterResult{
		Valid:    []models.CompetitorCandidate{},
		Rejected: []models.RejectedCompetitor{},
	}
	for _, candidate := range candidates {
		if reason := ShouldRejectCompetitor(fingerprint, candidate); reason != "" {
			result.Rejected = append(result.Rejected, models.RejectedCompetitor{
				Competitor: candidate,
				Reason:     reason,
			})
			continue
		}
		result.Valid = append(result.Valid, candidate)
	}
	return result
}

// DedupeCompetitors collapses near-duplicate competitor names (edit
// distance <= 2 on the normalized name). First occurrence wins.
func DedupeCompetitors(candidates []models.CompetitorCandidate) []models.CompetitorCandidate {
	var kept []models.CompetitorCandidate
	var keptNames []string
	for _, candidate := range candidates {
		name := normalizeCompetitorName(candidate.Name)
		if name == "" {
			continue
		}
		duplicate := false
		for _, existing := range keptNames {
			if levenshtein.ComputeDistance(name, existing) <= dedupeMaxDistance {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, candidate)
		keptNames = append(keptNames, name)
	}
	return kept
}

func normalizeCompetitorName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range []string{" inc", " inc.", " llc", " ltd", " gmbh", " co.", " co"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.TrimSpace(name)
}

func matchesAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
