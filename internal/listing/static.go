package listing

import (
	"context"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

func boolPtr(b bool) *bool { return &b }

// seedCandidates is a small set of known-good catalog entries used when
// every live listing source is unavailable. It keeps the pipeline
// exercisable end to end without network-dependent discovery.
var seedCandidates = []guidance.Candidate{
	{
		URL:            "https://www.fda.gov/regulatory-information/search-fda-guidance-documents/medical-device-user-fee-small-business-qualification-and-determination",
		Title:          "Medical Device User Fee Small Business Qualification and Determination: Guidance for Industry, Food and Drug Administration Staff and Foreign Governments",
		AttachmentURL:  "https://www.fda.gov/media/176439/download",
		AttachmentSize: "418.69 KB",
		IssueDate:      "07/31/2025",
		Organization:   "Center for Devices and Radiological Health Center for Biologics Evaluation and Research",
		Topic:          "User Fees, Administrative / Procedural",
		GuidanceStatus: "Final",
		OpenForComment: boolPtr(false),
	},
	{
		URL:            "https://www.fda.gov/regulatory-information/search-fda-guidance-documents/cvm-gfi-294-animal-food-ingredient-consultation-afic",
		Title:          "CVM GFI #294 - Animal Food Ingredient Consultation (AFIC)",
		AttachmentURL:  "https://www.fda.gov/media/180442/download",
		AttachmentSize: "397.81 KB",
		IssueDate:      "07/31/2025",
		Organization:   "Center for Veterinary Medicine",
		Topic:          "Premarket, Animal Food Additives, Labeling, Safety - Issues, Errors, and Problems",
		GuidanceStatus: "Final",
		OpenForComment: boolPtr(false),
	},
	{
		URL:            "https://www.fda.gov/regulatory-information/search-fda-guidance-documents/e21-inclusion-pregnant-and-breastfeeding-women-clinical-trials",
		Title:          "E21 Inclusion of Pregnant and Breastfeeding Women in Clinical Trials: Draft Guidance for Industry",
		AttachmentURL:  "https://www.fda.gov/media/187755/download",
		AttachmentSize: "429.62 KB",
		IssueDate:      "07/21/2025",
		Organization:   "Center for Biologics Evaluation and Research Center for Drug Evaluation and Research Office of the Commissioner,Office of Women's Health",
		Topic:          "ICH-Efficacy",
		GuidanceStatus: "Draft",
		OpenForComment: boolPtr(true),
	},
}

// StaticStrategy serves the built-in seed list. It is the terminal
// fallback and never fails.
type StaticStrategy struct {
	candidates []guidance.Candidate
}

// NewStaticStrategy returns a strategy over the built-in seed list.
// Custom candidates replace the seeds when provided.
func NewStaticStrategy(candidates ...guidance.Candidate) *StaticStrategy {
	if len(candidates) == 0 {
		candidates = seedCandidates
	}
	return &StaticStrategy{candidates: candidates}
}

// Name implements guidance.ListingStrategy.
func (s *StaticStrategy) Name() string { return "static" }

// Acquire returns a copy of the seed list, honoring the limit.
func (s *StaticStrategy) Acquire(_ context.Context, limit int) ([]guidance.Candidate, error) {
	out := make([]guidance.Candidate, len(s.candidates))
	copy(out, s.candidates)
	return clamp(out, limit), nil
}
