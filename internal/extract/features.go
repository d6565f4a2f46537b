// Package extract runs structured feature extraction over harvested
// guidance documents: attachment text, a JSON-mode model call, schema
// validation, and persistence of the resulting feature record.
package extract

import (
	"fmt"
	"sort"
	"strings"
)

// stringFields and listFields enumerate the schema fields by shape.
// Anything else the model returns is dropped during salvage.
var stringFields = map[string]struct{}{
	"device_classification": {},
	"product_code":          {},
	"device_type":           {},
	"device_category":       {},
	"intended_use":          {},
	"regulatory_pathway":    {},
	"timeline_information":  {},
	"fee_information":       {},
	"risk_classification":   {},
	"extraction_notes":      {},
}

var listFields = map[string]struct{}{
	"premarket_requirements":      {},
	"standards_referenced":        {},
	"testing_requirements":        {},
	"performance_criteria":        {},
	"quality_system_requirements": {},
	"labeling_requirements":       {},
	"post_market_requirements":    {},
	"submission_requirements":     {},
	"contraindications":           {},
}

// DefaultWeights is the per-field contribution to the confidence score.
// The weights sum to 1.0; configuration may override individual entries.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"device_classification":   0.2,
		"device_type":             0.15,
		"regulatory_pathway":      0.15,
		"intended_use":            0.1,
		"standards_referenced":    0.1,
		"testing_requirements":    0.1,
		"submission_requirements": 0.1,
		"product_code":            0.05,
		"device_category":         0.05,
	}
}

// flatten collapses nested objects the model sometimes emits in place of
// plain values. For a nested object the lookup order is "classification",
// "value", "text", then the first string member; anything else is
// stringified.
func flatten(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		nested, ok := value.(map[string]any)
		if !ok {
			out[key] = value
			continue
		}
		out[key] = flattenValue(nested)
	}
	return out
}

func flattenValue(nested map[string]any) any {
	for _, probe := range []string{"classification", "value", "text"} {
		if v, ok := nested[probe]; ok {
			return v
		}
	}
	keys := make([]string, 0, len(nested))
	for k := range nested {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := nested[k].(string); ok {
			return s
		}
	}
	return fmt.Sprint(nested)
}

// salvage keeps only fields whose value matches the expected shape for
// that field, turning a schema-invalid response into a usable partial
// record.
func salvage(raw map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range raw {
		if _, ok := stringFields[key]; ok {
			if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
				out[key] = s
			}
			continue
		}
		if _, ok := listFields[key]; ok {
			if items, ok := stringSlice(value); ok && len(items) > 0 {
				out[key] = items
			}
		}
	}
	return out
}

func stringSlice(value any) ([]string, bool) {
	raw, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// modelConfidence reads the confidence the model reported about its own
// output. Zero means the model left it unset and the weighted rubric
// applies instead.
func modelConfidence(value any) (float64, bool) {
	v, ok := value.(float64)
	if !ok || v <= 0 {
		return 0, false
	}
	if v > 1 {
		return 1, true
	}
	return v, true
}

// scoreConfidence sums the weights of the fields that carry a usable
// value, clamped to [0, 1].
func scoreConfidence(features map[string]any, weights map[string]float64) float64 {
	score := 0.0
	for field, weight := range weights {
		value, ok := features[field]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				score += weight
			}
		case []string:
			if len(v) > 0 {
				score += weight
			}
		case []any:
			if len(v) > 0 {
				score += weight
			}
		}
	}
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
