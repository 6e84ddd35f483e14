// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code - just the adaptive pipeline logic.
package usecases

import "fmt"

// KBProfile holds the aggregated retrieval thresholds for a knowledge-base
// size class. Profiles are immutable configuration resolved once at
// construction time - never mutated mid-request.
type KBProfile struct {
	Size           string
	HighConfidence float64
	LowConfidence  float64
	MinSimilarity  float64
	DefaultTopK    int
	FilterEnabled  bool
}

// profiles is the fixed lookup table keyed by knowledge-base size tag.
var profiles = map[string]KBProfile{
	"small": {
		Size:           "small",
		HighConfidence: 0.60,
		LowConfidence:  0.35,
		MinSimilarity:  0.4,
		DefaultTopK:    5,
		FilterEnabled:  false,
	},
	"medium": {
		Size:           "medium",
		HighConfidence: 0.70,
		LowConfidence:  0.45,
		MinSimilarity:  0.6,
		DefaultTopK:    7,
		FilterEnabled:  true,
	},
	"large": {
		Size:           "large",
		HighConfidence: 0.75,
		LowConfidence:  0.50,
		MinSimilarity:  0.7,
		DefaultTopK:    10,
		FilterEnabled:  true,
	},
}

// ProfileForSize resolves the profile for a size tag ("small", "medium",
// "large").
func ProfileForSize(size string) (KBProfile, error) {
	p, ok := profiles[size]
	if !ok {
		return KBProfile{}, fmt.Errorf("unknown knowledge base size %q (want small, medium, or large)", size)
	}
	return p, nil
}
