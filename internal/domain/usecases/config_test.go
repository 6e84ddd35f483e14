package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileForSize(t *testing.T) {
	cases := []struct {
		size string
		want KBProfile
	}{
		{"small", KBProfile{
			Size: "small", HighConfidence: 0.60, LowConfidence: 0.35,
			MinSimilarity: 0.4, DefaultTopK: 5, FilterEnabled: false,
		}},
		{"medium", KBProfile{
			Size: "medium", HighConfidence: 0.70, LowConfidence: 0.45,
			MinSimilarity: 0.6, DefaultTopK: 7, FilterEnabled: true,
		}},
		{"large", KBProfile{
			Size: "large", HighConfidence: 0.75, LowConfidence: 0.50,
			MinSimilarity: 0.7, DefaultTopK: 10, FilterEnabled: true,
		}},
	}

	for _, tc := range cases {
		got, err := ProfileForSize(tc.size)
		require.NoError(t, err, tc.size)
		assert.Equal(t, tc.want, got)
	}
}

func TestProfileForSizeUnknown(t *testing.T) {
	_, err := ProfileForSize("enormous")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enormous")
}

func TestMaxRetriesFollowsEvaluation(t *testing.T) {
	builder := newTestPrompts(t)
	profile := smallProfile(t)

	with := NewOrchestrator(&mockClassifier{}, &mockRetriever{}, &mockGenerator{}, builder,
		Options{Profile: profile, UseEvaluation: true}, nil)
	assert.Equal(t, 2, with.maxRetries)

	without := NewOrchestrator(&mockClassifier{}, &mockRetriever{}, &mockGenerator{}, builder,
		Options{Profile: profile, UseEvaluation: false}, nil)
	assert.Equal(t, 1, without.maxRetries)
}
