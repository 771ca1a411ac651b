package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonlens/carbonflow/pkg/config"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestDeriveFootprint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		node      *Node
		wantValue float64
		wantKnown bool
	}{
		{
			name: "matched node with explicit conversion",
			node: &Node{
				MatchStatus: MatchStatusMatched,
				Activity:    ActivityData{Quantity: floatPtr(10), Unit: "t"},
				Factor:      &FactorMatch{Value: 2.5, Unit: "kg", UnitConversion: floatPtr(1000)},
			},
			wantValue: 25000,
			wantKnown: true,
		},
		{
			name: "matching units need no conversion",
			node: &Node{
				MatchStatus: MatchStatusMatched,
				Activity:    ActivityData{Quantity: floatPtr(10), Unit: "kg"},
				Factor:      &FactorMatch{Value: 2.5, Unit: "kg"},
			},
			wantValue: 25,
			wantKnown: true,
		},
		{
			name: "unmatched node is unknown even with a factor",
			node: &Node{
				MatchStatus: MatchStatusUnmatched,
				Activity:    ActivityData{Quantity: floatPtr(10), Unit: "kg"},
				Factor:      &FactorMatch{Value: 2.5, Unit: "kg"},
			},
			wantKnown: false,
		},
		{
			name: "missing quantity is unknown",
			node: &Node{
				MatchStatus: MatchStatusMatched,
				Activity:    ActivityData{Unit: "kg"},
				Factor:      &FactorMatch{Value: 2.5, Unit: "kg"},
			},
			wantKnown: false,
		},
		{
			name: "missing factor is unknown",
			node: &Node{
				MatchStatus: MatchStatusMatched,
				Activity:    ActivityData{Quantity: floatPtr(10), Unit: "kg"},
			},
			wantKnown: false,
		},
		{
			name: "unit mismatch without conversion is unknown, not assumed",
			node: &Node{
				MatchStatus: MatchStatusMatched,
				Activity:    ActivityData{Quantity: floatPtr(10), Unit: "liter"},
				Factor:      &FactorMatch{Value: 2.5, Unit: "kg"},
			},
			wantKnown: false,
		},
		{
			name: "zero quantity is a known zero, not unknown",
			node: &Node{
				MatchStatus: MatchStatusMatched,
				Activity:    ActivityData{Quantity: floatPtr(0), Unit: "kg"},
				Factor:      &FactorMatch{Value: 2.5, Unit: "kg"},
			},
			wantValue: 0,
			wantKnown: true,
		},
		{
			name:      "nil node",
			node:      nil,
			wantKnown: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			value, known := DeriveFootprint(tt.node)
			assert.Equal(t, tt.wantKnown, known)

			if tt.wantKnown {
				assert.InDelta(t, tt.wantValue, value, 1e-9)
			}
		})
	}
}

func TestApplyFactorMatch_AcceptsGoodCandidate(t *testing.T) {
	t.Parallel()

	node := &Node{
		MatchStatus: MatchStatusUnmatched,
		Diagnostic:  "previous matcher outage",
	}

	ApplyFactorMatch(node, MatchCandidate{
		FactorID: "f-001",
		Name:     "steel, sheet",
		Unit:     "kg",
		Value:    2.5,
		Score:    0.82,
	}, 0.3)

	assert.Equal(t, MatchStatusMatched, node.MatchStatus)
	require.NotNil(t, node.Factor)
	assert.Equal(t, 2.5, node.Factor.Value)
	assert.Equal(t, "f-001", node.Factor.ActivityUUID)
	assert.Empty(t, node.Diagnostic)
}

func TestApplyFactorMatch_BelowThresholdKeepsPriorFactor(t *testing.T) {
	t.Parallel()

	prior := &FactorMatch{Value: 1.8, Name: "electricity, grid mix", Unit: "kWh"}
	node := &Node{
		MatchStatus: MatchStatusMatched,
		Factor:      prior,
	}

	ApplyFactorMatch(node, MatchCandidate{FactorID: "f-002", Value: 9.9, Score: 0.1}, 0.3)

	assert.Equal(t, MatchStatusLowConfidence, node.MatchStatus)
	assert.Same(t, prior, node.Factor, "low-score candidate must not overwrite the prior factor")
}

func TestApplyFactorMatch_FallbackLeavesNodeUnmatched(t *testing.T) {
	t.Parallel()

	prior := &FactorMatch{Value: 1.8, Name: "electricity, grid mix", Unit: "kWh"}
	node := &Node{
		MatchStatus: MatchStatusMatched,
		Factor:      prior,
		Footprint:   floatPtr(18),
	}

	ApplyFactorMatch(node, MatchCandidate{FactorID: "fallback", Value: 1.0, Fallback: true}, 0.3)

	assert.Equal(t, MatchStatusUnmatched, node.MatchStatus)
	assert.Same(t, prior, node.Factor)
	assert.Nil(t, node.Footprint, "unmatched node must not keep a stale footprint")
}

func TestClassifyScoreLevel(t *testing.T) {
	t.Parallel()

	thresholds := config.ScoreThresholds{LowMedium: 0.4, MediumHigh: 0.7}

	assert.Equal(t, ScoreLevelLow, ClassifyScoreLevel(0.0, thresholds))
	assert.Equal(t, ScoreLevelLow, ClassifyScoreLevel(0.39, thresholds))
	assert.Equal(t, ScoreLevelMedium, ClassifyScoreLevel(0.4, thresholds))
	assert.Equal(t, ScoreLevelMedium, ClassifyScoreLevel(0.69, thresholds))
	assert.Equal(t, ScoreLevelHigh, ClassifyScoreLevel(0.7, thresholds))
	assert.Equal(t, ScoreLevelHigh, ClassifyScoreLevel(1.0, thresholds))
}

func TestEffectiveDataRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node Node
		want RiskLevel
	}{
		{
			name: "default risk is low",
			node: Node{},
			want: RiskLow,
		},
		{
			name: "ai-generated quantity raises the floor to medium",
			node: Node{Activity: ActivityData{QuantityAIGenerated: true}},
			want: RiskMedium,
		},
		{
			name: "ai-generated unit raises the floor to medium",
			node: Node{Activity: ActivityData{UnitAIGenerated: true}},
			want: RiskMedium,
		},
		{
			name: "verification clears the ai floor",
			node: Node{
				Activity:   ActivityData{QuantityAIGenerated: true},
				Provenance: Provenance{VerificationStatus: VerificationVerified},
			},
			want: RiskLow,
		},
		{
			name: "explicit high risk is never lowered",
			node: Node{
				Activity:   ActivityData{QuantityAIGenerated: true},
				Provenance: Provenance{DataRisk: RiskHigh},
			},
			want: RiskHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.node.EffectiveDataRisk())
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	thresholds := config.ScoreThresholds{LowMedium: 0.4, MediumHigh: 0.7}

	node := &Node{
		Type:      NodeTypeDisposal,
		Footprint: floatPtr(42),
		Activity:  ActivityData{QuantityAIGenerated: true},
		Provenance: Provenance{
			ActivityScore: floatPtr(0.55),
		},
	}

	node.Normalize(thresholds)

	assert.Equal(t, MatchStatusUnmatched, node.MatchStatus)
	assert.Nil(t, node.Footprint)
	assert.Equal(t, ScoreLevelMedium, node.Provenance.ScoreLevel)
	assert.Equal(t, RiskMedium, node.Provenance.DataRisk)
	assert.Equal(t, LifecycleStage(NodeTypeDisposal), node.Stage)
}
