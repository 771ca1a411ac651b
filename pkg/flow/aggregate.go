package flow

import (
	"fmt"

	"github.com/carbonlens/carbonflow/pkg/models"
)

// Summary is the stable aggregate contract consumed by reporting and UI
// collaborators. Nil totals mean unknown, which is an explicit reported
// condition (never coerced to zero: that would understate emissions).
type Summary struct {
	Mode    models.AggregationMode                `json:"mode"`
	Total   *float64                              `json:"total"`
	ByStage map[models.LifecycleStage]*float64    `json:"by_stage"`

	UnmatchedCount     int `json:"unmatched_count"`
	LowConfidenceCount int `json:"low_confidence_count"`
	HighRiskCount      int `json:"high_risk_count"`

	// ExcludedCount is the number of unknown nodes left out of the total
	// under lenient mode. Always zero under strict mode.
	ExcludedCount int `json:"excluded_count"`

	// Uncertain reports that the total is unknown under strict mode. It is
	// data for the caller, not a failure.
	Uncertain bool `json:"uncertain"`
}

// Aggregate walks the graph and computes the total and per-stage carbon
// footprint. Pure function of the graph: no I/O, deterministic, callable
// repeatedly for what-if updates without re-querying the matcher.
//
// Under strict mode any unknown node footprint makes its stage subtotal and
// the total unknown. Under lenient mode only known contributions are summed
// and the excluded nodes are counted. The mode is always an explicit
// argument.
func Aggregate(g *models.WorkflowGraph, mode models.AggregationMode) (Summary, error) {
	if mode != models.AggregationStrict && mode != models.AggregationLenient {
		return Summary{}, fmt.Errorf("%w: %q", ErrUnknownAggregation, mode)
	}

	summary := Summary{
		Mode:    mode,
		ByStage: make(map[models.LifecycleStage]*float64),
	}

	stageTotals := make(map[models.LifecycleStage]float64)
	stageUnknown := make(map[models.LifecycleStage]bool)

	var (
		total      float64
		anyUnknown bool
	)

	for _, node := range g.Nodes() {
		stage := node.Stage
		if stage == "" {
			stage = models.LifecycleStage(node.Type)
		}

		if _, seen := summary.ByStage[stage]; !seen {
			summary.ByStage[stage] = nil
		}

		if node.MatchStatus == models.MatchStatusLowConfidence {
			summary.LowConfidenceCount++
		}

		if node.EffectiveDataRisk() == models.RiskHigh {
			summary.HighRiskCount++
		}

		value, known := models.DeriveFootprint(node)
		if !known {
			summary.UnmatchedCount++

			anyUnknown = true
			stageUnknown[stage] = true

			if mode == models.AggregationLenient {
				summary.ExcludedCount++
			}

			continue
		}

		total += value
		stageTotals[stage] += value
	}

	for stage := range summary.ByStage {
		if stageUnknown[stage] && mode == models.AggregationStrict {
			continue // stays unknown
		}

		if stageUnknown[stage] && stageTotals[stage] == 0 && mode == models.AggregationLenient {
			// No known contribution at all: report zero known sum, the
			// exclusion count carries the uncertainty.
			v := 0.0
			summary.ByStage[stage] = &v

			continue
		}

		v := stageTotals[stage]
		summary.ByStage[stage] = &v
	}

	switch {
	case mode == models.AggregationStrict && anyUnknown:
		summary.Uncertain = true
	default:
		summary.Total = &total
	}

	return summary, nil
}
