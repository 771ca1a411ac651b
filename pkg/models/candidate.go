package models

import "time"

// MatchCandidate is one ranked emission-factor candidate returned by the
// factor matcher. Candidates are ephemeral: produced per query and discarded
// after the update that consumed them.
type MatchCandidate struct {
	FactorID       string     `json:"id"`
	Name           string     `json:"name"`
	Unit           string     `json:"unit"`
	Value          float64    `json:"value"`
	Score          float64    `json:"score" validate:"min=0,max=1"`
	Source         string     `json:"source,omitempty"`
	Geography      string     `json:"geography,omitempty"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
	UnitConversion *float64   `json:"unit_conversion,omitempty"`

	// Fallback marks a candidate synthesized by the matcher when the factor
	// API returned no candidates at all. Its score is always 0.
	Fallback bool `json:"fallback,omitempty"`
}
