// Package models defines the core domain models for carbon-footprint workflow graphs.
package models

import (
	"time"

	"github.com/carbonlens/carbonflow/pkg/config"
)

// NodeType classifies a node by product lifecycle role.
type NodeType string

const (
	NodeTypeRawMaterial  NodeType = "raw-material"
	NodeTypeProduction   NodeType = "production"
	NodeTypeDistribution NodeType = "distribution"
	NodeTypeUsage        NodeType = "usage"
	NodeTypeDisposal     NodeType = "disposal"
	NodeTypeFinalProduct NodeType = "final-product"
)

// ValidNodeType reports whether t is a recognized node type.
func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeTypeRawMaterial, NodeTypeProduction, NodeTypeDistribution,
		NodeTypeUsage, NodeTypeDisposal, NodeTypeFinalProduct:
		return true
	}

	return false
}

// LifecycleStage is the reporting stage a node's emissions are attributed to.
// It defaults to the node type but can be overridden per node.
type LifecycleStage string

// MatchStatus is the trust state of a node's assigned carbon factor.
type MatchStatus string

const (
	MatchStatusUnmatched      MatchStatus = "unmatched"
	MatchStatusMatched        MatchStatus = "matched"
	MatchStatusLowConfidence  MatchStatus = "low-confidence"
	MatchStatusManualOverride MatchStatus = "manual-override"
)

// RiskLevel is a qualitative uncertainty rating for a node's values.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ScoreLevel is the bucketed activity score.
type ScoreLevel string

const (
	ScoreLevelLow    ScoreLevel = "low"
	ScoreLevelMedium ScoreLevel = "medium"
	ScoreLevelHigh   ScoreLevel = "high"
)

// VerificationStatus tracks independent verification of node data.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
)

// Position is the presentation-only placement of a node on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ActivityData quantifies the activity a node represents. Quantity is nil
// until provided; AI-generated flags mark values inferred rather than
// user-confirmed.
type ActivityData struct {
	Description         string   `json:"description"`
	Quantity            *float64 `json:"quantity,omitempty"           validate:"omitempty,min=0"`
	Unit                string   `json:"unit,omitempty"`
	QuantityAIGenerated bool     `json:"quantity_ai_generated,omitempty"`
	UnitAIGenerated     bool     `json:"unit_ai_generated,omitempty"`
}

// FactorMatch holds an emission factor assigned to a node, together with its
// provenance in the factor catalog.
type FactorMatch struct {
	Value          float64    `json:"value"`
	Name           string     `json:"name"`
	Unit           string     `json:"unit"`
	Source         string     `json:"source,omitempty"`
	ActivityUUID   string     `json:"activity_uuid,omitempty"` // factor catalog key
	Geography      string     `json:"geography,omitempty"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
	UnitConversion *float64   `json:"unit_conversion,omitempty"` // activity unit -> factor unit multiplier
}

// Provenance carries the quality and trust state of a node's data.
type Provenance struct {
	ActivityScore      *float64           `json:"activity_score,omitempty" validate:"omitempty,min=0,max=1"`
	ScoreLevel         ScoreLevel         `json:"score_level,omitempty"`
	DataRisk           RiskLevel          `json:"data_risk,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status,omitempty"`
	EvidenceStatus     VerificationStatus `json:"evidence_status,omitempty"`
	HasEvidenceFiles   bool               `json:"has_evidence_files,omitempty"`
}

// Node represents one lifecycle-stage activity in a workflow graph.
type Node struct {
	ID         string         `json:"id"          validate:"required"`
	WorkflowID string         `json:"workflow_id" validate:"required"`
	Type       NodeType       `json:"type"        validate:"required"`
	Stage      LifecycleStage `json:"stage"`
	Emission   string         `json:"emission_type,omitempty"`
	Label      string         `json:"label"`

	Position Position     `json:"position"`
	Activity ActivityData `json:"activity"`

	// Factor is nil until a factor has been assigned; MatchStatus is
	// meaningful even then (unmatched).
	Factor      *FactorMatch `json:"factor,omitempty"`
	MatchStatus MatchStatus  `json:"match_status"`

	Provenance Provenance `json:"provenance"`

	// Footprint is derived state, recomputed on calculate. Nil means
	// unknown, which is distinct from zero emissions.
	Footprint *float64 `json:"footprint,omitempty"`

	Supplementary string `json:"supplementary_info,omitempty"`

	// Diagnostic records the most recent matcher failure for this node,
	// surfaced to callers instead of failing the whole action.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// DeriveFootprint computes quantity * unitConversion * factor. The boolean is
// false when the footprint is unknown: missing quantity or factor, unmatched
// status, or an unreconcilable unit pair. Unknown is never reported as zero.
func DeriveFootprint(n *Node) (float64, bool) {
	if n == nil || n.MatchStatus == MatchStatusUnmatched {
		return 0, false
	}

	if n.Factor == nil || n.Activity.Quantity == nil {
		return 0, false
	}

	conversion, ok := unitConversion(n)
	if !ok {
		return 0, false
	}

	return *n.Activity.Quantity * conversion * n.Factor.Value, true
}

// unitConversion resolves the activity-unit to factor-unit multiplier. A
// missing conversion is 1.0 only when the units already agree.
func unitConversion(n *Node) (float64, bool) {
	if n.Factor.UnitConversion != nil {
		return *n.Factor.UnitConversion, true
	}

	if n.Activity.Unit != "" && n.Activity.Unit == n.Factor.Unit {
		return 1.0, true
	}

	return 0, false
}

// ClassifyScoreLevel buckets an activity score using configured thresholds.
func ClassifyScoreLevel(score float64, t config.ScoreThresholds) ScoreLevel {
	switch {
	case score < t.LowMedium:
		return ScoreLevelLow
	case score < t.MediumHigh:
		return ScoreLevelMedium
	default:
		return ScoreLevelHigh
	}
}

// ApplyFactorMatch applies a matcher candidate to the node.
//
// Fallback candidates (synthesized when the matcher had nothing usable) leave
// any prior factor untouched and mark the node unmatched. Real candidates
// scoring below minScore are rejected: the prior factor, if any, is kept and
// the status becomes low-confidence rather than overwriting with a poor guess.
func ApplyFactorMatch(n *Node, c MatchCandidate, minScore float64) {
	if c.Fallback {
		n.MatchStatus = MatchStatusUnmatched
		n.Footprint = nil

		return
	}

	if c.Score < minScore {
		n.MatchStatus = MatchStatusLowConfidence

		return
	}

	n.Factor = &FactorMatch{
		Value:          c.Value,
		Name:           c.Name,
		Unit:           c.Unit,
		Source:         c.Source,
		ActivityUUID:   c.FactorID,
		Geography:      c.Geography,
		ValidFrom:      c.ValidFrom,
		ValidTo:        c.ValidTo,
		UnitConversion: c.UnitConversion,
	}
	n.MatchStatus = MatchStatusMatched
	n.Diagnostic = ""
}

// EffectiveDataRisk returns the node's data risk after enforcing the
// AI-provenance floor: AI-generated values that were not independently
// verified carry at least medium risk.
func (n *Node) EffectiveDataRisk() RiskLevel {
	risk := n.Provenance.DataRisk
	if risk == "" {
		risk = RiskLow
	}

	aiGenerated := n.Activity.QuantityAIGenerated || n.Activity.UnitAIGenerated
	if aiGenerated && n.Provenance.VerificationStatus != VerificationVerified && risk == RiskLow {
		return RiskMedium
	}

	return risk
}

// Normalize re-establishes cross-field invariants after an edit: an unmatched
// node must not keep a stale footprint, score levels follow the score, and
// the data-risk floor is applied.
func (n *Node) Normalize(t config.ScoreThresholds) {
	if n.MatchStatus == "" {
		n.MatchStatus = MatchStatusUnmatched
	}

	if n.MatchStatus == MatchStatusUnmatched {
		n.Footprint = nil
	}

	if n.Provenance.ActivityScore != nil {
		n.Provenance.ScoreLevel = ClassifyScoreLevel(*n.Provenance.ActivityScore, t)
	}

	n.Provenance.DataRisk = n.EffectiveDataRisk()

	if n.Stage == "" {
		n.Stage = LifecycleStage(n.Type)
	}
}
