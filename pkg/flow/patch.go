package flow

import (
	"fmt"

	"github.com/carbonlens/carbonflow/pkg/models"
)

// applyPatch merges a partial update into the node. Nil patch fields leave
// the node untouched.
func applyPatch(n *models.Node, p models.NodePatch) error {
	if p.Quantity != nil && *p.Quantity < 0 {
		return fmt.Errorf("%w: got %v", ErrNegativeQuantity, *p.Quantity)
	}

	if p.Label != nil {
		n.Label = *p.Label
	}

	if p.Stage != nil {
		n.Stage = *p.Stage
	}

	if p.Emission != nil {
		n.Emission = *p.Emission
	}

	if p.Description != nil {
		n.Activity.Description = *p.Description
	}

	if p.Quantity != nil {
		q := *p.Quantity
		n.Activity.Quantity = &q
	}

	if p.Unit != nil {
		n.Activity.Unit = *p.Unit
	}

	if p.QuantityAI != nil {
		n.Activity.QuantityAIGenerated = *p.QuantityAI
	}

	if p.UnitAI != nil {
		n.Activity.UnitAIGenerated = *p.UnitAI
	}

	if p.ActivityScore != nil {
		s := *p.ActivityScore
		n.Provenance.ActivityScore = &s
	}

	if p.Verification != nil {
		n.Provenance.VerificationStatus = *p.Verification
	}

	if p.Evidence != nil {
		n.Provenance.EvidenceStatus = *p.Evidence
	}

	if p.HasEvidence != nil {
		n.Provenance.HasEvidenceFiles = *p.HasEvidence
	}

	if p.Supplementary != nil {
		n.Supplementary = *p.Supplementary
	}

	if p.Factor != nil {
		factor := *p.Factor

		if factor.UnitConversion != nil {
			c := *factor.UnitConversion
			factor.UnitConversion = &c
		}

		n.Factor = &factor
		n.MatchStatus = models.MatchStatusManualOverride
		n.Diagnostic = ""
	}

	return nil
}
