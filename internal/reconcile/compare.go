// Package reconcile turns extractor proposals into reviewable comparisons
// against a product's current values and assembles the partial update that
// applies the selected ones.
package reconcile

import (
	"github.com/sells-group/pim-enrich/internal/model"
)

// DefaultConfidenceThreshold is the confidence at or above which a differing
// proposal is selected automatically.
const DefaultConfidenceThreshold = 0.8

// BuildComparisons enriches each proposal with the current value at its
// (locale, scope) as proposed, and with the attribute's definition. A
// proposal with an empty code aborts the build with a malformed_proposal
// error; nothing is returned in that case.
func BuildComparisons(proposals []model.Proposal, current model.Values, defs []model.AttributeDefinition, threshold float64) ([]model.Comparison, error) {
	byCode := model.AttributeIndex(defs)
	out := make([]model.Comparison, 0, len(proposals))

	for i, p := range proposals {
		if p.Code == "" {
			return nil, model.Errorf(model.KindMalformedProposal,
				"The extractor returned proposal %d without an attribute code.", i)
		}

		def, ok := byCode[p.Code]
		if !ok {
			def = model.GenericAttribute(p.Code)
		}

		c := model.Comparison{
			Proposal:      p,
			AttributeType: def.ValueType,
			Options:       def.Options,
			Localizable:   def.Localizable,
			Scopable:      def.Scopable,
		}
		if slot, found := current.Find(p.Code, p.Locale, p.Scope); found {
			if s, present := model.Stringify(slot.Data); present {
				c.CurrentValue = &s
			}
		}
		c.IsDifferent = c.DiffersFrom(p.ProposedValue)
		c.IsSelected = c.IsDifferent && p.Confidence >= threshold
		out = append(out, c)
	}
	return out, nil
}
