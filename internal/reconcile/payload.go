package reconcile

import "github.com/sells-group/pim-enrich/internal/model"

// BuildUpdatePayload assembles the partial update for every selected
// comparison, in order. Each touched attribute is seeded once with a copy of
// its existing slots so unrelated locales and scopes pass through; the
// written slot is coerced to the attribute's localizable/scopable flags.
func BuildUpdatePayload(cs []model.Comparison, current model.Values) model.UpdatePayload {
	payload := model.UpdatePayload{}

	for _, c := range cs {
		if !c.IsSelected {
			continue
		}

		slots, seeded := payload[c.Code]
		if !seeded {
			slots = append([]model.ValueSlot(nil), current[c.Code]...)
		}

		locale, scope := c.TargetSlot()
		slots = upsertSlot(slots, model.ValueSlot{
			Locale: locale,
			Scope:  scope,
			Data:   EncodeData(c.AttributeType, c.EffectiveValue()),
		})
		payload[c.Code] = slots
	}
	return payload
}

// upsertSlot replaces the data of the first slot at next's (locale, scope),
// dropping any later duplicates of that pair, or appends next.
func upsertSlot(slots []model.ValueSlot, next model.ValueSlot) []model.ValueSlot {
	out := slots[:0:0]
	replaced := false
	for _, s := range slots {
		if !s.Matches(next.Locale, next.Scope) {
			out = append(out, s)
			continue
		}
		if replaced {
			continue
		}
		out = append(out, next)
		replaced = true
	}
	if !replaced {
		out = append(out, next)
	}
	return out
}

// EncodeData converts an effective string value into the data shape the PIM
// expects for the attribute type.
func EncodeData(vt model.ValueType, value string) any {
	return model.EncodeValue(vt, value)
}
