package model

// Proposal is one AI-suggested value for one attribute. Locale and Scope are
// as suggested by the extractor and may not match the attribute's actual
// capabilities; an empty string means null.
type Proposal struct {
	Code          string  `json:"code"`
	Label         string  `json:"label,omitempty"`
	ProposedValue string  `json:"proposedValue"`
	Confidence    float64 `json:"confidence"`
	Locale        string  `json:"locale,omitempty"`
	Scope         string  `json:"scope,omitempty"`
	Reasoning     string  `json:"reasoning,omitempty"`
}

// Key addresses a comparison by its logical slot identity.
type Key struct {
	Code   string `json:"code"`
	Locale string `json:"locale,omitempty"`
	Scope  string `json:"scope,omitempty"`
}

// Key returns the proposal's (code, locale, scope) key.
func (p Proposal) Key() Key {
	return Key{Code: p.Code, Locale: p.Locale, Scope: p.Scope}
}

// Comparison is a proposal enriched with the record's current state and the
// user's selection and edit.
type Comparison struct {
	Proposal

	// CurrentValue is the stringified data of the slot at the proposal's
	// (locale, scope), or nil when absent or empty.
	CurrentValue *string `json:"currentValue"`
	IsDifferent  bool    `json:"isDifferent"`
	IsSelected   bool    `json:"isSelected"`
	EditedValue  *string `json:"editedValue,omitempty"`

	AttributeType ValueType `json:"attributeType"`
	Options       []Option  `json:"options,omitempty"`
	Localizable   bool      `json:"localizable"`
	Scopable      bool      `json:"scopable"`
}

// EffectiveValue is the edited value when present, else the proposed value.
func (c Comparison) EffectiveValue() string {
	if c.EditedValue != nil {
		return *c.EditedValue
	}
	return c.ProposedValue
}

// Edited reports whether the user has overridden the proposed value.
func (c Comparison) Edited() bool {
	return c.EditedValue != nil
}

// DiffersFrom reports whether v, in the form it would be written for the
// attribute type, differs from the current value. An absent current value
// differs from everything.
func (c Comparison) DiffersFrom(v string) bool {
	if c.CurrentValue == nil {
		return true
	}
	written, _ := Stringify(EncodeValue(c.AttributeType, v))
	return *c.CurrentValue != written
}

// TargetSlot returns the (locale, scope) the comparison writes to, coerced to
// the attribute's capabilities.
func (c Comparison) TargetSlot() (locale, scope string) {
	if c.Localizable {
		locale = c.Locale
	}
	if c.Scopable {
		scope = c.Scope
	}
	return locale, scope
}

// CountSelected returns the number of selected comparisons.
func CountSelected(cs []Comparison) int {
	n := 0
	for _, c := range cs {
		if c.IsSelected {
			n++
		}
	}
	return n
}
