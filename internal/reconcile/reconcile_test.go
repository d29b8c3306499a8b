package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pim-enrich/internal/model"
)

func defs() []model.AttributeDefinition {
	return []model.AttributeDefinition{
		{Code: "description", ValueType: model.ValueTypeText, Localizable: true, Scopable: true},
		{Code: "weight", ValueType: model.ValueTypeNumeric},
		{Code: "name", ValueType: model.ValueTypeText, Localizable: true},
		{Code: "channel_note", ValueType: model.ValueTypeText, Scopable: true},
		{Code: "materials", ValueType: model.ValueTypeMultiSelect, Options: []model.Option{{Code: "cotton"}, {Code: "wool"}}},
		{Code: "waterproof", ValueType: model.ValueTypeBoolean},
	}
}

func TestBuildComparisons(t *testing.T) {
	t.Parallel()

	current := model.Values{
		"description": {{Locale: "en_US", Scope: "ecommerce", Data: "Old"}},
		"weight":      {{Data: 12.5}},
		"name":        {{Locale: "en_US", Data: ""}},
	}
	proposals := []model.Proposal{
		{Code: "description", ProposedValue: "New", Confidence: 0.9, Locale: "en_US", Scope: "ecommerce"},
		{Code: "weight", ProposedValue: "12.5", Confidence: 0.95},
		{Code: "name", ProposedValue: "Shirt", Confidence: 0.5, Locale: "en_US"},
		{Code: "unknown_attr", ProposedValue: "x", Confidence: 0.8},
	}

	cs, err := BuildComparisons(proposals, current, defs(), DefaultConfidenceThreshold)
	require.NoError(t, err)
	require.Len(t, cs, 4)

	t.Run("differing high confidence is selected", func(t *testing.T) {
		require.NotNil(t, cs[0].CurrentValue)
		assert.Equal(t, "Old", *cs[0].CurrentValue)
		assert.True(t, cs[0].IsDifferent)
		assert.True(t, cs[0].IsSelected)
		assert.True(t, cs[0].Localizable)
		assert.True(t, cs[0].Scopable)
	})

	t.Run("identical value is never auto-selected", func(t *testing.T) {
		assert.False(t, cs[1].IsDifferent)
		assert.False(t, cs[1].IsSelected)
	})

	t.Run("empty current is absent and low confidence stays unselected", func(t *testing.T) {
		assert.Nil(t, cs[2].CurrentValue)
		assert.True(t, cs[2].IsDifferent)
		assert.False(t, cs[2].IsSelected)
	})

	t.Run("unknown attribute falls back to generic text at threshold", func(t *testing.T) {
		assert.Equal(t, model.ValueTypeText, cs[3].AttributeType)
		assert.Empty(t, cs[3].Options)
		assert.False(t, cs[3].Localizable)
		assert.True(t, cs[3].IsSelected)
	})
}

func TestBuildComparisons_CurrentLookupUsesProposedSlot(t *testing.T) {
	t.Parallel()

	// weight is not localizable, but the lookup uses the locale as proposed.
	current := model.Values{"weight": {{Data: "3"}}}
	cs, err := BuildComparisons([]model.Proposal{
		{Code: "weight", ProposedValue: "3", Confidence: 1, Locale: "en_US"},
	}, current, defs(), DefaultConfidenceThreshold)
	require.NoError(t, err)
	assert.Nil(t, cs[0].CurrentValue)
	assert.True(t, cs[0].IsSelected)
}

func TestBuildComparisons_SameValueHighConfidenceNotSelected(t *testing.T) {
	t.Parallel()

	current := model.Values{"description": {{Locale: "en_US", Scope: "ecommerce", Data: "Same"}}}
	cs, err := BuildComparisons([]model.Proposal{
		{Code: "description", ProposedValue: "Same", Confidence: 0.95, Locale: "en_US", Scope: "ecommerce"},
	}, current, defs(), DefaultConfidenceThreshold)
	require.NoError(t, err)
	assert.False(t, cs[0].IsSelected)
}

func TestBuildComparisons_MissingCodeFails(t *testing.T) {
	t.Parallel()

	cs, err := BuildComparisons([]model.Proposal{
		{Code: "weight", ProposedValue: "1", Confidence: 1},
		{ProposedValue: "orphan", Confidence: 1},
	}, nil, defs(), DefaultConfidenceThreshold)
	require.Error(t, err)
	assert.Equal(t, model.KindMalformedProposal, model.KindOf(err))
	assert.Contains(t, err.Error(), "proposal 1")
	assert.Nil(t, cs)
}

func TestEngine_EditRecomputesDifference(t *testing.T) {
	t.Parallel()

	current := model.Values{"description": {{Locale: "en_US", Scope: "ecommerce", Data: "Old"}}}
	e := NewEngine(0)
	require.NoError(t, e.Load([]model.Proposal{
		{Code: "description", ProposedValue: "New", Confidence: 0.9, Locale: "en_US", Scope: "ecommerce"},
		{Code: "weight", ProposedValue: "2", Confidence: 0.2},
	}, current, defs()))

	key := model.Key{Code: "description", Locale: "en_US", Scope: "ecommerce"}
	for _, v := range []string{"Old", "Other", ""} {
		require.NoError(t, e.Edit(key, v))
		c := e.Comparisons()[0]
		assert.Equal(t, "Old" != v, c.IsDifferent, v)
		assert.True(t, c.IsSelected, "edit must not change selection")
		assert.Equal(t, v, c.EffectiveValue())
	}

	require.NoError(t, e.Edit(model.Key{Code: "weight"}, "2"))
	assert.True(t, e.Comparisons()[1].IsDifferent, "absent current differs from any edit")
	assert.Equal(t, StateEdited, e.State())

	// A selected no-op edit is kept as is.
	require.NoError(t, e.Edit(key, "Old"))
	p := e.Payload()
	assert.Equal(t, []model.ValueSlot{{Locale: "en_US", Scope: "ecommerce", Data: "Old"}}, p["description"])
}

func TestEngine_SelectAllDeselectAll(t *testing.T) {
	t.Parallel()

	e := NewEngine(0.8)
	require.NoError(t, e.Load([]model.Proposal{
		{Code: "weight", ProposedValue: "1", Confidence: 1},
		{Code: "name", ProposedValue: "x", Confidence: 0.1, Locale: "en_US"},
		{Code: "materials", ProposedValue: "wool", Confidence: 0.9},
	}, nil, defs()))

	require.NoError(t, e.Toggle(model.Key{Code: "name", Locale: "en_US"}))
	e.SelectAll()
	e.SelectAll()
	assert.Equal(t, 3, e.Selected())
	e.DeselectAll()
	e.DeselectAll()
	for _, c := range e.Comparisons() {
		assert.False(t, c.IsSelected)
	}
	assert.Empty(t, e.Payload())
}

func TestEngine_ToggleAndErrors(t *testing.T) {
	t.Parallel()

	e := NewEngine(0.8)
	err := e.Toggle(model.Key{Code: "weight"})
	assert.Equal(t, model.KindInvalidState, model.KindOf(err))

	require.NoError(t, e.Load([]model.Proposal{
		{Code: "channel_note", ProposedValue: "a", Confidence: 0.9, Scope: "ecommerce"},
		{Code: "channel_note", ProposedValue: "b", Confidence: 0.9, Scope: "print"},
	}, nil, defs()))

	require.NoError(t, e.Toggle(model.Key{Code: "channel_note", Scope: "print"}))
	cs := e.Comparisons()
	assert.True(t, cs[0].IsSelected, "scope is part of the key")
	assert.False(t, cs[1].IsSelected)

	err = e.Toggle(model.Key{Code: "channel_note", Scope: "mobile"})
	assert.Equal(t, model.KindNotFound, model.KindOf(err))

	e.Reset()
	assert.Equal(t, StateEmpty, e.State())
	assert.Empty(t, e.Comparisons())
}

func TestEngine_LoadMalformedResets(t *testing.T) {
	t.Parallel()

	e := NewEngine(0.8)
	require.NoError(t, e.Load([]model.Proposal{{Code: "weight", ProposedValue: "1", Confidence: 1}}, nil, defs()))
	err := e.Load([]model.Proposal{{ProposedValue: "1"}}, nil, defs())
	assert.Equal(t, model.KindMalformedProposal, model.KindOf(err))
	assert.Equal(t, StateEmpty, e.State())
	assert.Empty(t, e.Comparisons())
}

func TestBuildUpdatePayload_NonLocalizableForcesNullLocale(t *testing.T) {
	t.Parallel()

	for _, locale := range []string{"en_US", "fr_FR", ""} {
		cs, err := BuildComparisons([]model.Proposal{
			{Code: "weight", ProposedValue: "9", Confidence: 1, Locale: locale, Scope: "ecommerce"},
		}, model.Values{"weight": {{Data: "1"}}}, defs(), 0.8)
		require.NoError(t, err)

		p := BuildUpdatePayload(cs, model.Values{"weight": {{Data: "1"}}})
		require.Len(t, p["weight"], 1, locale)
		assert.Equal(t, model.ValueSlot{Data: "9"}, p["weight"][0])
	}
}

func TestBuildUpdatePayload_NonScopableForcesNullScope(t *testing.T) {
	t.Parallel()

	current := model.Values{"name": {{Locale: "en_US", Data: "Old"}}}
	cs, err := BuildComparisons([]model.Proposal{
		{Code: "name", ProposedValue: "New", Confidence: 1, Locale: "en_US", Scope: "print"},
	}, current, defs(), 0.8)
	require.NoError(t, err)

	p := BuildUpdatePayload(cs, current)
	assert.Equal(t, []model.ValueSlot{{Locale: "en_US", Data: "New"}}, p["name"])
}

func TestBuildUpdatePayload_ReplacesExistingSlot(t *testing.T) {
	t.Parallel()

	current := model.Values{"description": {{Locale: "en_US", Scope: "ecommerce", Data: "Old"}}}
	cs, err := BuildComparisons([]model.Proposal{
		{Code: "description", ProposedValue: "New", Confidence: 0.9, Locale: "en_US", Scope: "ecommerce"},
	}, current, defs(), 0.8)
	require.NoError(t, err)

	p := BuildUpdatePayload(cs, current)
	assert.Equal(t, []model.ValueSlot{{Locale: "en_US", Scope: "ecommerce", Data: "New"}}, p["description"])
	assert.Equal(t, "Old", current["description"][0].Data, "current values are not mutated")
}

func TestBuildUpdatePayload_PreservesUnrelatedSlots(t *testing.T) {
	t.Parallel()

	current := model.Values{
		"description": {
			{Locale: "en_US", Scope: "ecommerce", Data: "X"},
			{Locale: "fr_FR", Scope: "ecommerce", Data: "Y"},
		},
		"weight": {{Data: "1"}},
	}
	cs, err := BuildComparisons([]model.Proposal{
		{Code: "description", ProposedValue: "Z", Confidence: 0.9, Locale: "fr_FR", Scope: "ecommerce"},
		{Code: "description", ProposedValue: "W", Confidence: 0.9, Locale: "de_DE", Scope: "ecommerce"},
	}, current, defs(), 0.8)
	require.NoError(t, err)

	p := BuildUpdatePayload(cs, current)
	assert.Equal(t, []string{"description"}, p.Codes())
	assert.Equal(t, []model.ValueSlot{
		{Locale: "en_US", Scope: "ecommerce", Data: "X"},
		{Locale: "fr_FR", Scope: "ecommerce", Data: "Z"},
		{Locale: "de_DE", Scope: "ecommerce", Data: "W"},
	}, p["description"])
}

func TestBuildUpdatePayload_CollapsesDuplicateSlots(t *testing.T) {
	t.Parallel()

	current := model.Values{"weight": {{Data: "1"}, {Data: "2"}, {Locale: "en_US", Data: "stray"}}}
	cs := []model.Comparison{{
		Proposal:      model.Proposal{Code: "weight", ProposedValue: "3", Locale: "en_US"},
		AttributeType: model.ValueTypeNumeric,
		IsSelected:    true,
	}}

	p := BuildUpdatePayload(cs, current)
	assert.Equal(t, []model.ValueSlot{{Data: "3"}, {Locale: "en_US", Data: "stray"}}, p["weight"])
}

func TestEncodeData(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"cotton", "wool"}, EncodeData(model.ValueTypeMultiSelect, "cotton, wool,"))
	assert.Equal(t, []string{}, EncodeData(model.ValueTypeMultiSelect, ""))
	assert.Equal(t, true, EncodeData(model.ValueTypeBoolean, "Yes"))
	assert.Equal(t, false, EncodeData(model.ValueTypeBoolean, "false"))
	assert.Equal(t, "maybe", EncodeData(model.ValueTypeBoolean, "maybe"))
	assert.Equal(t, "12", EncodeData(model.ValueTypeNumeric, "12"))
}

func TestBuildUpdatePayload_RoundTrip(t *testing.T) {
	t.Parallel()

	current := model.Values{
		"name":       {{Locale: "en_US", Data: "Old"}, {Locale: "fr_FR", Data: "Vieux"}},
		"materials":  {{Data: []any{"cotton"}}},
		"waterproof": {{Data: false}},
	}
	e := NewEngine(0.8)
	require.NoError(t, e.Load([]model.Proposal{
		{Code: "name", ProposedValue: "New", Confidence: 0.9, Locale: "en_US", Scope: "ecommerce"},
		{Code: "materials", ProposedValue: "cotton,wool", Confidence: 0.9, Locale: "en_US"},
		{Code: "waterproof", ProposedValue: "true", Confidence: 0.9},
	}, current, defs()))
	require.NoError(t, e.Edit(model.Key{Code: "name", Locale: "en_US", Scope: "ecommerce"}, "Edited"))

	// Simulate the store's per-attribute sequence replacement.
	stored := model.Values{}
	for code, slots := range current {
		stored[code] = slots
	}
	for code, slots := range e.Payload() {
		stored[code] = slots
	}

	for _, c := range e.Comparisons() {
		if !c.IsSelected {
			continue
		}
		locale, scope := c.TargetSlot()
		slot, ok := stored.Find(c.Code, locale, scope)
		require.True(t, ok, c.Code)
		got, _ := model.Stringify(slot.Data)
		assert.Equal(t, c.EffectiveValue(), got, c.Code)
	}
	slot, _ := stored.Find("name", "fr_FR", "")
	assert.Equal(t, "Vieux", slot.Data)
}

func TestBuildComparisons_TypedValuesMatchCurrent(t *testing.T) {
	t.Parallel()

	current := model.Values{
		"materials":  {{Data: []any{"cotton", "wool"}}},
		"waterproof": {{Data: true}},
	}
	cs, err := BuildComparisons([]model.Proposal{
		{Code: "materials", ProposedValue: "cotton, wool", Confidence: 0.95},
		{Code: "waterproof", ProposedValue: "Yes", Confidence: 0.95},
	}, current, defs(), DefaultConfidenceThreshold)
	require.NoError(t, err)
	for _, c := range cs {
		assert.False(t, c.IsDifferent, c.Code)
		assert.False(t, c.IsSelected, c.Code)
	}
}

func TestBuildUpdatePayload_SavedTypedValuesClearDifference(t *testing.T) {
	t.Parallel()

	current := model.Values{
		"materials":  {{Data: []any{"cotton"}}},
		"waterproof": {{Data: false}},
	}
	proposals := []model.Proposal{
		{Code: "materials", ProposedValue: "cotton, wool", Confidence: 0.9},
		{Code: "waterproof", ProposedValue: "yes", Confidence: 0.9},
	}
	e := NewEngine(0.8)
	require.NoError(t, e.Load(proposals, current, defs()))
	for _, c := range e.Comparisons() {
		require.True(t, c.IsSelected, c.Code)
	}

	// Re-read the saved values the way they come back over JSON.
	stored := model.Values{}
	for code, slots := range e.Payload() {
		for _, s := range slots {
			if codes, ok := s.Data.([]string); ok {
				list := make([]any, len(codes))
				for i, c := range codes {
					list[i] = c
				}
				s.Data = list
			}
			stored[code] = append(stored[code], s)
		}
	}

	cs, err := BuildComparisons(proposals, stored, defs(), 0.8)
	require.NoError(t, err)
	for _, c := range cs {
		assert.False(t, c.IsDifferent, c.Code)
		assert.False(t, c.IsSelected, c.Code)
	}
}
