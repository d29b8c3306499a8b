package reconcile

import (
	"github.com/sells-group/pim-enrich/internal/model"
)

// State is the lifecycle position of an engine.
type State string

const (
	StateEmpty    State = "empty"
	StateProposed State = "proposed"
	StateEdited   State = "edited"
)

// Engine owns the comparison set of one enrichment session. All changes go
// through its methods. It is not safe for concurrent use.
type Engine struct {
	threshold   float64
	state       State
	current     model.Values
	comparisons []model.Comparison
}

// NewEngine returns an empty engine. A non-positive threshold uses
// DefaultConfidenceThreshold.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Engine{threshold: threshold, state: StateEmpty}
}

// Threshold returns the auto-selection confidence threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Load replaces any prior comparisons with ones built from proposals. On a
// malformed proposal the engine is reset to empty and the error returned.
func (e *Engine) Load(proposals []model.Proposal, current model.Values, defs []model.AttributeDefinition) error {
	cs, err := BuildComparisons(proposals, current, defs, e.threshold)
	if err != nil {
		e.Reset()
		return err
	}
	e.current = current
	e.comparisons = cs
	e.state = StateProposed
	return nil
}

// Comparisons returns a copy of the comparison set.
func (e *Engine) Comparisons() []model.Comparison {
	out := make([]model.Comparison, len(e.comparisons))
	copy(out, e.comparisons)
	return out
}

// Selected returns the number of selected comparisons.
func (e *Engine) Selected() int { return model.CountSelected(e.comparisons) }

// Toggle flips the selection of every comparison at key.
func (e *Engine) Toggle(key model.Key) error {
	return e.apply(key, func(c *model.Comparison) {
		c.IsSelected = !c.IsSelected
	})
}

// Edit overrides the value of every comparison at key and recomputes its
// difference from the current value. Selection is left unchanged.
func (e *Engine) Edit(key model.Key, value string) error {
	err := e.apply(key, func(c *model.Comparison) {
		v := value
		c.EditedValue = &v
		c.IsDifferent = c.DiffersFrom(v)
	})
	if err == nil {
		e.state = StateEdited
	}
	return err
}

// SelectAll selects every comparison.
func (e *Engine) SelectAll() { e.setAll(true) }

// DeselectAll deselects every comparison.
func (e *Engine) DeselectAll() { e.setAll(false) }

func (e *Engine) setAll(selected bool) {
	for i := range e.comparisons {
		e.comparisons[i].IsSelected = selected
	}
}

// Payload builds the update for the selected comparisons.
func (e *Engine) Payload() model.UpdatePayload {
	return BuildUpdatePayload(e.comparisons, e.current)
}

// Reset discards all comparisons and returns to StateEmpty.
func (e *Engine) Reset() {
	e.comparisons = nil
	e.current = nil
	e.state = StateEmpty
}

func (e *Engine) apply(key model.Key, fn func(*model.Comparison)) error {
	if e.state == StateEmpty {
		return model.NewError(model.KindInvalidState, "There are no proposals to review.", nil)
	}
	found := false
	for i := range e.comparisons {
		if e.comparisons[i].Key() == key {
			fn(&e.comparisons[i])
			found = true
		}
	}
	if !found {
		return model.Errorf(model.KindNotFound, "No proposal for attribute %q (locale %q, scope %q).", key.Code, key.Locale, key.Scope)
	}
	return nil
}
