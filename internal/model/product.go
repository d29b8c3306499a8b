package model

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// ValueSlot is one (locale, scope, data) triple of an attribute on a record.
// An empty Locale or Scope means the slot is not partitioned on that axis
// and is encoded as JSON null.
type ValueSlot struct {
	Locale string
	Scope  string
	Data   any
}

type valueSlotJSON struct {
	Locale *string `json:"locale"`
	Scope  *string `json:"scope"`
	Data   any     `json:"data"`
}

// MarshalJSON encodes empty locale/scope as null.
func (s ValueSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueSlotJSON{
		Locale: nullable(s.Locale),
		Scope:  nullable(s.Scope),
		Data:   s.Data,
	})
}

// UnmarshalJSON decodes null locale/scope as empty strings.
func (s *ValueSlot) UnmarshalJSON(b []byte) error {
	var raw valueSlotJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Locale = deref(raw.Locale)
	s.Scope = deref(raw.Scope)
	s.Data = raw.Data
	return nil
}

// Matches reports whether the slot sits at (locale, scope).
func (s ValueSlot) Matches(locale, scope string) bool {
	return s.Locale == locale && s.Scope == scope
}

// Values maps attribute codes to their ordered slot sequences.
type Values map[string][]ValueSlot

// Find returns the slot of code at exactly (locale, scope).
func (v Values) Find(code, locale, scope string) (ValueSlot, bool) {
	for _, s := range v[code] {
		if s.Matches(locale, scope) {
			return s, true
		}
	}
	return ValueSlot{}, false
}

// IsEmpty reports whether code has no slots, or every slot's data is null
// or an empty string.
func (v Values) IsEmpty(code string) bool {
	for _, s := range v[code] {
		if _, ok := Stringify(s.Data); ok {
			return false
		}
	}
	return true
}

// Product is the PIM record being enriched.
type Product struct {
	UUID       string   `json:"uuid"`
	Identifier string   `json:"identifier"`
	Family     string   `json:"family,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Enabled    bool     `json:"enabled"`
	Values     Values   `json:"values"`
	Created    string   `json:"created,omitempty"`
	Updated    string   `json:"updated,omitempty"`
}

// UpdatePayload maps attribute codes to the full slot sequence to persist for
// each touched attribute. The store replaces an attribute's whole sequence
// with the supplied one, so untouched slots must be carried through.
type UpdatePayload map[string][]ValueSlot

// Codes returns the touched attribute codes, sorted.
func (p UpdatePayload) Codes() []string {
	codes := make([]string, 0, len(p))
	for c := range p {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}

// Stringify renders slot data the way the comparison view shows it: strings
// as-is, numbers in shortest form, booleans as true/false, lists joined with
// commas, anything else as compact JSON. Null and "" report ok=false.
func Stringify(data any) (string, bool) {
	var s string
	switch v := data.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case bool:
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case json.Number:
		s = v.String()
	case []string:
		s = strings.Join(v, ",")
	case []any:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			p, _ := Stringify(e)
			parts = append(parts, p)
		}
		s = strings.Join(parts, ",")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		s = string(b)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
