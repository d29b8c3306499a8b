package model

import "strings"

// ValueType is the normalized kind of value an attribute holds.
type ValueType string

const (
	ValueTypeText         ValueType = "free-text"
	ValueTypeSingleSelect ValueType = "single-select"
	ValueTypeMultiSelect  ValueType = "multi-select"
	ValueTypeNumeric      ValueType = "numeric"
	ValueTypeBoolean      ValueType = "boolean"
	ValueTypeOther        ValueType = "other"
)

// akeneoTypes maps PIM attribute type identifiers to value types.
var akeneoTypes = map[string]ValueType{
	"pim_catalog_text":         ValueTypeText,
	"pim_catalog_textarea":     ValueTypeText,
	"pim_catalog_identifier":   ValueTypeText,
	"pim_catalog_simpleselect": ValueTypeSingleSelect,
	"pim_catalog_multiselect":  ValueTypeMultiSelect,
	"pim_catalog_number":       ValueTypeNumeric,
	"pim_catalog_boolean":      ValueTypeBoolean,
}

// ParseValueType maps a PIM attribute type (e.g. "pim_catalog_simpleselect")
// to a ValueType. Unknown non-empty types map to ValueTypeOther; an empty
// type maps to ValueTypeText.
func ParseValueType(pimType string) ValueType {
	if pimType == "" {
		return ValueTypeText
	}
	if vt, ok := akeneoTypes[strings.ToLower(pimType)]; ok {
		return vt
	}
	return ValueTypeOther
}

// IsSelect reports whether values are chosen from an option set.
func (t ValueType) IsSelect() bool {
	return t == ValueTypeSingleSelect || t == ValueTypeMultiSelect
}

// Option is one valid choice for a select attribute.
type Option struct {
	Code   string `json:"code"`
	Labels Labels `json:"labels,omitempty"`
}

// DisplayLabel returns the option label for locale, falling back to the code.
func (o Option) DisplayLabel(locale string) string {
	if l := o.Labels.Pick(locale); l != "" {
		return l
	}
	return o.Code
}

// AttributeDefinition identifies one enrichable field. It is always fully
// populated: attributes whose definition could not be fetched carry the
// generic free-text shape from GenericAttribute.
type AttributeDefinition struct {
	Code        string    `json:"code"`
	Labels      Labels    `json:"labels,omitempty"`
	ValueType   ValueType `json:"value_type"`
	SourceType  string    `json:"source_type,omitempty"`
	Localizable bool      `json:"localizable"`
	Scopable    bool      `json:"scopable"`
	Options     []Option  `json:"options,omitempty"`
}

// GenericAttribute returns the fallback definition used when no definition
// was resolved for code: free-text, not localizable, not scopable, no options.
func GenericAttribute(code string) AttributeDefinition {
	return AttributeDefinition{
		Code:      code,
		ValueType: ValueTypeText,
	}
}

// DisplayLabel returns the attribute label for locale, falling back to the code.
func (a AttributeDefinition) DisplayLabel(locale string) string {
	if l := a.Labels.Pick(locale); l != "" {
		return l
	}
	return a.Code
}

// AttributeIndex returns defs keyed by code. Later duplicates win.
func AttributeIndex(defs []AttributeDefinition) map[string]AttributeDefinition {
	idx := make(map[string]AttributeDefinition, len(defs))
	for _, d := range defs {
		idx[d.Code] = d
	}
	return idx
}

// EncodeValue converts a string value into the data shape written for the
// value type. Multi-select values become a list of trimmed option codes;
// booleans become bool when recognizable. Everything else stays a string.
func EncodeValue(vt ValueType, value string) any {
	switch vt {
	case ValueTypeMultiSelect:
		parts := strings.Split(value, ",")
		codes := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				codes = append(codes, p)
			}
		}
		return codes
	case ValueTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	}
	return value
}
