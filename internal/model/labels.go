package model

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Labels maps PIM locale codes (e.g. "en_US") to display text.
type Labels map[string]string

// Pick returns the label best matching locale. An exact key match wins;
// otherwise the closest locale by language matching is used (so "en_GB"
// falls back to "en_US"). Returns "" when there are no labels.
func (l Labels) Pick(locale string) string {
	if len(l) == 0 {
		return ""
	}
	if v, ok := l[locale]; ok && v != "" {
		return v
	}

	// Deterministic candidate order so ties resolve the same way every call.
	keys := make([]string, 0, len(l))
	for k, v := range l {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	tags := make([]language.Tag, 0, len(keys))
	parsed := make([]string, 0, len(keys))
	for _, k := range keys {
		tag, err := language.Parse(toBCP47(k))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		parsed = append(parsed, k)
	}
	if len(tags) == 0 {
		return l[keys[0]]
	}

	want, err := language.Parse(toBCP47(locale))
	if err != nil {
		return l[parsed[0]]
	}
	_, idx, conf := language.NewMatcher(tags).Match(want)
	if conf == language.No {
		return l[parsed[0]]
	}
	return l[parsed[idx]]
}

// toBCP47 converts a PIM locale code ("fr_FR") into a BCP 47 tag ("fr-FR").
func toBCP47(locale string) string {
	return strings.ReplaceAll(locale, "_", "-")
}
