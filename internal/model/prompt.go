package model

import "strings"

// DefaultPromptID is the template used when none or an unknown one is chosen.
const DefaultPromptID = "default"

// PromptTemplate is a named instruction set handed to the extractor.
type PromptTemplate struct {
	ID                 string `json:"id" yaml:"id"`
	Name               string `json:"name" yaml:"name"`
	SystemPrompt       string `json:"system_prompt" yaml:"system_prompt"`
	ExtractionGuidance string `json:"extraction_guidance" yaml:"extraction_guidance"`
}

// ExtractionMode selects which attributes are offered to the extractor.
type ExtractionMode string

const (
	// ModeAll offers every resolved attribute.
	ModeAll ExtractionMode = "all"
	// ModeEmpty offers only attributes with no current value.
	ModeEmpty ExtractionMode = "empty"
)

// ParseExtractionMode maps user input to a mode. Anything other than
// "empty" (case-insensitive) is ModeAll.
func ParseExtractionMode(s string) ExtractionMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeEmpty)) {
		return ModeEmpty
	}
	return ModeAll
}

// Guidance returns the mode-specific instruction appended to the prompt.
func (m ExtractionMode) Guidance() string {
	if m == ModeEmpty {
		return "Focus on filling the attributes listed below; they are currently empty on this product."
	}
	return "Extract values for all of the attributes listed below where the document provides evidence."
}
