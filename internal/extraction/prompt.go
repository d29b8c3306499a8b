package extraction

import (
	"fmt"
	"strings"

	"github.com/sells-group/pim-enrich/internal/model"
)

const outputInstructions = `IMPORTANT INSTRUCTIONS:
1. Return your response as a valid JSON array of objects
2. Each object should have: code, proposedValue, confidence, locale, scope, reasoning
3. Only include attributes you can extract from the document/image
4. Confidence should be a number between 0 and 1
5. For select/multiselect attributes, use ONLY the valid option codes provided
6. For text attributes, extract the exact text as it appears
7. Set locale to "en_US" and scope to "ecommerce" unless you have specific information
8. Provide brief reasoning for each extraction

Example response format:
[
  {
    "code": "name",
    "proposedValue": "Premium Widget",
    "confidence": 0.95,
    "locale": "en_US",
    "scope": "ecommerce",
    "reasoning": "Product name clearly visible in title"
  }
]`

// PromptBuilder renders the extraction prompt.
type PromptBuilder struct {
	// Locale picks attribute and option labels.
	Locale string
	// MaxOptionSamples caps listed options per attribute.
	MaxOptionSamples int
}

// Build renders the full user prompt for req.
func (b PromptBuilder) Build(req Request) string {
	identifier, family := "Unknown", "Unknown"
	if req.Product != nil {
		if req.Product.Identifier != "" {
			identifier = req.Product.Identifier
		}
		if req.Product.Family != "" {
			family = req.Product.Family
		}
	}

	var sb strings.Builder
	sb.WriteString(req.Template.SystemPrompt)
	sb.WriteString("\n\nPRODUCT CONTEXT:\n")
	fmt.Fprintf(&sb, "- Product Identifier: %s\n", identifier)
	fmt.Fprintf(&sb, "- Family: %s\n", family)
	sb.WriteString("\nEXTRACTION TASK:\n")
	sb.WriteString(req.Template.ExtractionGuidance)
	sb.WriteString("\n")
	sb.WriteString(req.Mode.Guidance())
	sb.WriteString("\n\n")
	sb.WriteString(b.AttributeContext(req.Attributes))
	sb.WriteString("\n")
	sb.WriteString(outputInstructions)
	fmt.Fprintf(&sb, "\n\nNow analyze the attached %s file and extract the requested attributes.", req.Document.MIMEType)
	return sb.String()
}

// AttributeContext lists attributes one per line:
// "N. code (label) - Type: t - Valid options: a, b (and K more)".
func (b PromptBuilder) AttributeContext(attrs []model.AttributeDefinition) string {
	if len(attrs) == 0 {
		return "No specific attributes defined.\n"
	}
	locale := b.Locale
	if locale == "" {
		locale = "en_US"
	}
	maxOpts := b.MaxOptionSamples
	if maxOpts <= 0 {
		maxOpts = DefaultMaxOptionSamples
	}

	var sb strings.Builder
	sb.WriteString("Extract the following product attributes:\n\n")
	for i, a := range attrs {
		fmt.Fprintf(&sb, "%d. %s", i+1, a.Code)
		if l := a.Labels.Pick(locale); l != "" {
			fmt.Fprintf(&sb, " (%s)", l)
		}
		typ := a.SourceType
		if typ == "" {
			typ = string(a.ValueType)
		}
		if typ != "" {
			fmt.Fprintf(&sb, " - Type: %s", typ)
		}
		if len(a.Options) > 0 {
			n := min(len(a.Options), maxOpts)
			labels := make([]string, 0, n)
			for _, o := range a.Options[:n] {
				labels = append(labels, o.DisplayLabel(locale))
			}
			fmt.Fprintf(&sb, " - Valid options: %s", strings.Join(labels, ", "))
			if extra := len(a.Options) - n; extra > 0 {
				fmt.Fprintf(&sb, " (and %d more)", extra)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
