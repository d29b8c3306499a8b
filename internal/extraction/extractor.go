// Package extraction submits a document and attribute schema to an AI
// extractor and parses the returned proposals.
package extraction

import (
	"context"

	"github.com/sells-group/pim-enrich/internal/model"
)

// DefaultMaxOptionSamples is how many option labels are listed per select
// attribute before summarizing the rest.
const DefaultMaxOptionSamples = 10

// Request is everything one extraction call needs.
type Request struct {
	Document   model.Document
	Product    *model.Product
	Attributes []model.AttributeDefinition
	Template   model.PromptTemplate
	Mode       model.ExtractionMode
}

// Extractor produces proposals for a request. Implementations make exactly
// one upstream call and never retry.
type Extractor interface {
	Extract(ctx context.Context, req Request) ([]model.Proposal, error)
}

// extractionError wraps cause as an extraction error with a user message.
func extractionError(message string, cause error) error {
	return model.NewError(model.KindExtraction, message, cause)
}

// fillLabels sets missing proposal labels from the attribute definitions.
func fillLabels(ps []model.Proposal, defs []model.AttributeDefinition, locale string) {
	idx := model.AttributeIndex(defs)
	for i := range ps {
		if ps[i].Label != "" {
			continue
		}
		if d, ok := idx[ps[i].Code]; ok {
			ps[i].Label = d.DisplayLabel(locale)
		} else {
			ps[i].Label = ps[i].Code
		}
	}
}
