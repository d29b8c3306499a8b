package extraction

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/pkg/anthropic"
	"github.com/sells-group/pim-enrich/pkg/gemini"
)

// Generator sends a prompt and a document to a multimodal model and returns
// the raw text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string, doc model.Document) (string, error)
}

// ModelExtractor builds the prompt locally and calls a model directly.
type ModelExtractor struct {
	gen     Generator
	prompts PromptBuilder
}

// NewModelExtractor creates a ModelExtractor.
func NewModelExtractor(gen Generator, prompts PromptBuilder) *ModelExtractor {
	return &ModelExtractor{gen: gen, prompts: prompts}
}

// Extract implements Extractor.
func (m *ModelExtractor) Extract(ctx context.Context, req Request) ([]model.Proposal, error) {
	prompt := m.prompts.Build(req)
	text, err := m.gen.Generate(ctx, prompt, req.Document)
	if err != nil {
		return nil, eris.Wrap(extractionError("", err), "extraction: generate")
	}
	proposals, err := ParseProposals(text)
	if err != nil {
		zap.L().Warn("extraction: unparseable model output", zap.String("text", truncate(text, 500)))
		return nil, eris.Wrap(err, "extraction: parse model output")
	}
	locale := m.prompts.Locale
	if locale == "" {
		locale = "en_US"
	}
	fillLabels(proposals, req.Attributes, locale)
	return proposals, nil
}

// AnthropicGenerator sends the document as a PDF document or image block.
type AnthropicGenerator struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, doc model.Document) (string, error) {
	temp := 0.2
	resp, err := g.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.Model,
		MaxTokens:   g.MaxTokens,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:        "user",
			Content:     prompt,
			Attachments: []anthropic.Attachment{{MediaType: doc.MIMEType, Data: doc.Data}},
		}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(g.Model, "extraction")
	return resp.Text(), nil
}

// GeminiGenerator sends the document as inline data.
type GeminiGenerator struct {
	Client          gemini.Client
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, doc model.Document) (string, error) {
	mime := doc.MIMEType
	if !doc.IsPDF() && !doc.IsImage() {
		mime = "application/pdf"
	}
	resp, err := g.Client.Generate(ctx, gemini.GenerateRequest{
		Model:           g.Model,
		Prompt:          prompt,
		FileMIMEType:    mime,
		FileData:        doc.Data,
		Temperature:     g.Temperature,
		MaxOutputTokens: g.MaxOutputTokens,
	})
	if err != nil {
		return "", err
	}
	zap.L().Info("cost attribution",
		zap.String("model", g.Model),
		zap.String("phase", "extraction"),
		zap.Int32("input_tokens", resp.InputTokens),
		zap.Int32("output_tokens", resp.OutputTokens),
	)
	return resp.Text, nil
}
