package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/pkg/notion"
)

// Notion property names of the prompt template database.
const (
	propName     = "Name"
	propID       = "ID"
	propSystem   = "System Prompt"
	propGuidance = "Guidance"
)

// LoadPromptRegistry queries the Notion prompt database for all active
// templates. Pages without an ID or system prompt are skipped.
func LoadPromptRegistry(ctx context.Context, client notion.Client, dbID string) (*Registry, error) {
	pages, err := notion.QueryAll(ctx, client, dbID, notion.StatusEquals("Active"))
	if err != nil {
		return nil, eris.Wrap(err, "registry: load prompt registry")
	}

	templates := make([]model.PromptTemplate, 0, len(pages))
	for _, p := range pages {
		t, err := parsePromptPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed prompt page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		templates = append(templates, t)
	}
	zap.L().Info("registry: loaded prompt templates from notion", zap.Int("templates", len(templates)))
	return New(templates)
}

func parsePromptPage(p notionapi.Page) (model.PromptTemplate, error) {
	t := model.PromptTemplate{
		ID:                 notion.Text(p, propID),
		Name:               notion.Text(p, propName),
		SystemPrompt:       notion.Text(p, propSystem),
		ExtractionGuidance: notion.Text(p, propGuidance),
	}
	if t.ID == "" {
		return t, eris.New("missing ID property")
	}
	if t.SystemPrompt == "" {
		return t, eris.New("missing System Prompt property")
	}
	return t, nil
}
