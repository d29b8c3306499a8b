// Package registry holds the prompt templates offered to users and loads
// them from the embedded defaults, a YAML file, or a Notion database.
package registry

import (
	"context"
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/pkg/notion"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Source kinds accepted by Load.
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourceNotion   = "notion"
)

// Registry is an ordered, read-only set of prompt templates. It always
// contains DefaultPromptID.
type Registry struct {
	order []string
	byID  map[string]model.PromptTemplate
}

// New indexes templates in order. Later duplicates of an id replace earlier
// ones in place. When no template has the default id, the embedded default
// is prepended.
func New(templates []model.PromptTemplate) (*Registry, error) {
	r := &Registry{byID: make(map[string]model.PromptTemplate, len(templates))}
	for _, t := range templates {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, eris.Errorf("registry: template %q has no id", t.Name)
		}
		if t.Name == "" {
			t.Name = t.ID
		}
		if _, seen := r.byID[t.ID]; !seen {
			r.order = append(r.order, t.ID)
		}
		r.byID[t.ID] = t
	}

	if _, ok := r.byID[model.DefaultPromptID]; !ok {
		embedded, err := parseYAML(defaultPrompts)
		if err != nil {
			return nil, err
		}
		for _, t := range embedded {
			if t.ID == model.DefaultPromptID {
				r.order = append([]string{t.ID}, r.order...)
				r.byID[t.ID] = t
			}
		}
	}
	return r, nil
}

// Get returns the template for id, falling back to the default template for
// unknown or empty ids.
func (r *Registry) Get(id string) model.PromptTemplate {
	if t, ok := r.byID[strings.TrimSpace(id)]; ok {
		return t
	}
	return r.byID[model.DefaultPromptID]
}

// Has reports whether id names a registered template.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns the templates in registration order.
func (r *Registry) List() []model.PromptTemplate {
	out := make([]model.PromptTemplate, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Embedded returns the registry built from the compiled-in templates.
func Embedded() (*Registry, error) {
	ts, err := parseYAML(defaultPrompts)
	if err != nil {
		return nil, err
	}
	return New(ts)
}

// LoadFile reads a YAML list of templates from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read prompt file")
	}
	ts, err := parseYAML(data)
	if err != nil {
		return nil, err
	}
	return New(ts)
}

func parseYAML(data []byte) ([]model.PromptTemplate, error) {
	var ts []model.PromptTemplate
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal prompt templates")
	}
	return ts, nil
}

// Options selects where Load reads templates from.
type Options struct {
	Source     string
	File       string
	Notion     notion.Client
	DatabaseID string
}

// Load builds a registry from the configured source. An empty source means
// the embedded templates.
func Load(ctx context.Context, opts Options) (*Registry, error) {
	switch opts.Source {
	case "", SourceEmbedded:
		return Embedded()
	case SourceFile:
		if opts.File == "" {
			return nil, eris.New("registry: prompts.file is required for the file source")
		}
		return LoadFile(opts.File)
	case SourceNotion:
		if opts.Notion == nil || opts.DatabaseID == "" {
			return nil, eris.New("registry: notion token and prompt_db are required for the notion source")
		}
		return LoadPromptRegistry(ctx, opts.Notion, opts.DatabaseID)
	default:
		return nil, eris.Errorf("registry: unknown prompt source %q", opts.Source)
	}
}
