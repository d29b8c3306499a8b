// Package schema resolves the enrichable attribute definitions of a product's
// family.
package schema

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pim-enrich/internal/model"
)

// DefaultMaxAttributes bounds how many attribute definitions are fetched
// per resolution.
const DefaultMaxAttributes = 15

// Source provides the PIM reads the resolver needs.
type Source interface {
	FetchFamilyAttributes(ctx context.Context, family string) ([]string, error)
	FetchAttributeDefinition(ctx context.Context, code string) (model.AttributeDefinition, error)
	FetchAttributeOptions(ctx context.Context, code string) ([]model.Option, error)
}

// Config tunes a Resolver.
type Config struct {
	MaxAttributes int
	Concurrency   int
	// Allowlist restricts resolution to these codes when non-empty.
	Allowlist []string
}

// Schema is a resolved attribute set.
type Schema struct {
	Attributes []model.AttributeDefinition `json:"attributes"`
	// Degraded lists codes whose definition could not be fetched and were
	// included as generic free-text.
	Degraded []string `json:"degraded,omitempty"`
}

// Resolver is the attribute schema resolver.
type Resolver struct {
	src Source
	cfg Config
}

// NewResolver creates a Resolver.
func NewResolver(src Source, cfg Config) *Resolver {
	if cfg.MaxAttributes <= 0 {
		cfg.MaxAttributes = DefaultMaxAttributes
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &Resolver{src: src, cfg: cfg}
}

// Resolve fetches the definitions of the product family's attributes, capped
// at MaxAttributes and in family order. Per-attribute failures degrade to the
// generic free-text definition; an option-set failure keeps the type with no
// options. Only a failed family lookup is an error. In ModeEmpty the result
// keeps only attributes with no current value on product.
func (r *Resolver) Resolve(ctx context.Context, product *model.Product, mode model.ExtractionMode) (*Schema, error) {
	if product.Family == "" {
		return &Schema{}, nil
	}

	codes, err := r.src.FetchFamilyAttributes(ctx, product.Family)
	if err != nil {
		return nil, eris.Wrap(model.NewError(model.KindSchemaResolution, "", err), "schema: fetch family")
	}
	codes = r.selectCodes(codes)

	defs := make([]model.AttributeDefinition, len(codes))
	degraded := make([]bool, len(codes))

	// Fetches are independent; a failure must not cancel the others, so the
	// group is used without a derived context and every func returns nil.
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, code := range codes {
		g.Go(func() error {
			defs[i], degraded[i] = r.resolveOne(ctx, code)
			return nil
		})
	}
	_ = g.Wait()

	s := &Schema{}
	for i, d := range defs {
		if degraded[i] {
			s.Degraded = append(s.Degraded, d.Code)
		}
		if mode == model.ModeEmpty && !product.Values.IsEmpty(d.Code) {
			continue
		}
		s.Attributes = append(s.Attributes, d)
	}

	zap.L().Debug("schema: resolved",
		zap.String("family", product.Family),
		zap.String("mode", string(mode)),
		zap.Int("attributes", len(s.Attributes)),
		zap.Int("degraded", len(s.Degraded)),
	)
	return s, nil
}

func (r *Resolver) selectCodes(codes []string) []string {
	out := make([]string, 0, min(len(codes), r.cfg.MaxAttributes))
	for _, c := range codes {
		if len(r.cfg.Allowlist) > 0 && !slices.Contains(r.cfg.Allowlist, c) {
			continue
		}
		out = append(out, c)
		if len(out) == r.cfg.MaxAttributes {
			break
		}
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, code string) (model.AttributeDefinition, bool) {
	def, err := r.src.FetchAttributeDefinition(ctx, code)
	if err != nil {
		zap.L().Warn("schema: attribute definition unavailable, using free-text",
			zap.String("code", code), zap.Error(err))
		return model.GenericAttribute(code), true
	}
	if def.Code == "" {
		def.Code = code
	}
	if !def.ValueType.IsSelect() {
		return def, false
	}

	opts, err := r.src.FetchAttributeOptions(ctx, code)
	if err != nil {
		zap.L().Warn("schema: attribute options unavailable",
			zap.String("code", code), zap.Error(err))
		def.Options = nil
		return def, false
	}
	def.Options = opts
	return def, false
}
