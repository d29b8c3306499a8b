// Package gateway reads and writes product records through the PIM REST API,
// converting wire types to the domain model and classifying failures.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/internal/resilience"
	"github.com/sells-group/pim-enrich/pkg/akeneo"
)

// Gateway is the record gateway over a PIM client. Reads are retried on
// transient failures; updates are not.
type Gateway struct {
	client akeneo.Client
	retry  resilience.RetryConfig
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetry sets the retry policy for reads.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *Gateway) { g.retry = cfg }
}

// New creates a Gateway.
func New(client akeneo.Client, opts ...Option) *Gateway {
	g := &Gateway{client: client, retry: resilience.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) retryCfg(op string) resilience.RetryConfig {
	cfg := g.retry
	cfg.OnRetry = resilience.RetryLogger("akeneo", op)
	return cfg
}

// FetchRecord loads a product by UUID.
func (g *Gateway) FetchRecord(ctx context.Context, uuid string) (*model.Product, error) {
	p, err := resilience.DoVal(ctx, g.retryCfg("get_product"), func(ctx context.Context) (*akeneo.Product, error) {
		return g.client.GetProduct(ctx, uuid)
	})
	if err != nil {
		return nil, eris.Wrap(Classify(err), "gateway: fetch record")
	}
	return toProduct(p), nil
}

// FetchFamilyAttributes returns the attribute codes of a family in order.
func (g *Gateway) FetchFamilyAttributes(ctx context.Context, family string) ([]string, error) {
	f, err := resilience.DoVal(ctx, g.retryCfg("get_family"), func(ctx context.Context) (*akeneo.Family, error) {
		return g.client.GetFamily(ctx, family)
	})
	if err != nil {
		return nil, eris.Wrap(Classify(err), "gateway: fetch family attributes")
	}
	return f.Attributes, nil
}

// FetchAttributeDefinition loads one attribute definition without options.
func (g *Gateway) FetchAttributeDefinition(ctx context.Context, code string) (model.AttributeDefinition, error) {
	a, err := resilience.DoVal(ctx, g.retryCfg("get_attribute"), func(ctx context.Context) (*akeneo.Attribute, error) {
		return g.client.GetAttribute(ctx, code)
	})
	if err != nil {
		return model.AttributeDefinition{}, eris.Wrap(Classify(err), "gateway: fetch attribute definition")
	}
	return model.AttributeDefinition{
		Code:        a.Code,
		Labels:      model.Labels(a.Labels),
		ValueType:   model.ParseValueType(a.Type),
		SourceType:  a.Type,
		Localizable: a.Localizable,
		Scopable:    a.Scopable,
	}, nil
}

// FetchAttributeOptions loads the option set of a select attribute.
func (g *Gateway) FetchAttributeOptions(ctx context.Context, code string) ([]model.Option, error) {
	opts, err := resilience.DoVal(ctx, g.retryCfg("list_options"), func(ctx context.Context) ([]akeneo.AttributeOption, error) {
		return g.client.ListAttributeOptions(ctx, code)
	})
	if err != nil {
		return nil, eris.Wrap(Classify(err), "gateway: fetch attribute options")
	}
	out := make([]model.Option, 0, len(opts))
	for _, o := range opts {
		out = append(out, model.Option{Code: o.Code, Labels: model.Labels(o.Labels)})
	}
	return out, nil
}

// UpdateRecord applies payload as a partial update.
func (g *Gateway) UpdateRecord(ctx context.Context, uuid string, payload model.UpdatePayload) error {
	patch := akeneo.ProductPatch{Values: make(map[string][]akeneo.Value, len(payload))}
	for code, slots := range payload {
		patch.Values[code] = toWireValues(slots)
	}
	if err := g.client.PatchProduct(ctx, uuid, patch); err != nil {
		zap.L().Debug("gateway: patch rejected", zap.String("product_uuid", uuid), zap.Error(err))
		return eris.Wrap(Classify(err), "gateway: update record")
	}
	return nil
}

// Classify converts a PIM client error into a domain error by status:
// 412 conflict, 422 validation, 401/403 auth, anything else transport.
// Errors that are already classified pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var de *model.Error
	if errors.As(err, &de) {
		return err
	}

	status := akeneo.StatusCode(err)
	var re *oauth2.RetrieveError
	if status == 0 && errors.As(err, &re) && re.Response != nil {
		// A rejected token request is a credentials problem.
		if re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
			status = http.StatusUnauthorized
		}
	}

	switch status {
	case http.StatusPreconditionFailed:
		return model.NewError(model.KindConflict, "", err)
	case http.StatusUnprocessableEntity:
		return model.NewError(model.KindValidation, "", err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.NewError(model.KindAuth, "", err)
	case 0:
		return model.NewError(model.KindTransport, "", err)
	default:
		return model.NewError(model.KindTransport, fmt.Sprintf("The PIM returned status %d.", status), err)
	}
}

func toProduct(p *akeneo.Product) *model.Product {
	values := make(model.Values, len(p.Values))
	for code, vs := range p.Values {
		slots := make([]model.ValueSlot, 0, len(vs))
		for _, v := range vs {
			slots = append(slots, model.ValueSlot{Locale: deref(v.Locale), Scope: deref(v.Scope), Data: v.Data})
		}
		values[code] = slots
	}
	return &model.Product{
		UUID:       p.UUID,
		Identifier: p.Identifier,
		Family:     p.Family,
		Parent:     p.Parent,
		Categories: p.Categories,
		Enabled:    p.Enabled,
		Values:     values,
		Created:    p.Created,
		Updated:    p.Updated,
	}
}

func toWireValues(slots []model.ValueSlot) []akeneo.Value {
	out := make([]akeneo.Value, 0, len(slots))
	for _, s := range slots {
		out = append(out, akeneo.Value{Locale: nullable(s.Locale), Scope: nullable(s.Scope), Data: s.Data})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
