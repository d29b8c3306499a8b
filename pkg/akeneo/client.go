// Package akeneo provides a client for the Akeneo PIM REST API.
package akeneo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the PIM operations used for enrichment.
type Client interface {
	// GetProduct fetches a product by UUID.
	GetProduct(ctx context.Context, uuid string) (*Product, error)
	// PatchProduct applies a partial update. Only the supplied attribute
	// codes are touched; each supplied slot list replaces the stored one.
	PatchProduct(ctx context.Context, uuid string, patch ProductPatch) error
	// GetFamily fetches a family with its attribute code list.
	GetFamily(ctx context.Context, code string) (*Family, error)
	// GetAttribute fetches one attribute definition.
	GetAttribute(ctx context.Context, code string) (*Attribute, error)
	// ListAttributeOptions fetches every option of a select attribute.
	ListAttributeOptions(ctx context.Context, code string) ([]AttributeOption, error)
}

// Option configures the client.
type Option func(*client)

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithOptionPageSize sets the page size used when listing attribute options.
func WithOptionPageSize(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.optionPageSize = n
		}
	}
}

type client struct {
	transport      Transport
	limiter        *rate.Limiter
	optionPageSize int
}

// NewClient creates a PIM client over the given transport.
func NewClient(t Transport, opts ...Option) Client {
	c := &client{
		transport:      t,
		limiter:        rate.NewLimiter(10, 10),
		optionPageSize: 100,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) GetProduct(ctx context.Context, uuid string) (*Product, error) {
	var p Product
	if err := c.getJSON(ctx, "products-uuid/"+url.PathEscape(uuid), &p); err != nil {
		return nil, eris.Wrapf(err, "akeneo: get product %s", uuid)
	}
	return &p, nil
}

func (c *client) PatchProduct(ctx context.Context, uuid string, patch ProductPatch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return eris.Wrap(err, "akeneo: marshal patch")
	}
	path := "products-uuid/" + url.PathEscape(uuid)
	if _, err := c.call(ctx, http.MethodPatch, path, body); err != nil {
		return eris.Wrapf(err, "akeneo: patch product %s", uuid)
	}
	return nil
}

func (c *client) GetFamily(ctx context.Context, code string) (*Family, error) {
	var f Family
	if err := c.getJSON(ctx, "families/"+url.PathEscape(code), &f); err != nil {
		return nil, eris.Wrapf(err, "akeneo: get family %s", code)
	}
	return &f, nil
}

func (c *client) GetAttribute(ctx context.Context, code string) (*Attribute, error) {
	var a Attribute
	if err := c.getJSON(ctx, "attributes/"+url.PathEscape(code), &a); err != nil {
		return nil, eris.Wrapf(err, "akeneo: get attribute %s", code)
	}
	return &a, nil
}

func (c *client) ListAttributeOptions(ctx context.Context, code string) ([]AttributeOption, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.optionPageSize))
	path := "attributes/" + url.PathEscape(code) + "/options?" + q.Encode()

	var out []AttributeOption
	for path != "" {
		var page optionsPage
		if err := c.getJSON(ctx, path, &page); err != nil {
			return nil, eris.Wrapf(err, "akeneo: list options %s", code)
		}
		out = append(out, page.Embedded.Items...)

		path = ""
		if page.Links.Next != nil {
			path = relativePath(page.Links.Next.Href)
		}
	}
	return out, nil
}

func (c *client) getJSON(ctx context.Context, path string, dst any) error {
	body, err := c.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return eris.Wrap(err, "akeneo: decode response")
	}
	return nil
}

func (c *client) call(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "akeneo: rate limit wait")
	}
	status, data, err := c.transport.Do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Method: method, Path: path, StatusCode: status, Body: string(data)}
	}
	return data, nil
}

// relativePath converts an absolute pagination link into a path relative to
// the REST root.
func relativePath(href string) string {
	if i := strings.Index(href, apiPrefix); i >= 0 {
		return href[i+len(apiPrefix):]
	}
	return ""
}
