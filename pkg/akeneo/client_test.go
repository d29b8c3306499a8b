package akeneo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newPIMServer(t *testing.T, tokenCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "admin", r.PostForm.Get("username"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600,"refresh_token":"r"}`))
	})
	mux.HandleFunc("/api/rest/v1/products-uuid/p-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"uuid":"p-1","identifier":"SKU-1","family":"shirts","enabled":true,
				"values":{"description":[{"locale":"en_US","scope":"ecommerce","data":"Old"}],"weight":[{"locale":null,"scope":null,"data":"1.5"}]}}`))
		case http.MethodPatch:
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"values":{"weight":[{"locale":null,"scope":null,"data":"2"}]}}`, string(body))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/api/rest/v1/products-uuid/stale", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		_, _ = w.Write([]byte(`{"code":412,"message":"modified"}`))
	})
	return httptest.NewServer(mux)
}

func directClient(srvURL string) Client {
	t := NewDirectTransport(DirectConfig{
		BaseURL: srvURL + "/", ClientID: "client", Secret: "secret", Username: "admin", Password: "pw",
	}, nil)
	return NewClient(t, WithRateLimit(1000))
}

func TestDirect_GetAndPatchProduct(t *testing.T) {
	t.Parallel()

	var tokenCalls atomic.Int32
	srv := newPIMServer(t, &tokenCalls)
	defer srv.Close()

	c := directClient(srv.URL)
	p, err := c.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", p.Identifier)
	assert.Equal(t, "shirts", p.Family)
	require.Len(t, p.Values["description"], 1)
	assert.Equal(t, "en_US", *p.Values["description"][0].Locale)
	assert.Nil(t, p.Values["weight"][0].Locale)

	err = c.PatchProduct(context.Background(), "p-1", ProductPatch{Values: map[string][]Value{
		"weight": {{Data: "2"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load(), "token is reused across calls")
}

func TestDirect_StatusError(t *testing.T) {
	t.Parallel()

	var tokenCalls atomic.Int32
	srv := newPIMServer(t, &tokenCalls)
	defer srv.Close()

	err := directClient(srv.URL).PatchProduct(context.Background(), "stale", ProductPatch{})
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, StatusCode(err))
	assert.Contains(t, err.Error(), "412")
}

func TestProxy_ForwardsPathAndMethod(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		method := r.URL.Query().Get("method")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case path == "families/shirts" && method == http.MethodGet:
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte(`{"code":"shirts","attributes":["sku","color","size"]}`))
		case path == "products-uuid/p-1" && method == http.MethodPatch:
			assert.Equal(t, http.MethodPost, r.Method)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"values":{"color":[{"locale":"en_US","scope":null,"data":"red"}]}}`, string(body))
			_, _ = w.Write([]byte(`{"success":true}`))
		case path == "attributes/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Akeneo API error","status":404}`))
		default:
			t.Errorf("unexpected proxy call path=%q method=%q", path, method)
		}
	}))
	defer srv.Close()

	c := NewClient(NewProxyTransport(srv.URL+"/api/akeneo-proxy", nil))

	f, err := c.GetFamily(context.Background(), "shirts")
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "color", "size"}, f.Attributes)

	err = c.PatchProduct(context.Background(), "p-1", ProductPatch{Values: map[string][]Value{
		"color": {{Locale: strPtr("en_US"), Data: "red"}},
	}})
	require.NoError(t, err)

	_, err = c.GetAttribute(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestListAttributeOptions_Paginates(t *testing.T) {
	t.Parallel()

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		page := map[string]any{}
		if r.URL.Query().Get("page") == "2" {
			page["_embedded"] = map[string]any{"items": []map[string]any{{"code": "blue"}}}
		} else {
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			page["_embedded"] = map[string]any{"items": []map[string]any{
				{"code": "red", "labels": map[string]string{"en_US": "Red"}},
				{"code": "green"},
			}}
			page["_links"] = map[string]any{"next": map[string]string{
				"href": srvURL + "/api/rest/v1/attributes/color/options?page=2&limit=2",
			}}
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := NewClient(&staticTransport{base: srv.URL}, WithOptionPageSize(2))
	opts, err := c.ListAttributeOptions(context.Background(), "color")
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, "Red", opts[0].Labels["en_US"])
	assert.Equal(t, "blue", opts[2].Code)
}

func TestRelativePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "attributes/a/options?page=2", relativePath("https://pim.example.com/api/rest/v1/attributes/a/options?page=2"))
	assert.Equal(t, "", relativePath("https://elsewhere/x"))
}

// staticTransport talks to a test server without authentication.
type staticTransport struct{ base string }

func (s *staticTransport) Do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	return doRequest(ctx, http.DefaultClient, method, s.base+apiPrefix+path, body)
}
