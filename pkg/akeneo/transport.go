package akeneo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
)

// apiPrefix is the REST root; transport paths are relative to it.
const apiPrefix = "/api/rest/v1/"

// tokenEarlyExpiry refreshes access tokens this long before the PIM's
// one-hour expiry.
const tokenEarlyExpiry = 5 * time.Minute

// Transport performs one REST call against a path relative to the API root
// (e.g. "products-uuid/<uuid>") and returns the status and raw body.
type Transport interface {
	Do(ctx context.Context, method, path string, body []byte) (int, []byte, error)
}

// DirectConfig holds the API connection credentials for the direct transport.
type DirectConfig struct {
	BaseURL  string
	ClientID string
	Secret   string
	Username string
	Password string
}

type directTransport struct {
	baseURL string
	http    *http.Client
}

// NewDirectTransport calls the PIM directly, authenticating with the OAuth2
// password grant (client id/secret as Basic auth). Tokens are fetched lazily
// and reused until shortly before expiry. A nil hc uses a 30s-timeout client.
func NewDirectTransport(cfg DirectConfig, hc *http.Client) Transport {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.Secret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  base + "/api/oauth/v1/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	src := oauth2.ReuseTokenSourceWithExpiry(nil, &passwordSource{
		conf:     oc,
		username: cfg.Username,
		password: cfg.Password,
		http:     hc,
	}, tokenEarlyExpiry)

	return &directTransport{
		baseURL: base,
		http: &http.Client{
			Timeout:   hc.Timeout,
			Transport: &oauth2.Transport{Source: src, Base: hc.Transport},
		},
	}
}

func (t *directTransport) Do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	return doRequest(ctx, t.http, method, t.baseURL+apiPrefix+strings.TrimLeft(path, "/"), body)
}

// passwordSource obtains a fresh token with the resource-owner password grant.
type passwordSource struct {
	conf     *oauth2.Config
	username string
	password string
	http     *http.Client
}

func (s *passwordSource) Token() (*oauth2.Token, error) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.http)
	tok, err := s.conf.PasswordCredentialsToken(ctx, s.username, s.password)
	if err != nil {
		return nil, eris.Wrap(err, "akeneo: password grant")
	}
	return tok, nil
}

type proxyTransport struct {
	proxyURL string
	http     *http.Client
}

// NewProxyTransport calls the PIM through a backend proxy that holds the
// credentials. The proxy takes the API path and method as query parameters
// ("?path=...&method=...") and forwards any JSON body. A nil hc uses a
// 30s-timeout client.
func NewProxyTransport(proxyURL string, hc *http.Client) Transport {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &proxyTransport{proxyURL: proxyURL, http: hc}
}

func (t *proxyTransport) Do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	u, err := url.Parse(t.proxyURL)
	if err != nil {
		return 0, nil, eris.Wrap(err, "akeneo: parse proxy url")
	}
	q := u.Query()
	q.Set("path", strings.TrimLeft(path, "/"))
	q.Set("method", method)
	u.RawQuery = q.Encode()

	verb := http.MethodGet
	if body != nil || method != http.MethodGet {
		verb = http.MethodPost
	}
	return doRequest(ctx, t.http, verb, u.String(), body)
}

func doRequest(ctx context.Context, hc *http.Client, method, rawURL string, body []byte) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rdr)
	if err != nil {
		return 0, nil, eris.Wrap(err, "akeneo: create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, eris.Wrap(err, "akeneo: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, eris.Wrap(err, "akeneo: read response body")
	}
	return resp.StatusCode, data, nil
}
