package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/model"
)

// WebhookOption configures a WebhookExtractor.
type WebhookOption func(*WebhookExtractor)

// WithHTTPClient sets the HTTP client used for the webhook call.
func WithHTTPClient(hc *http.Client) WebhookOption {
	return func(w *WebhookExtractor) { w.http = hc }
}

// WithLabelLocale sets the locale used to fill proposal labels.
func WithLabelLocale(locale string) WebhookOption {
	return func(w *WebhookExtractor) { w.locale = locale }
}

// WebhookExtractor posts the request to an external extraction worker.
type WebhookExtractor struct {
	url    string
	apiKey string
	locale string
	http   *http.Client
}

// NewWebhookExtractor creates a WebhookExtractor. The default client has no
// timeout; the call is bounded only by the caller's context.
func NewWebhookExtractor(url, apiKey string, opts ...WebhookOption) *WebhookExtractor {
	w := &WebhookExtractor{url: url, apiKey: apiKey, locale: "en_US", http: &http.Client{}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Extract implements Extractor.
func (w *WebhookExtractor) Extract(ctx context.Context, req Request) ([]model.Proposal, error) {
	body, err := json.Marshal(NewWorkerRequest(req))
	if err != nil {
		return nil, eris.Wrap(err, "extraction: marshal webhook request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "extraction: create webhook request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		httpReq.Header.Set("X-API-Key", w.apiKey)
	}

	resp, err := w.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(extractionError("Could not reach the extraction service.", err), "extraction: webhook call")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(extractionError("", err), "extraction: read webhook response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.L().Warn("extraction: webhook returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(data), 500)),
		)
		msg := fmt.Sprintf("Extraction failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.Message != "" {
			msg = env.Message
		}
		return nil, eris.Wrap(extractionError(msg, eris.Errorf("webhook status %d", resp.StatusCode)), "extraction: webhook status")
	}

	proposals, err := parseWebhookBody(data)
	if err != nil {
		return nil, eris.Wrap(err, "extraction: parse webhook response")
	}
	fillLabels(proposals, req.Attributes, w.locale)
	return proposals, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
