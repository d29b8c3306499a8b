package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_InlineData(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"[{\"code\":"},{"text":"\"name\"}]"}]}}],
			"usageMetadata":{"promptTokenCount":900,"candidatesTokenCount":40}
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model:           "gemini-2.5-flash",
		Prompt:          "Extract",
		FileMIMEType:    "application/pdf",
		FileData:        []byte("%PDF-1.4"),
		Temperature:     0.2,
		MaxOutputTokens: 8192,
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"code":"name"}]`, resp.Text)
	assert.Equal(t, int32(900), resp.InputTokens)

	contents := body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "application/pdf", inline["mimeType"])
	gen := body["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.2, gen["temperature"], 1e-6)
	assert.EqualValues(t, 8192, gen["maxOutputTokens"])
}

func TestGenerate_NoCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), GenerateRequest{Model: "gemini-2.5-flash", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}
