package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/pim-enrich/internal/model"
)

// cleanJSON strips a surrounding markdown code fence (``` or ```json).
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the info string ("json") up to the first newline.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		if info := strings.TrimSpace(text[:nl]); !strings.ContainsAny(info, "[{") {
			text = text[nl+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// ParseProposals decodes extractor output into proposals. The text may be
// fenced. Elements must be JSON objects; a missing code is kept as an empty
// code so reconciliation can reject it. Optional fields default to zero
// values; a non-numeric confidence is 0 and numbers are clamped to [0,1].
func ParseProposals(text string) ([]model.Proposal, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, extractionError("The extractor returned no content.", nil)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, extractionError("The extractor response was not a JSON array of proposals.", err)
	}
	if raw == nil {
		return nil, extractionError("The extractor response was not a JSON array of proposals.", nil)
	}
	return decodeElements(raw)
}

func decodeElements(raw []json.RawMessage) ([]model.Proposal, error) {
	out := make([]model.Proposal, 0, len(raw))
	for i, el := range raw {
		var m map[string]any
		if err := json.Unmarshal(el, &m); err != nil || m == nil {
			return nil, extractionError(fmt.Sprintf("Proposal %d in the extractor response is not an object.", i), err)
		}
		out = append(out, proposalFromMap(m))
	}
	return out, nil
}

func proposalFromMap(m map[string]any) model.Proposal {
	value, _ := model.Stringify(m["proposedValue"])
	if value == "" {
		value, _ = model.Stringify(m["value"])
	}
	conf, _ := toFloat64(m["confidence"])
	return model.Proposal{
		Code:          strings.TrimSpace(stringField(m, "code")),
		Label:         stringField(m, "label"),
		ProposedValue: value,
		Confidence:    clamp01(conf),
		Locale:        stringField(m, "locale"),
		Scope:         stringField(m, "scope"),
		Reasoning:     stringField(m, "reasoning"),
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// toFloat64 accepts JSON numbers and numeric strings.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// envelope is the response shape of the extraction worker.
type envelope struct {
	Success   *bool             `json:"success"`
	Message   string            `json:"message"`
	Error     string            `json:"error"`
	Proposals []json.RawMessage `json:"proposals"`
}

// parseWebhookBody accepts either a bare proposal array (possibly fenced) or
// the worker envelope {success, message, proposals}.
func parseWebhookBody(body []byte) ([]model.Proposal, error) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return ParseProposals(trimmed)
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return nil, extractionError("The extractor response could not be parsed.", err)
	}
	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = "The extractor reported a failure."
		}
		return nil, extractionError(msg, nil)
	}
	if env.Proposals == nil {
		return nil, extractionError("The extractor response contained no proposals array.", nil)
	}
	return decodeElements(env.Proposals)
}
