package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/model"
)

type errorBody struct {
	Error string          `json:"error"`
	Kind  model.ErrorKind `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// writeError renders err as {"error", "kind"} with the status for its kind.
func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: model.UserMessage(err), Kind: kind})
}

func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindConflict, model.KindBusy, model.KindInvalidState:
		return http.StatusConflict
	case model.KindValidation:
		return http.StatusUnprocessableEntity
	case model.KindAuth:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInvalidInput:
		return http.StatusBadRequest
	case model.KindExtraction, model.KindMalformedProposal, model.KindTransport, model.KindSchemaResolution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewError(model.KindInvalidInput, "The request body is not valid JSON.", err)
	}
	return nil
}
