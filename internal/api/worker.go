package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/extraction"
	"github.com/sells-group/pim-enrich/internal/model"
)

// requireAPIKey rejects requests whose X-API-Key does not match the
// configured key. With no key configured every request passes.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" &&
			subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(s.cfg.APIKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, extraction.WorkerResponse{Message: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// workerExtract serves POST /v1/extract with the same wire contract the
// webhook extractor speaks, so one deployment can act as another's worker.
func (s *Server) workerExtract(w http.ResponseWriter, r *http.Request) {
	if s.deps.Extractor == nil {
		writeJSON(w, http.StatusNotFound, extraction.WorkerResponse{Message: "No extractor is configured."})
		return
	}
	if s.cfg.MaxFileBytes > 0 {
		// base64 inflates the file by a third; leave room for the schema.
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileBytes*4/3+4<<20)
	}

	var wr extraction.WorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&wr); err != nil {
		writeJSON(w, http.StatusBadRequest, extraction.WorkerResponse{Message: "The request body is not valid JSON."})
		return
	}
	req, err := wr.Decode()
	if err != nil {
		s.writeWorkerError(w, err)
		return
	}
	if err := req.Document.Validate(s.cfg.MaxFileBytes, s.cfg.SupportedTypes); err != nil {
		s.writeWorkerError(w, err)
		return
	}
	req.Template = s.deps.Prompts.Get(wr.PromptID)

	proposals, err := s.deps.Extractor.Extract(r.Context(), req)
	if err != nil {
		s.writeWorkerError(w, err)
		return
	}

	zap.L().Info("api: worker extraction complete",
		zap.String("product_uuid", req.Product.UUID),
		zap.String("prompt_id", req.Template.ID),
		zap.Int("proposals", len(proposals)),
	)
	writeJSON(w, http.StatusOK, extraction.WorkerResponse{
		Success:   true,
		Message:   fmt.Sprintf("Extracted %d attributes using %s", len(proposals), req.Template.Name),
		Proposals: proposals,
		Metadata: &extraction.WorkerMetadata{
			PromptTemplate:      req.Template.ID,
			ExtractionMode:      string(req.Mode),
			TotalAttributes:     len(req.Attributes),
			ExtractedAttributes: len(proposals),
		},
	})
}

func (s *Server) writeWorkerError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: worker extraction failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, status, extraction.WorkerResponse{Message: model.UserMessage(err)})
}
