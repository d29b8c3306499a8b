package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/internal/session"
)

type createSessionRequest struct {
	ProductUUID string `json:"product_uuid"`
}

type editRequest struct {
	model.Key
	Value string `json:"value"`
}

func (s *Server) listPrompts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"prompts": s.deps.Prompts.List()})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, model.Errorf(model.KindNotFound, "The run ledger is not configured."))
		return
	}
	filter := model.RunFilter{
		ProductUUID: r.URL.Query().Get("product_uuid"),
		SessionID:   r.URL.Query().Get("session_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, model.Errorf(model.KindInvalidInput, "limit must be a non-negative integer."))
			return
		}
		filter.Limit = n
	}
	runs, err := s.deps.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.deps.Sessions.Create(r.Context(), req.ProductUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// session resolves the {id} path parameter, writing the error itself.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.deps.Sessions.Delete(sess.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	doc, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := sess.Extract(r.Context(), session.ExtractInput{
		Document: doc,
		PromptID: r.FormValue("prompt_id"),
		Mode:     modeParam(r.FormValue("mode")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// modeParam leaves an absent mode empty so the session default applies.
func modeParam(v string) model.ExtractionMode {
	if v == "" {
		return ""
	}
	return model.ParseExtractionMode(v)
}

// readUpload reads the multipart "file" field. The body is capped a little
// above the configured file size so oversize files still reach validation.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (model.Document, error) {
	limit := s.cfg.MaxFileBytes
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.Document{}, model.Errorf(model.KindInvalidInput,
				"The file is too large. Maximum size is %d MB.", limit/(1024*1024))
		}
		return model.Document{}, model.NewError(model.KindInvalidInput, "Expected a multipart form with a file field.", err)
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return model.Document{}, model.NewError(model.KindInvalidInput, "Please upload a file.", err)
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return model.Document{}, eris.Wrap(err, "api: read upload")
	}
	return model.NewDocument(header.Filename, header.Header.Get("Content-Type"), data), nil
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var key model.Key
	if err := decodeJSON(r, &key); err != nil {
		writeError(w, err)
		return
	}
	s.respondSnapshot(w)(sess.Toggle(key))
}

func (s *Server) edit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.respondSnapshot(w)(sess.Edit(req.Key, req.Value))
}

func (s *Server) selectAll(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		s.respondSnapshot(w)(sess.SelectAll())
	}
}

func (s *Server) deselectAll(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		s.respondSnapshot(w)(sess.DeselectAll())
	}
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.Cancel())
	}
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, err := sess.Save(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) respondSnapshot(w http.ResponseWriter) func(session.Snapshot, error) {
	return func(snap session.Snapshot, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
