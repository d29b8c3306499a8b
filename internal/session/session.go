// Package session runs one enrichment session against a product: load the
// record, extract proposals from a document, review them, and save the
// selected changes. Each class of long operation is single-flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/extraction"
	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/internal/reconcile"
	"github.com/sells-group/pim-enrich/internal/schema"
)

// Gateway reads and writes PIM records.
type Gateway interface {
	FetchRecord(ctx context.Context, uuid string) (*model.Product, error)
	UpdateRecord(ctx context.Context, uuid string, payload model.UpdatePayload) error
}

// SchemaResolver resolves the attribute schema for a product.
type SchemaResolver interface {
	Resolve(ctx context.Context, product *model.Product, mode model.ExtractionMode) (*schema.Schema, error)
}

// Prompts looks up prompt templates by id.
type Prompts interface {
	Get(id string) model.PromptTemplate
}

// RunRecorder writes the run ledger. store.Store satisfies it.
type RunRecorder interface {
	CreateRun(ctx context.Context, r *model.Run) error
	FinishRun(ctx context.Context, r *model.Run) error
}

// Deps are the collaborators of a session. Runs may be nil.
type Deps struct {
	Gateway   Gateway
	Resolver  SchemaResolver
	Extractor extraction.Extractor
	Prompts   Prompts
	Runs      RunRecorder
}

// Config holds per-session policy.
type Config struct {
	Threshold      float64
	MaxFileBytes   int64
	SupportedTypes []string
	DefaultPrompt  string
	DefaultMode    model.ExtractionMode
}

// ExtractInput is one extraction request.
type ExtractInput struct {
	Document model.Document
	PromptID string
	Mode     model.ExtractionMode
}

// SaveResult reports the outcome of Save.
type SaveResult struct {
	Success           bool     `json:"success"`
	Message           string   `json:"message"`
	UpdatedAttributes []string `json:"updated_attributes,omitempty"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID          string               `json:"id"`
	Product     *model.Product       `json:"product,omitempty"`
	State       reconcile.State      `json:"state"`
	Comparisons []model.Comparison   `json:"comparisons"`
	Selected    int                  `json:"selected"`
	Degraded    []string             `json:"degraded,omitempty"`
	PromptID    string               `json:"prompt_id"`
	Mode        model.ExtractionMode `json:"mode"`
	FileName    string               `json:"file_name,omitempty"`
	Extracting  bool                 `json:"extracting"`
	Saving      bool                 `json:"saving"`
	Message     string               `json:"message,omitempty"`
}

// Session is one enrichment session. Methods are safe for concurrent use;
// Extract and Save each reject a second concurrent call with a busy error.
type Session struct {
	id   string
	deps Deps
	cfg  Config

	extracting atomic.Bool
	saving     atomic.Bool
	loading    atomic.Bool

	mu            sync.Mutex
	product       *model.Product
	engine        *reconcile.Engine
	degraded      []string
	promptID      string
	mode          model.ExtractionMode
	fileName      string
	message       string
	cancelExtract context.CancelFunc
}

// New creates a session with no record loaded.
func New(id string, deps Deps, cfg Config) *Session {
	if cfg.DefaultPrompt == "" {
		cfg.DefaultPrompt = model.DefaultPromptID
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = model.ModeAll
	}
	return &Session{
		id:       id,
		deps:     deps,
		cfg:      cfg,
		engine:   reconcile.NewEngine(cfg.Threshold),
		promptID: cfg.DefaultPrompt,
		mode:     cfg.DefaultMode,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func busy(op string) error {
	return model.Errorf(model.KindBusy, "A %s is already in progress.", op)
}

// Load fetches the product record and discards any prior comparisons.
func (s *Session) Load(ctx context.Context, productUUID string) error {
	if productUUID == "" {
		return model.Errorf(model.KindInvalidInput, "A product UUID is required.")
	}
	if !s.loading.CompareAndSwap(false, true) {
		return busy("record load")
	}
	defer s.loading.Store(false)

	p, err := s.deps.Gateway.FetchRecord(ctx, productUUID)
	if err != nil {
		return eris.Wrap(err, "session: load record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.product = p
	s.engine.Reset()
	s.degraded = nil
	s.fileName = ""
	s.message = ""
	return nil
}

// Extract validates the document, resolves the attribute schema, runs the
// extractor once and loads the proposals into the engine. Any failure clears
// prior comparisons. The call carries no deadline of its own; Cancel aborts
// it.
func (s *Session) Extract(ctx context.Context, in ExtractInput) (Snapshot, error) {
	if !s.extracting.CompareAndSwap(false, true) {
		return Snapshot{}, busy("extraction")
	}
	defer s.extracting.Store(false)

	if err := in.Document.Validate(s.cfg.MaxFileBytes, s.cfg.SupportedTypes); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	product := s.product
	if product == nil {
		s.mu.Unlock()
		return Snapshot{}, model.Errorf(model.KindInvalidState, "Load a product before extracting.")
	}
	promptID := in.PromptID
	if promptID == "" {
		promptID = s.promptID
	}
	mode := in.Mode
	if mode == "" {
		mode = s.mode
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelExtract = cancel
	s.mu.Unlock()
	defer cancel()

	template := s.deps.Prompts.Get(promptID)
	run := &model.Run{
		SessionID:         s.id,
		ProductUUID:       product.UUID,
		ProductIdentifier: product.Identifier,
		Kind:              model.RunKindExtract,
		PromptID:          template.ID,
		Mode:              mode,
		FileName:          in.Document.Name,
	}
	s.startRun(ctx, run)

	log := zap.L().With(
		zap.String("session_id", s.id),
		zap.String("product_uuid", product.UUID),
		zap.String("prompt_id", template.ID),
		zap.String("mode", string(mode)),
	)

	sch, err := s.deps.Resolver.Resolve(ctx, product, mode)
	if err != nil {
		log.Warn("session: schema resolution failed, extracting without attribute context", zap.Error(err))
		sch = &schema.Schema{}
	}

	start := time.Now()
	proposals, err := s.deps.Extractor.Extract(ctx, extraction.Request{
		Document:   in.Document,
		Product:    product,
		Attributes: sch.Attributes,
		Template:   template,
		Mode:       mode,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			err = model.NewError(model.KindExtraction, "The extraction was cancelled.", err)
		case model.KindOf(err) == model.KindInternal:
			err = model.NewError(model.KindExtraction, "", err)
		}
		log.Error("session: extraction failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		s.clearAfterFailure(mode, promptID)
		s.finishRun(run, err)
		return Snapshot{}, eris.Wrap(err, "session: extract")
	}

	s.mu.Lock()
	if cerr := ctx.Err(); cerr != nil {
		s.mu.Unlock()
		err = model.NewError(model.KindExtraction, "The extraction was cancelled.", cerr)
		log.Info("session: extraction cancelled before results were applied")
		s.clearAfterFailure(mode, promptID)
		s.finishRun(run, err)
		return Snapshot{}, eris.Wrap(err, "session: extract")
	}
	if err := s.engine.Load(proposals, product.Values, sch.Attributes); err != nil {
		s.degraded = nil
		s.mu.Unlock()
		log.Error("session: malformed extractor output", zap.Error(err))
		s.finishRun(run, err)
		return Snapshot{}, eris.Wrap(err, "session: build comparisons")
	}
	s.degraded = sch.Degraded
	s.promptID = promptID
	s.mode = mode
	s.fileName = in.Document.Name
	s.message = fmt.Sprintf("AI extracted %d attribute suggestions", len(proposals))
	s.cancelExtract = nil
	run.Proposals = len(proposals)
	run.Selected = s.engine.Selected()
	snap := s.snapshotLocked()
	snap.Extracting = false
	s.mu.Unlock()

	log.Info("session: extraction complete",
		zap.Int("proposals", run.Proposals),
		zap.Int("auto_selected", run.Selected),
		zap.Duration("elapsed", time.Since(start)),
	)
	s.finishRun(run, nil)
	return snap, nil
}

func (s *Session) clearAfterFailure(mode model.ExtractionMode, promptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset()
	s.degraded = nil
	s.fileName = ""
	s.message = ""
	s.promptID = promptID
	s.mode = mode
	s.cancelExtract = nil
}

// Toggle flips selection of the comparisons at key.
func (s *Session) Toggle(key model.Key) (Snapshot, error) {
	return s.mutate(func(e *reconcile.Engine) error { return e.Toggle(key) })
}

// Edit overrides the value of the comparisons at key.
func (s *Session) Edit(key model.Key, value string) (Snapshot, error) {
	return s.mutate(func(e *reconcile.Engine) error { return e.Edit(key, value) })
}

// SelectAll selects every comparison.
func (s *Session) SelectAll() (Snapshot, error) {
	return s.mutate(func(e *reconcile.Engine) error { e.SelectAll(); return nil })
}

// DeselectAll deselects every comparison.
func (s *Session) DeselectAll() (Snapshot, error) {
	return s.mutate(func(e *reconcile.Engine) error { e.DeselectAll(); return nil })
}

func (s *Session) mutate(fn func(*reconcile.Engine) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.engine); err != nil {
		return Snapshot{}, err
	}
	return s.snapshotLocked(), nil
}

// Save writes the selected comparisons as one partial update. With nothing
// to write it succeeds without calling the PIM. On success the record is
// reloaded and the comparisons cleared; on failure selections are kept so
// the user can retry.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	if !s.saving.CompareAndSwap(false, true) {
		return SaveResult{}, busy("save")
	}
	defer s.saving.Store(false)

	s.mu.Lock()
	product := s.product
	selected := s.engine.Selected()
	payload := s.engine.Payload()
	s.mu.Unlock()

	if product == nil {
		return SaveResult{}, model.Errorf(model.KindInvalidState, "Load a product before saving.")
	}
	if selected == 0 || len(payload) == 0 {
		return SaveResult{Success: true, Message: "No changes to save"}, nil
	}

	codes := payload.Codes()
	run := &model.Run{
		SessionID:         s.id,
		ProductUUID:       product.UUID,
		ProductIdentifier: product.Identifier,
		Kind:              model.RunKindSave,
		Selected:          selected,
	}
	s.startRun(ctx, run)

	log := zap.L().With(zap.String("session_id", s.id), zap.String("product_uuid", product.UUID))
	if err := s.deps.Gateway.UpdateRecord(ctx, product.UUID, payload); err != nil {
		log.Error("session: save failed", zap.Error(err), zap.Strings("codes", codes))
		s.finishRun(run, err)
		return SaveResult{Success: false, Message: model.UserMessage(err)}, eris.Wrap(err, "session: save")
	}
	run.UpdatedAttributes = codes
	s.finishRun(run, nil)

	msg := fmt.Sprintf("Successfully updated %d attribute(s)", len(codes))
	log.Info("session: saved", zap.Strings("codes", codes))

	fresh, err := s.deps.Gateway.FetchRecord(ctx, product.UUID)
	if err != nil {
		log.Warn("session: reload after save failed", zap.Error(err))
	}

	s.mu.Lock()
	if fresh != nil {
		s.product = fresh
	}
	s.engine.Reset()
	s.degraded = nil
	s.fileName = ""
	s.message = msg
	s.mu.Unlock()

	return SaveResult{Success: true, Message: msg, UpdatedAttributes: codes}, nil
}

// Cancel discards all comparisons and aborts an in-flight extraction.
func (s *Session) Cancel() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelExtract != nil {
		s.cancelExtract()
		s.cancelExtract = nil
	}
	s.engine.Reset()
	s.degraded = nil
	s.fileName = ""
	s.message = ""
	return s.snapshotLocked()
}

// Payload returns the update the current selection would write.
func (s *Session) Payload() model.UpdatePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Payload()
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:          s.id,
		Product:     s.product,
		State:       s.engine.State(),
		Comparisons: s.engine.Comparisons(),
		Selected:    s.engine.Selected(),
		Degraded:    s.degraded,
		PromptID:    s.promptID,
		Mode:        s.mode,
		FileName:    s.fileName,
		Extracting:  s.extracting.Load(),
		Saving:      s.saving.Load(),
		Message:     s.message,
	}
}

// startRun records r as started. Ledger failures never fail the operation.
func (s *Session) startRun(ctx context.Context, r *model.Run) {
	if s.deps.Runs == nil {
		return
	}
	if err := s.deps.Runs.CreateRun(context.WithoutCancel(ctx), r); err != nil {
		zap.L().Warn("session: record run start", zap.String("session_id", s.id), zap.Error(err))
	}
}

func (s *Session) finishRun(r *model.Run, err error) {
	if s.deps.Runs == nil {
		return
	}
	r.Finish(err)
	if ferr := s.deps.Runs.FinishRun(context.Background(), r); ferr != nil {
		zap.L().Warn("session: record run finish", zap.String("run_id", r.ID), zap.Error(ferr))
	}
}
