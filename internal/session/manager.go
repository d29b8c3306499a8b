package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/model"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = time.Hour

// Manager keeps live sessions in memory and expires idle ones.
type Manager struct {
	cache *cache.Cache
	deps  Deps
	cfg   Config
}

// NewManager creates a Manager. A non-positive ttl uses DefaultTTL.
func NewManager(deps Deps, cfg Config, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := cache.New(ttl, ttl/4)
	c.OnEvicted(func(id string, v any) {
		if s, ok := v.(*Session); ok {
			s.Cancel()
		}
		zap.L().Debug("session: evicted", zap.String("session_id", id))
	})
	return &Manager{cache: c, deps: deps, cfg: cfg}
}

// Create starts a session for productUUID and loads the record. The session
// is registered only when the load succeeds.
func (m *Manager) Create(ctx context.Context, productUUID string) (*Session, error) {
	s := New(uuid.New().String(), m.deps, m.cfg)
	if err := s.Load(ctx, productUUID); err != nil {
		return nil, err
	}
	m.cache.Set(s.ID(), s, cache.DefaultExpiration)
	zap.L().Info("session: created", zap.String("session_id", s.ID()), zap.String("product_uuid", productUUID))
	return s, nil
}

// Get returns the session and extends its idle expiry. A session that is
// evicted or deleted concurrently is reported as not found, never re-added.
func (m *Manager) Get(id string) (*Session, error) {
	v, found := m.cache.Get(id)
	if !found {
		return nil, notFound(id)
	}
	s := v.(*Session)
	if err := m.cache.Replace(id, s, cache.DefaultExpiration); err != nil {
		return nil, notFound(id)
	}
	return s, nil
}

func notFound(id string) error {
	return model.Errorf(model.KindNotFound, "Session %s does not exist or has expired.", id)
}

// Delete cancels and removes the session. Unknown ids are ignored.
func (m *Manager) Delete(id string) {
	m.cache.Delete(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.ItemCount()
}
