package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pim-enrich/internal/model"
)

func TestManager_Lifecycle(t *testing.T) {
	gw := &mockGateway{}
	gw.On("FetchRecord", mock.Anything, "p-1").Return(testProduct(), nil)
	gw.On("FetchRecord", mock.Anything, "missing").
		Return(nil, model.NewError(model.KindTransport, "The PIM returned status 404.", nil))

	m := NewManager(Deps{Gateway: gw, Prompts: fakePrompts{}}, Config{}, time.Minute)

	s, err := m.Create(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, "SKU-1", got.Snapshot().Product.Identifier)

	_, err = m.Create(context.Background(), "missing")
	assert.Equal(t, model.KindTransport, model.KindOf(err))
	assert.Equal(t, 1, m.Len())

	m.Delete(s.ID())
	_, err = m.Get(s.ID())
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
	assert.Zero(t, m.Len())
}

func TestManager_Expiry(t *testing.T) {
	gw := &mockGateway{}
	gw.On("FetchRecord", mock.Anything, "p-1").Return(testProduct(), nil)

	m := NewManager(Deps{Gateway: gw, Prompts: fakePrompts{}}, Config{}, 50*time.Millisecond)
	s, err := m.Create(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, err = m.Get(s.ID())
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
	assert.Zero(t, m.Len())
}

func TestManager_GetExtendsExpiry(t *testing.T) {
	gw := &mockGateway{}
	gw.On("FetchRecord", mock.Anything, "p-1").Return(testProduct(), nil)

	m := &Manager{cache: cache.New(300*time.Millisecond, 0), deps: Deps{Gateway: gw, Prompts: fakePrompts{}}}
	s, err := m.Create(context.Background(), "p-1")
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	_, err = m.Get(s.ID())
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	_, err = m.Get(s.ID())
	require.NoError(t, err)
}

func TestManager_GetDoesNotRestoreRemovedSession(t *testing.T) {
	gw := &mockGateway{}
	gw.On("FetchRecord", mock.Anything, "p-1").Return(testProduct(), nil)

	m := &Manager{cache: cache.New(20*time.Millisecond, 0), deps: Deps{Gateway: gw, Prompts: fakePrompts{}}}
	expired, err := m.Create(context.Background(), "p-1")
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)

	_, err = m.Get(expired.ID())
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
	assert.Empty(t, m.cache.Items())

	deleted, err := m.Create(context.Background(), "p-1")
	require.NoError(t, err)
	m.Delete(deleted.ID())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Get(deleted.ID())
			assert.Equal(t, model.KindNotFound, model.KindOf(err))
		}()
	}
	wg.Wait()
	assert.Zero(t, m.Len())
}
