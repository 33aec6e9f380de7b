package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry(h.deps)
	defer reg.Close()

	wf := reg.Create()
	require.NotEmpty(t, wf.ID())
	assert.Equal(t, StateIdle, wf.State())
	assert.Equal(t, 1, reg.Len())

	got, err := reg.Get(wf.ID())
	require.NoError(t, err)
	assert.Same(t, wf, got)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_EvictIdle(t *testing.T) {
	h := newHarness(t)
	now := fixedNow
	h.deps.Now = func() time.Time { return now }
	reg := NewRegistry(h.deps)
	defer reg.Close()

	stale := reg.Create()
	pending := reg.Create()
	_, err := pending.Submit(context.Background(), validFields())
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	fresh := reg.Create()

	now = now.Add(25 * time.Minute)
	evicted := reg.EvictIdle(30 * time.Minute)
	assert.Equal(t, []string{stale.ID()}, evicted)

	_, err = reg.Get(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = reg.Get(pending.ID())
	assert.NoError(t, err, "sessions awaiting confirmation are kept")
	_, err = reg.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestRegistry_CloseAbandonsPendingDelay(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry(h.deps)

	wf := reg.Create()
	_, err := wf.Submit(context.Background(), validFields())
	require.NoError(t, err)
	task, err := wf.Confirm(context.Background())
	require.NoError(t, err)

	reg.Close()
	assert.ErrorIs(t, waitTask(t, task), context.Canceled)
	assert.Equal(t, StateIdle, wf.State())
}
