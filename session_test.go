package imageloop

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	msgs, err := store.Messages(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, store.Append(ctx, id, Message{Role: RoleUser, Content: "too dark"}))
	require.NoError(t, store.Append(ctx, id,
		Message{Role: RoleAssistant, Content: "a red bicycle at noon"},
		Message{Role: RoleUser, Content: "better"},
	))

	msgs, err = store.Messages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "too dark"},
		{Role: RoleAssistant, Content: "a red bicycle at noon"},
		{Role: RoleUser, Content: "better"},
	}, msgs)

	msgs[0].Content = "mutated"
	again, err := store.Messages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "too dark", again[0].Content)
}

func TestMemorySessionStore_UnknownSession(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.ErrorIs(t, store.Append(ctx, "missing", Message{}), ErrSessionNotFound)
	_, err := store.Messages(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStore_CancelledContext(t *testing.T) {
	store := NewMemorySessionStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemorySessionStore_Concurrent(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	id, err := store.Create(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, id, Message{Role: RoleUser, Content: "x"})
		}()
	}
	wg.Wait()

	msgs, err := store.Messages(ctx, id)
	require.NoError(t, err)
	assert.Len(t, msgs, 50)
}

func TestMemorySessionStore_Delete(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, id, Message{Role: RoleUser, Content: "darker sky"}))
	assert.Equal(t, 1, store.Len())

	store.Delete(id)
	store.Delete("never-created")
	assert.Equal(t, 0, store.Len())

	_, err = store.Messages(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
