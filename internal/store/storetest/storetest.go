// Package storetest runs the same behavioural checks against every
// store.Backend implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

// RunBackendTests exercises newBackend with a fresh instance per subtest.
func RunBackendTests(t *testing.T, newBackend func(t *testing.T) store.Backend) {
	t.Helper()

	t.Run("save and load", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		session := sample("Hola")
		session.Messages = []chat.Turn{chat.UserTurn("Hola"), chat.AITurn("¡Hola! <b>hi</b>")}
		require.NoError(t, b.Save(ctx, &session))

		got, err := b.Load(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.Title, got.Title)
		assert.Equal(t, session.Messages, got.Messages)
		assert.True(t, session.CreatedAt.Equal(got.CreatedAt.Time), "created_at %v != %v", got.CreatedAt, session.CreatedAt)
	})

	t.Run("save overwrites", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		session := sample("first")
		require.NoError(t, b.Save(ctx, &session))
		session.Title = "second"
		session.Messages = append(session.Messages, chat.UserTurn("again"))
		require.NoError(t, b.Save(ctx, &session))

		got, err := b.Load(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "second", got.Title)
		assert.Len(t, got.Messages, 1)
	})

	t.Run("load missing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Load(context.Background(), uuid.NewString())
		assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		session := sample("bye")
		require.NoError(t, b.Save(ctx, &session))
		require.NoError(t, b.Delete(ctx, session.ID))

		_, err := b.Load(ctx, session.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, b.Delete(ctx, session.ID), store.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		empty, err := b.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		ids := map[string]bool{}
		for _, title := range []string{"a", "b", "c"} {
			session := sample(title)
			require.NoError(t, b.Save(ctx, &session))
			ids[session.ID] = true
		}

		summaries, err := b.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 3)
		for _, summary := range summaries {
			assert.True(t, ids[summary.ID], "unexpected id %s", summary.ID)
		}
	})
}

func sample(title string) chat.Session {
	return chat.Session{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []chat.Turn{},
		CreatedAt: chat.NewTimestamp(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)),
	}
}
