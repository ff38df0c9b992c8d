package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/apperr"
	"github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
	"github.com/zhouzirui/z-chat/backend/internal/store/memory"
)

type cannedCompleter struct{}

func (cannedCompleter) Complete(context.Context, []*schema.Message, float32, int) (string, error) {
	return "canned reply", nil
}

// harness shares one in-memory service across several command runs.
type harness struct {
	svc    *chat.Service
	closed int
}

func newHarness() *harness {
	return &harness{
		svc: chat.NewService(store.New(memory.New(), store.Options{}), cannedCompleter{}, chat.Options{}),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, app := newRootCmd(func(context.Context) (*chat.Service, func() error, error) {
		return h.svc, func() error { h.closed++; return nil }, nil
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	require.NoError(t, app.close())
	return out.String(), err
}

func TestCreateListShow(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "create", "Hello", "there,", "how", "are", "you", "today", "friend?")
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 2)
	id := fields[0]
	assert.Equal(t, "Hello there, how are you to...", fields[1])

	out, err = h.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "TITLE")

	out, err = h.run(t, "send", id, "hola")
	require.NoError(t, err)
	assert.Equal(t, "canned reply\n", out)

	out, err = h.run(t, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "[user]\nhola")
	assert.Contains(t, out, "[ai]\ncanned reply")
	assert.Equal(t, 4, h.closed)
}

func TestRenameAndDelete(t *testing.T) {
	h := newHarness()
	session, err := h.svc.CreateSession(context.Background(), "old")
	require.NoError(t, err)

	out, err := h.run(t, "rename", session.ID, "brand", "new")
	require.NoError(t, err)
	assert.Contains(t, out, `"brand new"`)

	_, err = h.run(t, "delete", session.ID)
	require.NoError(t, err)

	_, err = h.run(t, "show", session.ID)
	assert.ErrorIs(t, err, apperr.KindNotFound)
	assert.Equal(t, 3, h.closed, "storage must be closed even when a command fails")
}

func TestListEmpty(t *testing.T) {
	out, err := newHarness().run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "no sessions\n", out)
}

func TestArgumentValidation(t *testing.T) {
	h := newHarness()

	_, err := h.run(t, "show")
	assert.Error(t, err)
	_, err = h.run(t, "send", "only-id")
	assert.Error(t, err)
}
