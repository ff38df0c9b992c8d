// Package file stores each session as <dir>/<id>.json.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

const extension = ".json"

var _ store.Backend = (*Backend)(nil)

// Backend implements store.Backend on a directory of JSON documents.
type Backend struct {
	dir string
}

// New returns a Backend rooted at dir. The directory is created lazily on
// the first write so read-only listings of a missing dir return nothing.
func New(dir string) *Backend {
	return &Backend{dir: dir}
}

// Dir returns the storage root.
func (b *Backend) Dir() string {
	return b.dir
}

// path maps an id to its file. Only UUIDs are accepted so an id can never
// address a file outside dir.
func (b *Backend) path(id string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return filepath.Join(b.dir, id+extension), true
}

// Load reads and decodes one session.
func (b *Backend) Load(_ context.Context, id string) (*chat.Session, error) {
	path, ok := b.path(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "read session %s", id)
	}

	var session chat.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrapf(err, "decode session %s", id)
	}
	return &session, nil
}

// Save writes session to a temp file and renames it over the old record, so a
// reader sees either the previous or the new document, never a partial one.
func (b *Backend) Save(_ context.Context, session *chat.Session) error {
	path, ok := b.path(session.ID)
	if !ok {
		return errors.Errorf("invalid session id %q", session.ID)
	}
	data, err := encode(session)
	if err != nil {
		return errors.Wrapf(err, "encode session %s", session.ID)
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return errors.Wrap(err, "create chats directory")
	}

	tmp, err := os.CreateTemp(b.dir, "."+session.ID+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write session %s", session.ID)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync session %s", session.ID)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close session %s", session.ID)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "replace session %s", session.ID)
	}
	return nil
}

// Delete removes the session file.
func (b *Backend) Delete(_ context.Context, id string) error {
	path, ok := b.path(id)
	if !ok {
		return store.ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.ErrNotFound
		}
		return errors.Wrapf(err, "delete session %s", id)
	}
	return nil
}

// List decodes every *.json file in dir.
func (b *Backend) List(ctx context.Context) ([]chat.Summary, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []chat.Summary{}, nil
		}
		return nil, errors.Wrap(err, "read chats directory")
	}

	summaries := make([]chat.Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, extension) || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, extension)
		session, err := b.Load(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[store] skipping %s: not a session file", name)
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, session.Summary())
	}
	return summaries, nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

// encode writes two-space indented JSON with non-ASCII and HTML characters
// left as-is, the layout of existing session files.
func encode(session *chat.Session) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(session); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
