package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	chatservice "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
	"github.com/zhouzirui/z-chat/backend/internal/store/memory"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(context.Context, []*schema.Message, float32, int) (string, error) {
	return s.reply, s.err
}

func setupRouter(client chatservice.Completer) (*chi.Mux, *chatservice.Service) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	now := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	chatSvc := chatservice.NewService(store.New(memory.New(), store.Options{Now: now}), client, chatservice.Options{})
	handler := New(chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return out
}

func createChat(t *testing.T, r http.Handler, message string) string {
	t.Helper()
	resp := doJSON(r, http.MethodPost, "/save-chat", map[string]string{"message": message})
	if resp.Code != http.StatusOK {
		t.Fatalf("save-chat: expected 200, got %d", resp.Code)
	}
	id, _ := decode(t, resp)["chatId"].(string)
	if id == "" {
		t.Fatal("save-chat returned no chatId")
	}
	return id
}

func TestSaveChatTruncatesTitle(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{})

	resp := doJSON(r, http.MethodPost, "/save-chat", map[string]string{"message": "Hello there, how are you today friend?"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decode(t, resp)
	if body["title"] != "Hello there, how are you to..." {
		t.Fatalf("unexpected title %v", body["title"])
	}
}

func TestSaveChatWithoutMessage(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{})

	resp := doJSON(r, http.MethodPost, "/save-chat", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if title := decode(t, resp)["title"]; title != "Nuevo Chat" {
		t.Fatalf("unexpected title %v", title)
	}
}

func TestSaveChatInvalidBody(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{})

	req := httptest.NewRequest(http.MethodPost, "/save-chat", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLoadChatsNewestFirst(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{})
	first := createChat(t, r, "first")
	second := createChat(t, r, "second")

	resp := doJSON(r, http.MethodGet, "/load-chats", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	chats, ok := decode(t, resp)["chats"].([]any)
	if !ok || len(chats) != 2 {
		t.Fatalf("unexpected chats payload: %s", resp.Body.String())
	}
	ids := []string{chats[0].(map[string]any)["id"].(string), chats[1].(map[string]any)["id"].(string)}
	if ids[0] != second || ids[1] != first {
		t.Fatalf("unexpected order %v", ids)
	}
	if _, ok := chats[0].(map[string]any)["created_at"]; !ok {
		t.Fatal("summary missing created_at")
	}
}

func TestLoadChatsEmpty(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{})

	resp := doJSON(r, http.MethodGet, "/load-chats", nil)
	if resp.Body.String() != "{\"chats\":[]}\n" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}

func TestLoadChat(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{})
	id := createChat(t, r, "hola")

	resp := doJSON(r, http.MethodGet, "/load-chat/"+id, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decode(t, resp)
	if body["id"] != id || body["title"] != "hola" {
		t.Fatalf("unexpected session %v", body)
	}
	if messages, ok := body["messages"].([]any); !ok || len(messages) != 0 {
		t.Fatalf("expected empty messages array, got %v", body["messages"])
	}

	missing := doJSON(r, http.MethodGet, "/load-chat/does-not-exist", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
	if decode(t, missing)["error"] != "Chat not found" {
		t.Fatalf("unexpected error body %s", missing.Body.String())
	}
}

func TestUpdateChatTitle(t *testing.T) {
	r, chatSvc := setupRouter(&stubCompleter{})
	id := createChat(t, r, "old")

	resp := doJSON(r, http.MethodPost, "/update-chat-title/"+id, map[string]string{"title": "new"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decode(t, resp)
	if body["success"] != true || body["title"] != "new" {
		t.Fatalf("unexpected body %v", body)
	}

	empty := doJSON(r, http.MethodPost, "/update-chat-title/"+id, map[string]string{"title": ""})
	if empty.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", empty.Code)
	}

	session, err := chatSvc.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if session.Title != "new" {
		t.Fatalf("title changed by rejected update: %q", session.Title)
	}

	missing := doJSON(r, http.MethodPost, "/update-chat-title/nope", map[string]string{"title": "x"})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
}

func TestDeleteChat(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{})
	id := createChat(t, r, "bye")

	resp := doJSON(r, http.MethodDelete, "/delete-chat/"+id, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if decode(t, resp)["success"] != true {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}

	again := doJSON(r, http.MethodDelete, "/delete-chat/"+id, nil)
	if again.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", again.Code)
	}
}

func TestChatReply(t *testing.T) {
	r, chatSvc := setupRouter(&stubCompleter{reply: "¡Hola!"})
	id := createChat(t, r, "Hola")

	resp := doJSON(r, http.MethodPost, "/chat", map[string]string{"chatId": id, "message": "Hola"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decode(t, resp)
	if body["message"] != "¡Hola!" || body["response"] != "¡Hola!" || body["chatId"] != id {
		t.Fatalf("unexpected body %v", body)
	}

	session, err := chatSvc.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(session.Messages))
	}
}

func TestChatErrors(t *testing.T) {
	r, chatSvc := setupRouter(&stubCompleter{err: errors.New("upstream exploded")})
	id := createChat(t, r, "x")

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing message", map[string]string{"chatId": id}, http.StatusBadRequest},
		{"missing chat id", map[string]string{"message": "hi"}, http.StatusBadRequest},
		{"unknown chat", map[string]string{"chatId": "0b7c5f0e-6a4c-4c55-9a47-7d2c4f4d8e21", "message": "hi"}, http.StatusNotFound},
		{"model failure", map[string]string{"chatId": id, "message": "hi"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		resp := doJSON(r, http.MethodPost, "/chat", tt.body)
		if resp.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, resp.Code)
		}
	}

	session, err := chatSvc.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if len(session.Messages) != 0 {
		t.Fatalf("failed call persisted turns: %+v", session.Messages)
	}
}
