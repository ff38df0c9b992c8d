package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
)

func TestRoleAPIRole(t *testing.T) {
	tests := []struct {
		role Role
		want schema.RoleType
	}{
		{RoleUser, schema.User},
		{RoleAI, schema.Assistant},
		{Role("system"), schema.System},
		{Role("assistant"), schema.Assistant},
	}

	for _, tt := range tests {
		if got := tt.role.APIRole(); got != tt.want {
			t.Errorf("Role(%q).APIRole() = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestSessionDecodesLegacyFile(t *testing.T) {
	raw := `{
  "id": "0b7c5f0e-6a4c-4c55-9a47-7d2c4f4d8e21",
  "title": "Hola",
  "messages": [
    {"role": "user", "content": "Hola"},
    {"role": "ai", "content": "¡Hola! ¿En qué puedo ayudarte?"}
  ],
  "created_at": "2024-05-01T10:11:12.123456"
}`

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		t.Fatalf("unmarshal legacy session: %v", err)
	}

	if len(session.Messages) != 2 || session.Messages[1].Role != RoleAI {
		t.Fatalf("unexpected messages: %+v", session.Messages)
	}
	want := time.Date(2024, 5, 1, 10, 11, 12, 123456000, time.Local)
	if !session.CreatedAt.Equal(want) {
		t.Fatalf("created_at = %v, want %v", session.CreatedAt.Time, want)
	}
}

func TestTimestampRoundTripsRFC3339(t *testing.T) {
	in := NewTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC))
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Timestamp
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Equal(in.Time) {
		t.Fatalf("round trip = %v, want %v", out.Time, in.Time)
	}
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := Session{ID: "a", Messages: []Turn{UserTurn("hi")}}
	clone := orig.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages = append(clone.Messages, AITurn("reply"))

	if orig.Messages[0].Content != "hi" || len(orig.Messages) != 1 {
		t.Fatalf("clone aliased original: %+v", orig.Messages)
	}
}
