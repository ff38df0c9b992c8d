package chat

import "github.com/cloudwego/eino/schema"

// Role is the persisted speaker label of a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Valid reports whether r is one of the two internal roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAI
}

// APIRole maps the stored label to the model API vocabulary.
// Only "ai" is renamed; anything else read from disk passes through as-is.
func (r Role) APIRole() schema.RoleType {
	if r == RoleAI {
		return schema.Assistant
	}
	return schema.RoleType(r)
}

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a turn spoken by the user.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AITurn builds a turn spoken by the assistant.
func AITurn(content string) Turn {
	return Turn{Role: RoleAI, Content: content}
}
