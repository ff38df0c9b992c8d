// Package history turns a stored conversation into the bounded message list
// sent to the model.
package history

import (
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Limit is how many of the most recent turns are forwarded to the model.
// Older turns are dropped, not summarized.
const Limit = 10

// Window returns the last Limit turns in their original order. The result
// shares storage with turns.
func Window(turns []chat.Turn) []chat.Turn {
	if len(turns) <= Limit {
		return turns
	}
	return turns[len(turns)-Limit:]
}

// BuildAPIMessages prepends one system message to the windowed history and
// maps stored roles to the model vocabulary.
func BuildAPIMessages(systemPrompt string, turns []chat.Turn) []*schema.Message {
	recent := Window(turns)

	messages := make([]*schema.Message, 0, len(recent)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, turn := range recent {
		messages = append(messages, &schema.Message{
			Role:    turn.Role.APIRole(),
			Content: turn.Content,
		})
	}
	return messages
}
