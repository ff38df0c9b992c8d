package history

import (
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

func alternating(n int) []chat.Turn {
	turns := make([]chat.Turn, 0, n)
	for i := 1; i <= n; i++ {
		if i%2 == 1 {
			turns = append(turns, chat.UserTurn(fmt.Sprintf("u%d", i)))
		} else {
			turns = append(turns, chat.AITurn(fmt.Sprintf("a%d", i)))
		}
	}
	return turns
}

func TestBuildAPIMessagesShortHistory(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10} {
		t.Run(fmt.Sprintf("%d turns", n), func(t *testing.T) {
			turns := alternating(n)
			messages := BuildAPIMessages("be nice", turns)

			require.Len(t, messages, n+1)
			assert.Equal(t, schema.System, messages[0].Role)
			assert.Equal(t, "be nice", messages[0].Content)
			for i, turn := range turns {
				assert.Equal(t, turn.Content, messages[i+1].Content)
				assert.Equal(t, turn.Role.APIRole(), messages[i+1].Role)
			}
		})
	}
}

func TestBuildAPIMessagesKeepsLastTen(t *testing.T) {
	turns := alternating(12)
	messages := BuildAPIMessages("sys", turns)

	require.Len(t, messages, 11)
	assert.Equal(t, schema.System, messages[0].Role)

	var contents []string
	for _, msg := range messages[1:] {
		contents = append(contents, msg.Content)
	}
	assert.Equal(t, []string{"u3", "a4", "u5", "a6", "u7", "a8", "u9", "a10", "u11", "a12"}, contents)
}

func TestBuildAPIMessagesRoleMapping(t *testing.T) {
	turns := []chat.Turn{
		chat.UserTurn("hi"),
		chat.AITurn("hello"),
		{Role: "system", Content: "legacy"},
	}
	messages := BuildAPIMessages("sys", turns)

	assert.Equal(t, schema.User, messages[1].Role)
	assert.Equal(t, schema.Assistant, messages[2].Role)
	assert.Equal(t, schema.System, messages[3].Role)
}

func TestBuildAPIMessagesDoesNotMutateInput(t *testing.T) {
	turns := alternating(15)
	before := append([]chat.Turn(nil), turns...)

	BuildAPIMessages("sys", turns)

	assert.Equal(t, before, turns)
}
