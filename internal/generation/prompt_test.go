package generation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTextParts(t *testing.T) {
	t.Run("offline bridge without credentials", func(t *testing.T) {
		parts := buildTextParts(Request{Prompt: "build a timer"})
		require.Len(t, parts, 4)
		assert.Equal(t, "User Prompt: build a timer", parts[0])
		assert.Contains(t, parts[1], "Offline")
	})

	t.Run("active bridge with credentials", func(t *testing.T) {
		parts := buildTextParts(Request{
			Prompt:      "build a crm",
			SupabaseURL: "https://x.supabase.co",
			SupabaseKey: "anon-key",
		})
		assert.Contains(t, parts[1], "BRIDGE ACTIVE")
		assert.Contains(t, parts[1], "https://x.supabase.co")
	})

	t.Run("history is bounded to the window", func(t *testing.T) {
		var history []ChatMessage
		for i := 0; i < historyWindow+5; i++ {
			history = append(history, ChatMessage{Role: "user", Content: fmt.Sprintf("msg-%d", i)})
		}
		parts := buildTextParts(Request{Prompt: "p", History: history})

		historyPart := parts[3]
		assert.False(t, strings.Contains(historyPart, `"msg-4"`), "entries before the window are dropped")
		assert.Contains(t, historyPart, `"msg-5"`)
		assert.Contains(t, historyPart, fmt.Sprintf(`"msg-%d"`, historyWindow+4))
	})
}
