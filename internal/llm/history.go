package llm

import (
	"strings"

	"github.com/threadwell/loom/pkg/api"
)

// FlattenHistory degrades a multi-turn history into one prompt for
// backends without native chat support. Each turn is prefixed with its
// role, chronologically, and a trailing "Assistant:" anchors the reply.
// This is a documented compromise of the CLI-bridge and embedded-engine
// adapters, never a silent one.
func FlattenHistory(history []api.Message) string {
	var b strings.Builder
	for _, m := range history {
		switch m.Role {
		case "assistant":
			b.WriteString("Assistant: ")
		case "system":
			b.WriteString("System: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}
