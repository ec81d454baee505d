// Package api holds the value types exchanged between this core and its
// callers: generation options, chat messages, discovered models, and the
// JSON request/response shapes of the HTTP surface.
package api

// Options carries the sampling parameters common to all backends. Zero
// values mean "use the backend default".
type Options struct {
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Message is one turn of a chat history, oldest first.
type Message struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content" binding:"required"`
}

// ModelInfo describes one model discovered from a backend's enumeration
// endpoint. Size is best-effort and backend-specific ("7B", "4096MB", "").
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size string `json:"size,omitempty"`
}
