package api

// GenerateRequest asks the router for a one-shot generation.
type GenerateRequest struct {
	Prompt  string   `json:"prompt" binding:"required"`
	Tags    []string `json:"tags,omitempty"`
	Profile string   `json:"profile,omitempty"` // pin to a profile id, skipping selection
	Options *Options `json:"options,omitempty"`
}

// ChatRequest asks the router for a multi-turn chat completion.
type ChatRequest struct {
	Messages []Message `json:"messages" binding:"required,min=1,dive"`
	Tags     []string  `json:"tags,omitempty"`
	Profile  string    `json:"profile,omitempty"`
	Options  *Options  `json:"options,omitempty"`
}

// CompleteRequest asks the router to continue the given text.
type CompleteRequest struct {
	Text    string   `json:"text" binding:"required"`
	Tags    []string `json:"tags,omitempty"`
	Profile string   `json:"profile,omitempty"`
	Options *Options `json:"options,omitempty"`
}
