// Package lmstudio adapts LM Studio's OpenAI-compatible local server to
// the provider contract. Unlike the cloud kinds it keeps the legacy
// /completions endpoint for plain generation, which LM Studio still
// serves.
package lmstudio

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/httpclient"
	"github.com/threadwell/loom/internal/llm"
	"github.com/threadwell/loom/pkg/api"
)

func init() {
	llm.Register(domain.KindLMStudio, NewAdapter)
}

const unreachableHint = "start the LM Studio local server (Settings > Server)"

type Adapter struct {
	profile domain.Profile
	client  *http.Client
}

func NewAdapter(p domain.Profile) (llm.Provider, error) {
	return &Adapter{
		profile: p,
		client:  &http.Client{Timeout: p.Timeout},
	}, nil
}

func (a *Adapter) Name() string      { return a.profile.ID }
func (a *Adapter) Kind() domain.Kind { return domain.KindLMStudio }
func (a *Adapter) Probeable() bool   { return true }

func (a *Adapter) base() string {
	return strings.TrimRight(a.profile.Endpoint(), "/")
}

func (a *Adapter) requireModel() error {
	if a.profile.Model == "" {
		return domain.ConfigurationError(domain.KindLMStudio,
			fmt.Sprintf("profile %q has no model", a.profile.ID),
			"set the profile's model to one loaded in LM Studio")
	}
	return nil
}

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Some servers answer /completions with a chat-shaped message; accept
// both.
type choiceResponse struct {
	Choices []struct {
		Text    string       `json:"text"`
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *choiceResponse) text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	c := r.Choices[0]
	if c.Text != "" {
		return c.Text
	}
	if c.Message != nil {
		return c.Message.Content
	}
	return ""
}

func (a *Adapter) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	if err := a.requireModel(); err != nil {
		return "", err
	}

	req := completionRequest{Model: a.profile.Model, Prompt: prompt}
	if opts != nil {
		req.Temperature = opts.Temperature
		req.MaxTokens = opts.MaxTokens
		req.Stop = opts.Stop
	}

	url := a.base() + "/completions"
	var resp choiceResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, nil, req, &resp); err != nil {
		return "", llm.MapTransportError(domain.KindLMStudio, url, unreachableHint, a.profile.Timeout, err)
	}
	return strings.TrimSpace(resp.text()), nil
}

func (a *Adapter) Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error) {
	if err := a.requireModel(); err != nil {
		return "", err
	}

	msgs := make([]chatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	req := chatRequest{Model: a.profile.Model, Messages: msgs}
	if opts != nil {
		req.Temperature = opts.Temperature
		req.MaxTokens = opts.MaxTokens
	}

	url := a.base() + "/chat/completions"
	var resp choiceResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, nil, req, &resp); err != nil {
		return "", llm.MapTransportError(domain.KindLMStudio, url, unreachableHint, a.profile.Timeout, err)
	}
	return strings.TrimSpace(resp.text()), nil
}

func (a *Adapter) Complete(ctx context.Context, text string, opts *api.Options) (string, error) {
	return a.Generate(ctx, text, opts)
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *Adapter) Models(ctx context.Context) ([]api.ModelInfo, error) {
	url := a.base() + "/models"
	var resp modelsResponse
	if _, err := httpclient.Get(ctx, a.client, url, nil, &resp); err != nil {
		return nil, llm.MapTransportError(domain.KindLMStudio, url, unreachableHint, a.profile.Timeout, err)
	}

	models := make([]api.ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, api.ModelInfo{ID: m.ID, Name: m.ID})
	}
	return models, nil
}
