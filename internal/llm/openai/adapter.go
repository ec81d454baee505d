// Package openai adapts the OpenAI chat-completions API (and any server
// speaking the same dialect via base_url) to the provider contract.
package openai

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
	llm.Register(domain.KindOpenAI, NewAdapter)
}

const unreachableHint = "check the base_url and your network connection"

type Adapter struct {
	profile domain.Profile
	client  *http.Client
}

// NewAdapter accepts profiles without a credential so they can be saved
// and listed; every operation rejects the missing key at use time.
func NewAdapter(p domain.Profile) (llm.Provider, error) {
	return &Adapter{
		profile: p,
		client:  &http.Client{Timeout: p.Timeout},
	}, nil
}

func (a *Adapter) Name() string      { return a.profile.ID }
func (a *Adapter) Kind() domain.Kind { return domain.KindOpenAI }
func (a *Adapter) Probeable() bool   { return true }

func (a *Adapter) base() string {
	return strings.TrimRight(a.profile.Endpoint(), "/")
}

func (a *Adapter) headers() map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + a.profile.APIKey,
	}
	if a.profile.OrgID != "" {
		h["OpenAI-Organization"] = a.profile.OrgID
	}
	return h
}

func (a *Adapter) requireUsable() error {
	if a.profile.APIKey == "" {
		return domain.AuthenticationError(domain.KindOpenAI, a.base(),
			"missing api_key", "set LOOM_PROVIDER_API_KEY or the profile's api_key")
	}
	if a.profile.Model == "" {
		return domain.ConfigurationError(domain.KindOpenAI,
			fmt.Sprintf("profile %q has no model", a.profile.ID),
			"set the profile's model")
	}
	return nil
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
	TopP        float64       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *Adapter) chatCompletion(ctx context.Context, msgs []chatMessage, opts *api.Options) (string, error) {
	if err := a.requireUsable(); err != nil {
		return "", err
	}

	req := chatRequest{Model: a.profile.Model, Messages: msgs}
	if opts != nil {
		req.Temperature = opts.Temperature
		req.MaxTokens = opts.MaxTokens
		req.TopP = opts.TopP
		req.Stop = opts.Stop
	}

	url := a.base() + "/chat/completions"
	var resp chatResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, a.headers(), req, &resp); err != nil {
		return "", llm.MapTransportError(domain.KindOpenAI, url, unreachableHint, a.profile.Timeout, err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.UnavailableError(domain.KindOpenAI, url, "empty response", unreachableHint, nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (a *Adapter) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	return a.chatCompletion(ctx, []chatMessage{{Role: "user", Content: prompt}}, opts)
}

func (a *Adapter) Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error) {
	msgs := make([]chatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	return a.chatCompletion(ctx, msgs, opts)
}

func (a *Adapter) Complete(ctx context.Context, text string, opts *api.Options) (string, error) {
	// Chat completions double as plain completion; the legacy endpoint
	// is gone from current OpenAI deployments.
	return a.Generate(ctx, text, opts)
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *Adapter) Models(ctx context.Context) ([]api.ModelInfo, error) {
	if a.profile.APIKey == "" {
		return nil, domain.AuthenticationError(domain.KindOpenAI, a.base(),
			"missing api_key", "set LOOM_PROVIDER_API_KEY or the profile's api_key")
	}

	url := a.base() + "/models"
	var resp modelsResponse
	if _, err := httpclient.Get(ctx, a.client, url, a.headers(), &resp); err != nil {
		return nil, llm.MapTransportError(domain.KindOpenAI, url, unreachableHint, a.profile.Timeout, err)
	}

	models := make([]api.ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, api.ModelInfo{ID: m.ID, Name: m.ID})
	}
	return models, nil
}
