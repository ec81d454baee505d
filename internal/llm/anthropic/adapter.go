// Package anthropic adapts the Anthropic Messages API to the provider
// contract.
package anthropic

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
	llm.Register(domain.KindAnthropic, NewAdapter)
}

// Anthropic requires a version header on every request.
const apiVersion = "2023-06-01"

const unreachableHint = "check the base_url and your network connection"

const defaultMaxTokens = 1024

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
func (a *Adapter) Kind() domain.Kind { return domain.KindAnthropic }
func (a *Adapter) Probeable() bool   { return true }

func (a *Adapter) base() string {
	return strings.TrimRight(a.profile.Endpoint(), "/")
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.profile.APIKey,
		"anthropic-version": apiVersion,
	}
}

func (a *Adapter) requireUsable() error {
	if a.profile.APIKey == "" {
		return domain.AuthenticationError(domain.KindAnthropic, a.base(),
			"missing api_key", "set LOOM_PROVIDER_API_KEY or the profile's api_key")
	}
	if a.profile.Model == "" {
		return domain.ConfigurationError(domain.KindAnthropic,
			fmt.Sprintf("profile %q has no model", a.profile.ID),
			"set the profile's model")
	}
	return nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Adapter) messages(ctx context.Context, msgs []message, system string, opts *api.Options) (string, error) {
	if err := a.requireUsable(); err != nil {
		return "", err
	}

	req := messagesRequest{
		Model:     a.profile.Model,
		Messages:  msgs,
		System:    system,
		MaxTokens: defaultMaxTokens,
	}
	if opts != nil {
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		req.Temperature = opts.Temperature
		req.TopP = opts.TopP
	}

	url := a.base() + "/messages"
	var resp messagesResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, a.headers(), req, &resp); err != nil {
		return "", llm.MapTransportError(domain.KindAnthropic, url, unreachableHint, a.profile.Timeout, err)
	}

	var b strings.Builder
	for _, part := range resp.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (a *Adapter) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	return a.messages(ctx, []message{{Role: "user", Content: prompt}}, "", opts)
}

func (a *Adapter) Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error) {
	// The Messages API takes system text out of band.
	var system string
	msgs := make([]message, 0, len(history))
	for _, m := range history {
		if m.Role == "system" {
			system += m.Content + "\n"
			continue
		}
		msgs = append(msgs, message{Role: m.Role, Content: m.Content})
	}
	return a.messages(ctx, msgs, strings.TrimSpace(system), opts)
}

func (a *Adapter) Complete(ctx context.Context, text string, opts *api.Options) (string, error) {
	return a.Generate(ctx, text, opts)
}

type modelsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

func (a *Adapter) Models(ctx context.Context) ([]api.ModelInfo, error) {
	if a.profile.APIKey == "" {
		return nil, domain.AuthenticationError(domain.KindAnthropic, a.base(),
			"missing api_key", "set LOOM_PROVIDER_API_KEY or the profile's api_key")
	}

	url := a.base() + "/models"
	var resp modelsResponse
	if _, err := httpclient.Get(ctx, a.client, url, a.headers(), &resp); err != nil {
		return nil, llm.MapTransportError(domain.KindAnthropic, url, unreachableHint, a.profile.Timeout, err)
	}

	models := make([]api.ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		name := m.DisplayName
		if name == "" {
			name = m.ID
		}
		models = append(models, api.ModelInfo{ID: m.ID, Name: name})
	}
	return models, nil
}
