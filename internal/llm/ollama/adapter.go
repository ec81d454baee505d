// Package ollama adapts a local Ollama server to the provider contract
// using the official client library.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm"
	"github.com/threadwell/loom/pkg/api"
)

func init() {
	llm.Register(domain.KindOllama, NewAdapter)
}

const unreachableHint = "start the local server (ollama serve) and pull the model"

type Adapter struct {
	profile domain.Profile
	client  *ollama.Client
}

func NewAdapter(p domain.Profile) (llm.Provider, error) {
	base, err := url.Parse(p.Endpoint())
	if err != nil {
		return nil, domain.ConfigurationError(domain.KindOllama,
			fmt.Sprintf("invalid endpoint for profile %q: %v", p.ID, err),
			"check the profile's host, port and base_url")
	}
	return &Adapter{
		profile: p,
		client:  ollama.NewClient(base, &http.Client{Timeout: p.Timeout}),
	}, nil
}

func (a *Adapter) Name() string      { return a.profile.ID }
func (a *Adapter) Kind() domain.Kind { return domain.KindOllama }
func (a *Adapter) Probeable() bool   { return true }

func (a *Adapter) requireModel() error {
	if a.profile.Model == "" {
		return domain.ConfigurationError(domain.KindOllama,
			fmt.Sprintf("profile %q has no model", a.profile.ID),
			"set the profile's model to one pulled in Ollama")
	}
	return nil
}

func (a *Adapter) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	endpoint := a.profile.Endpoint()
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.TimeoutError(domain.KindOllama, endpoint, a.profile.Timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.TimeoutError(domain.KindOllama, endpoint, a.profile.Timeout, err)
	}

	var statusErr ollama.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 404:
			return domain.ConfigurationError(domain.KindOllama,
				fmt.Sprintf("model %q not found", a.profile.Model),
				fmt.Sprintf("pull it first (ollama pull %s)", a.profile.Model))
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return domain.ConfigurationError(domain.KindOllama,
				"request rejected: "+statusErr.Error(),
				"check the profile's model and parameters")
		default:
			return domain.UnavailableError(domain.KindOllama, endpoint,
				"backend error: "+statusErr.Error(), unreachableHint, err)
		}
	}

	return domain.UnavailableError(domain.KindOllama, endpoint, "unreachable", unreachableHint, err)
}

func sampling(opts *api.Options) map[string]any {
	if opts == nil {
		return nil
	}
	m := map[string]any{}
	if opts.Temperature != 0 {
		m["temperature"] = opts.Temperature
	}
	if opts.TopP != 0 {
		m["top_p"] = opts.TopP
	}
	if opts.MaxTokens != 0 {
		m["num_predict"] = opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		m["stop"] = opts.Stop
	}
	return m
}

func (a *Adapter) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	if err := a.requireModel(); err != nil {
		return "", err
	}

	req := &ollama.GenerateRequest{
		Model:   a.profile.Model,
		Prompt:  prompt,
		Stream:  new(bool),
		Options: sampling(opts),
	}

	var out strings.Builder
	err := a.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", a.mapErr(err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (a *Adapter) Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error) {
	if err := a.requireModel(); err != nil {
		return "", err
	}

	msgs := make([]ollama.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, ollama.Message{Role: m.Role, Content: m.Content})
	}
	req := &ollama.ChatRequest{
		Model:    a.profile.Model,
		Messages: msgs,
		Stream:   new(bool),
		Options:  sampling(opts),
	}

	var out strings.Builder
	err := a.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", a.mapErr(err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (a *Adapter) Complete(ctx context.Context, text string, opts *api.Options) (string, error) {
	return a.Generate(ctx, text, opts)
}

func (a *Adapter) Models(ctx context.Context) ([]api.ModelInfo, error) {
	resp, err := a.client.List(ctx)
	if err != nil {
		return nil, a.mapErr(err)
	}

	models := make([]api.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		size := m.Details.ParameterSize
		if size == "" && m.Size > 0 {
			size = fmt.Sprintf("%.0fMB", float64(m.Size)/(1<<20))
		}
		models = append(models, api.ModelInfo{ID: m.Name, Name: m.Name, Size: size})
	}
	return models, nil
}
