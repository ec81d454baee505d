package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadwell/loom/internal/config"
	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm"
	"github.com/threadwell/loom/internal/logger"
	"github.com/threadwell/loom/internal/probe"
	"github.com/threadwell/loom/internal/router"
	"github.com/threadwell/loom/pkg/api"
)

type scriptedProvider struct {
	id  string
	err error
}

func (s *scriptedProvider) Name() string      { return s.id }
func (s *scriptedProvider) Kind() domain.Kind { return domain.KindLMStudio }
func (s *scriptedProvider) Probeable() bool   { return true }

func (s *scriptedProvider) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "echo: " + prompt, nil
}

func (s *scriptedProvider) Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error) {
	return s.Generate(ctx, "chat", opts)
}

func (s *scriptedProvider) Complete(ctx context.Context, text string, opts *api.Options) (string, error) {
	return s.Generate(ctx, text, opts)
}

func (s *scriptedProvider) Models(ctx context.Context) ([]api.ModelInfo, error) {
	return []api.ModelInfo{{ID: "m1", Name: "m1"}}, nil
}

func newTestServer(t *testing.T, errs map[string]error) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	resolver := &config.Resolver{
		WorkDir:    dir,
		GlobalPath: filepath.Join(dir, "global.yaml"),
	}
	rt := router.New(router.WithBuilder(func(p domain.Profile) (llm.Provider, error) {
		return &scriptedProvider{id: p.ID, err: errs[p.ID]}, nil
	}))
	return New(logger.Get(), resolver, rt, probe.New()), dir
}

func writeProfiles(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".loom.yaml"), []byte(`
profiles:
  - id: fast-lm
    type: lmstudio
    tags: [fast]
    priority: 1
    model: qwen
    api_key: secret-key
default_profile: fast-lm
`), 0o644))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate(t *testing.T) {
	srv, dir := newTestServer(t, nil)
	writeProfiles(t, dir)

	body := strings.NewReader(`{"prompt": "hi", "tags": ["fast"]}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", body)
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp api.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "echo: hi", resp.Output)
	assert.Equal(t, "fast-lm", resp.Profile)
	assert.Equal(t, "lmstudio", resp.Backend)
}

func TestGenerate_MissingPromptRejected(t *testing.T) {
	srv, dir := newTestServer(t, nil)
	writeProfiles(t, dir)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "prompt")
}

func TestGenerate_AllProvidersFailed(t *testing.T) {
	srv, dir := newTestServer(t, map[string]error{
		"fast-lm": domain.UnavailableError(domain.KindLMStudio, "", "unreachable", "", nil),
	})
	writeProfiles(t, dir)

	body := strings.NewReader(`{"prompt": "hi", "tags": ["fast"]}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", body)
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Attempts, 1)
	assert.Equal(t, "fast-lm", resp.Attempts[0].Profile)
}

func TestGenerate_AuthErrorSurfacesWithoutFallback(t *testing.T) {
	srv, dir := newTestServer(t, map[string]error{
		"fast-lm": domain.AuthenticationError(domain.KindLMStudio, "", "missing api_key", "set the key"),
	})
	writeProfiles(t, dir)

	body := strings.NewReader(`{"prompt": "hi"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", body)
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "authentication", resp.Class)
	assert.Equal(t, "set the key", resp.Hint)
}

func TestListProfiles_RedactsKeys(t *testing.T) {
	srv, dir := newTestServer(t, nil)
	writeProfiles(t, dir)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/profiles", nil)
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-key")
	assert.Contains(t, w.Body.String(), "fast-lm")
}

func TestShowConfig_IncludesProvenance(t *testing.T) {
	srv, dir := newTestServer(t, nil)
	writeProfiles(t, dir)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var cfg domain.ResolvedConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, domain.SourceProject, cfg.Provenance["profiles"])
	assert.Equal(t, "fast-lm", cfg.DefaultProfileID)
}

func TestSaveProfileThenList(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	body := strings.NewReader(`{"profile": {"id": "new", "type": "ollama", "model": "llama3"}}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/profiles", body)
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/profiles", nil)
	srv.Handler().ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"new"`)
}

func TestModelsForProfile(t *testing.T) {
	srv, dir := newTestServer(t, nil)
	writeProfiles(t, dir)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/profiles/fast-lm/models", nil)
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Models, 1)
	assert.Equal(t, "m1", resp.Models[0].ID)
}

func TestUnknownProfileIs404(t *testing.T) {
	srv, dir := newTestServer(t, nil)
	writeProfiles(t, dir)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/profiles/ghost/probe", strings.NewReader(`{}`))
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
