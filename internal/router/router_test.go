package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm"
	_ "github.com/threadwell/loom/internal/llm/lmstudio"
	"github.com/threadwell/loom/pkg/api"
)

// fakeProvider scripts one backend's behavior per profile id.
type fakeProvider struct {
	profile domain.Profile
	err     error
	output  string
}

func (f *fakeProvider) Name() string      { return f.profile.ID }
func (f *fakeProvider) Kind() domain.Kind { return f.profile.Type }
func (f *fakeProvider) Probeable() bool   { return true }

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func (f *fakeProvider) Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error) {
	return f.Generate(ctx, "", opts)
}

func (f *fakeProvider) Complete(ctx context.Context, text string, opts *api.Options) (string, error) {
	return f.Generate(ctx, text, opts)
}

func (f *fakeProvider) Models(ctx context.Context) ([]api.ModelInfo, error) {
	return []api.ModelInfo{{ID: "fake"}}, nil
}

func fakeBuilder(errs map[string]error) llm.Factory {
	return func(p domain.Profile) (llm.Provider, error) {
		return &fakeProvider{profile: p, err: errs[p.ID], output: "from " + p.ID}, nil
	}
}

func twoProfiles() *domain.ResolvedConfig {
	return &domain.ResolvedConfig{
		Profiles: []domain.Profile{
			{ID: "p1", Type: domain.KindLMStudio, Tags: []string{"fast"}, Priority: 1},
			{ID: "p2", Type: domain.KindOllama, Tags: []string{"fast", "reasoning"}, Priority: 2},
		},
	}
}

func TestRoute_PriorityOrder(t *testing.T) {
	r := New(WithBuilder(fakeBuilder(nil)))

	result, err := r.Generate(context.Background(), twoProfiles(), Request{Tags: []string{"fast"}}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "p1", result.ProfileID)
	assert.Equal(t, "from p1", result.Output)
	assert.Empty(t, result.Attempts)
}

func TestRoute_FallbackOnUnavailable(t *testing.T) {
	errs := map[string]error{
		"p1": domain.UnavailableError(domain.KindLMStudio, "http://127.0.0.1:1234/v1", "unreachable", "", nil),
	}
	r := New(WithBuilder(fakeBuilder(errs)))

	result, err := r.Generate(context.Background(), twoProfiles(), Request{Tags: []string{"fast"}}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "p2", result.ProfileID)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, "p1", result.Attempts[0].ProfileID)
}

func TestRoute_NonTransientSurfacesImmediately(t *testing.T) {
	errs := map[string]error{
		"p1": domain.AuthenticationError(domain.KindLMStudio, "", "missing api_key", ""),
	}
	r := New(WithBuilder(fakeBuilder(errs)))

	_, err := r.Generate(context.Background(), twoProfiles(), Request{Tags: []string{"fast"}}, "hi")
	require.Error(t, err)

	var domErr *domain.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domain.ClassAuthentication, domErr.Class)
}

func TestRoute_AllCandidatesFail(t *testing.T) {
	errs := map[string]error{
		"p1": domain.UnavailableError(domain.KindLMStudio, "", "unreachable", "", nil),
		"p2": domain.TimeoutError(domain.KindOllama, "", 0, nil),
	}
	r := New(WithBuilder(fakeBuilder(errs)))

	_, err := r.Generate(context.Background(), twoProfiles(), Request{Tags: []string{"fast"}}, "hi")
	var failed *domain.AllProvidersFailedError
	require.ErrorAs(t, err, &failed)
	require.Len(t, failed.Attempts, 2)
	assert.Equal(t, "p1", failed.Attempts[0].ProfileID)
	assert.Equal(t, "p2", failed.Attempts[1].ProfileID)
}

func TestRoute_TagMissFallsBackToDefault(t *testing.T) {
	cfg := twoProfiles()
	cfg.Profiles[1].Tags = nil // only p1 carries tags now
	cfg.DefaultProfileID = "p2"
	r := New(WithBuilder(fakeBuilder(nil)))

	result, err := r.Generate(context.Background(), cfg, Request{Tags: []string{"imaginary"}}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "p2", result.ProfileID)
}

func TestRoute_TagMissWithoutDefaultUsesFirstActive(t *testing.T) {
	cfg := &domain.ResolvedConfig{
		Profiles: []domain.Profile{
			{ID: "only", Type: domain.KindOllama},
		},
	}
	r := New(WithBuilder(fakeBuilder(nil)))

	result, err := r.Generate(context.Background(), cfg, Request{Tags: []string{"imaginary"}}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "only", result.ProfileID)
}

func TestRoute_NoProfilesConfigured(t *testing.T) {
	r := New(WithBuilder(fakeBuilder(nil)))

	_, err := r.Generate(context.Background(), &domain.ResolvedConfig{}, Request{}, "hi")
	var noProvider *domain.NoProviderAvailableError
	require.ErrorAs(t, err, &noProvider)
}

func TestRoute_EmptyTagsMatchEverything(t *testing.T) {
	r := New(WithBuilder(fakeBuilder(nil)))

	result, err := r.Generate(context.Background(), twoProfiles(), Request{}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "p1", result.ProfileID)
}

func TestRoute_PinBypassesSelection(t *testing.T) {
	r := New(WithBuilder(fakeBuilder(nil)))

	result, err := r.Generate(context.Background(), twoProfiles(), Request{Pin: "p2"}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "p2", result.ProfileID)

	_, err = r.Generate(context.Background(), twoProfiles(), Request{Pin: "ghost"}, "hi")
	require.Error(t, err)
}

func TestRoute_StableOrderOnEqualPriority(t *testing.T) {
	cfg := &domain.ResolvedConfig{
		Profiles: []domain.Profile{
			{ID: "first", Type: domain.KindOllama, Tags: []string{"x"}, Priority: 1},
			{ID: "second", Type: domain.KindOllama, Tags: []string{"x"}, Priority: 1},
		},
	}
	r := New(WithBuilder(fakeBuilder(nil)))

	result, err := r.Generate(context.Background(), cfg, Request{Tags: []string{"x"}}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "first", result.ProfileID)
}

// Nothing listens on 9999; the real adapter fails with an unavailable
// error and the router reports exactly one attempt.
func TestRoute_DeadBackendThroughRealAdapter(t *testing.T) {
	cfg := &domain.ResolvedConfig{
		Profiles: []domain.Profile{
			{ID: "a", Type: domain.KindLMStudio, Tags: []string{"fast"}, Priority: 1,
				Host: "127.0.0.1", Port: 9999, Model: "m"},
		},
	}
	r := New()

	_, err := r.Generate(context.Background(), cfg, Request{Tags: []string{"fast"}}, "hi")
	var failed *domain.AllProvidersFailedError
	require.ErrorAs(t, err, &failed)
	require.Len(t, failed.Attempts, 1)
	assert.Equal(t, "a", failed.Attempts[0].ProfileID)
}
