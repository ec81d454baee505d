package local_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm/local"
	"github.com/threadwell/loom/pkg/api"
)

type fakeEngine struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	delay    time.Duration
	model    string
}

func (f *fakeEngine) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return "echo: " + prompt, nil
}

func (f *fakeEngine) ModelID() string { return f.model }

func newAdapter(t *testing.T, engine local.Engine) *local.Adapter {
	t.Helper()
	provider, err := local.Factory(engine)(domain.Profile{ID: "loc", Type: domain.KindLocal})
	require.NoError(t, err)
	return provider.(*local.Adapter)
}

func TestGenerate(t *testing.T) {
	adapter := newAdapter(t, &fakeEngine{model: "tiny"})

	out, err := adapter.Generate(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}

func TestGenerate_NilEngine(t *testing.T) {
	adapter := newAdapter(t, nil)

	_, err := adapter.Generate(context.Background(), "hi", nil)
	var domErr *domain.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domain.ClassConfiguration, domErr.Class)
	assert.NotEmpty(t, domErr.Hint)
}

func TestGenerate_SerializesEngineAccess(t *testing.T) {
	engine := &fakeEngine{delay: 20 * time.Millisecond}
	adapter := newAdapter(t, engine)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := adapter.Generate(context.Background(), "hi", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, engine.maxSeen, "engine must never see concurrent calls")
}

func TestGenerate_CancelledBeforeEngine(t *testing.T) {
	adapter := newAdapter(t, &fakeEngine{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Generate(ctx, "hi", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChat_FlattensHistory(t *testing.T) {
	adapter := newAdapter(t, &fakeEngine{})

	out, err := adapter.Chat(context.Background(), []api.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "System: be brief")
	assert.Contains(t, out, "User: hi")
}

func TestModels(t *testing.T) {
	adapter := newAdapter(t, &fakeEngine{model: "tiny"})
	models, err := adapter.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "tiny", models[0].ID)

	empty := newAdapter(t, nil)
	models, err = empty.Models(context.Background())
	require.NoError(t, err)
	assert.Empty(t, models)
}
