package vendorcli_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm"
	_ "github.com/threadwell/loom/internal/llm/vendorcli"
	"github.com/threadwell/loom/pkg/api"
)

// cat echoes stdin, which makes the subprocess round trip observable.
func catProfile() domain.Profile {
	return domain.Profile{
		ID:     "cli-test",
		Type:   domain.KindClaudeCLI,
		Binary: "cat",
	}
}

func TestGenerate_RoundTripsThroughSubprocess(t *testing.T) {
	provider, err := llm.New(catProfile())
	require.NoError(t, err)

	out, err := provider.Generate(context.Background(), "hello subprocess", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello subprocess", out)
}

func TestChat_FlattensHistory(t *testing.T) {
	provider, err := llm.New(catProfile())
	require.NoError(t, err)

	out, err := provider.Chat(context.Background(), []api.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "User: first")
	assert.Contains(t, out, "Assistant: second")
}

func TestMissingBinaryIsConfigurationError(t *testing.T) {
	p := catProfile()
	p.Binary = "definitely-not-installed-anywhere"

	_, err := llm.New(p)
	var domErr *domain.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domain.ClassConfiguration, domErr.Class)
	assert.NotEmpty(t, domErr.Hint)
}

func TestNonZeroExitIsUnavailable(t *testing.T) {
	p := catProfile()
	p.Binary = "false"

	provider, err := llm.New(p)
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), "hi", nil)
	var domErr *domain.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domain.ClassUnavailable, domErr.Class)
}

func TestTimeoutKillsSubprocess(t *testing.T) {
	p := catProfile()
	p.Binary = "sleep"
	p.Args = []string{"5"}
	p.Timeout = 100 * time.Millisecond

	provider, err := llm.New(p)
	require.NoError(t, err)

	start := time.Now()
	_, err = provider.Generate(context.Background(), "hi", nil)
	var domErr *domain.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domain.ClassTimeout, domErr.Class)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestModelsUnsupported(t *testing.T) {
	provider, err := llm.New(catProfile())
	require.NoError(t, err)

	_, err = provider.Models(context.Background())
	var domErr *domain.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domain.ClassUnsupported, domErr.Class)
}
