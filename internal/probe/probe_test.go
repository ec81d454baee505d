package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadwell/loom/internal/core/domain"
)

func lmProfile(url string) domain.Profile {
	return domain.Profile{ID: "lm", Type: domain.KindLMStudio, BaseURL: url}
}

func TestCheck_LMStudioReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"id": "a"}, {"id": "b"}, {"id": "c"}]}`))
	}))
	defer server.Close()

	result := New().Check(context.Background(), lmProfile(server.URL+"/v1"))

	assert.True(t, result.OK)
	require.NotNil(t, result.Status)
	assert.Equal(t, 200, *result.Status)
	require.NotNil(t, result.LatencyMS)
	assert.Equal(t, "reachable, 3 models", result.Message)
}

func TestCheck_OllamaCountsTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models": [{"name": "llama3"}]}`))
	}))
	defer server.Close()

	result := New().Check(context.Background(), domain.Profile{
		ID: "ol", Type: domain.KindOllama, BaseURL: server.URL,
	})

	assert.True(t, result.OK)
	assert.Equal(t, "reachable, 1 models", result.Message)
}

func TestCheck_UnreachableIsBounded(t *testing.T) {
	prober := New(WithTimeout(500 * time.Millisecond))

	start := time.Now()
	result := prober.Check(context.Background(), domain.Profile{
		ID: "dead", Type: domain.KindLMStudio, Host: "127.0.0.1", Port: 9999,
	})
	elapsed := time.Since(start)

	assert.False(t, result.OK)
	assert.Nil(t, result.Status)
	assert.Less(t, elapsed, 3*time.Second)
	assert.NotEmpty(t, result.Detail)
}

func TestCheck_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result := New().Check(ctx, lmProfile(server.URL+"/v1"))

	assert.False(t, result.OK)
	assert.Equal(t, "cancelled", result.Message)
}

func TestCheck_WrongService(t *testing.T) {
	// An HTML-speaking server on the configured port is reachable but
	// not the expected backend.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not an api</html>"))
	}))
	defer server.Close()

	result := New().Check(context.Background(), lmProfile(server.URL+"/v1"))

	assert.False(t, result.OK)
	require.NotNil(t, result.Status)
	assert.Equal(t, 200, *result.Status)
	assert.Contains(t, result.Message, "not with the expected payload")
}

func TestCheck_AuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer server.Close()

	result := New().Check(context.Background(), domain.Profile{
		ID: "oa", Type: domain.KindOpenAI, BaseURL: server.URL + "/v1", APIKey: "sk-wrong",
	})

	assert.False(t, result.OK)
	require.NotNil(t, result.Status)
	assert.Equal(t, 401, *result.Status)
	assert.Contains(t, result.Detail, "API key")
}

func TestCheck_MissingKeyShortCircuits(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	for _, kind := range []domain.Kind{domain.KindOpenAI, domain.KindAnthropic} {
		result := New().Check(context.Background(), domain.Profile{
			ID: "nokey", Type: kind, BaseURL: server.URL,
		})
		assert.False(t, result.OK)
		assert.Equal(t, "no API key configured", result.Message)
	}
	assert.Zero(t, calls, "no request should leave the process without a key")
}

func TestCheck_HeadersPerKind(t *testing.T) {
	var gotAuth, gotAPIKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	New().Check(context.Background(), domain.Profile{
		ID: "oa", Type: domain.KindOpenAI, BaseURL: server.URL + "/v1", APIKey: "sk-1",
	})
	assert.Equal(t, "Bearer sk-1", gotAuth)

	New().Check(context.Background(), domain.Profile{
		ID: "an", Type: domain.KindAnthropic, BaseURL: server.URL + "/v1", APIKey: "sk-2",
	})
	assert.Equal(t, "sk-2", gotAPIKey)
	assert.Equal(t, "2023-06-01", gotVersion)
}

type fakeEngine struct {
	err   error
	model string
	delay time.Duration
}

func (f *fakeEngine) Ready(ctx context.Context) error {
	select {
	case <-time.After(f.delay):
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeEngine) ModelID() string { return f.model }

func TestCheck_EngineReady(t *testing.T) {
	prober := New(WithEngine(&fakeEngine{model: "tiny-llm"}))

	result := prober.Check(context.Background(), domain.Profile{ID: "loc", Type: domain.KindLocal})
	assert.True(t, result.OK)
	assert.True(t, strings.Contains(result.Message, "tiny-llm"))
}

func TestCheck_NoEngine(t *testing.T) {
	result := New().Check(context.Background(), domain.Profile{ID: "loc", Type: domain.KindLocal})
	assert.False(t, result.OK)
	assert.Equal(t, "no embedded engine attached", result.Message)
}

func TestCheck_CLIKindsNeverProbed(t *testing.T) {
	result := New().Check(context.Background(), domain.Profile{ID: "cc", Type: domain.KindClaudeCLI})
	assert.True(t, result.OK)
	assert.Contains(t, result.Message, "claude")
}
