package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/httpclient"
)

// MapTransportError folds a raw HTTP-layer failure into the shared error
// taxonomy. hint is the backend-specific remediation shown to users when
// the host is unreachable; timeout is the bound the request ran under.
func MapTransportError(backend domain.Kind, endpoint, hint string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}

	// Caller cancellation is not a backend failure; propagate as-is so
	// the router surfaces it instead of falling back.
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.TimeoutError(backend, endpoint, timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.TimeoutError(backend, endpoint, timeout, err)
	}

	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		switch {
		case upstream.StatusCode == 401 || upstream.StatusCode == 403:
			return domain.AuthenticationError(backend, endpoint,
				"credential rejected", "set or rotate the api_key for this profile")
		case upstream.StatusCode == 404:
			return domain.ConfigurationError(backend,
				"endpoint not found: "+endpoint,
				"check the base_url and model for this profile")
		case upstream.StatusCode >= 400 && upstream.StatusCode < 500:
			return domain.ConfigurationError(backend,
				"request rejected by backend: "+truncate(upstream.Body, 200),
				"check the profile's model and parameters")
		default:
			return domain.UnavailableError(backend, endpoint,
				fmt.Sprintf("backend returned HTTP %d", upstream.StatusCode), hint, err)
		}
	}

	return domain.UnavailableError(backend, endpoint, "unreachable", hint, err)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
