package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/pkg/api"
)

// ErrorHandler converts errors attached by handlers into the uniform
// JSON error body. Handlers call c.Error and return; the mapping from
// failure class to status code lives here alone.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var domErr *domain.Error
		if errors.As(err, &domErr) {
			if domErr.Log != nil {
				logger.Warn("provider error", zap.Error(domErr.Log))
			}
			c.AbortWithStatusJSON(statusFor(domErr.Class), api.ErrorResponse{
				Error:    domErr.Message,
				Class:    string(domErr.Class),
				Backend:  string(domErr.Backend),
				Endpoint: domErr.Endpoint,
				Hint:     domErr.Hint,
			})
			return
		}

		var noProvider *domain.NoProviderAvailableError
		if errors.As(err, &noProvider) {
			c.AbortWithStatusJSON(http.StatusNotFound, api.ErrorResponse{
				Error: noProvider.Error(),
				Hint:  "configure a profile or adjust the requested tags",
			})
			return
		}

		var allFailed *domain.AllProvidersFailedError
		if errors.As(err, &allFailed) {
			attempts := make([]api.AttemptInfo, 0, len(allFailed.Attempts))
			for _, a := range allFailed.Attempts {
				attempts = append(attempts, api.AttemptInfo{Profile: a.ProfileID, Reason: a.Err.Error()})
			}
			c.AbortWithStatusJSON(http.StatusBadGateway, api.ErrorResponse{
				Error:    "all providers failed",
				Attempts: attempts,
			})
			return
		}

		var fields *ValidationFailure
		if errors.As(err, &fields) {
			c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{
				Error:  "invalid request",
				Fields: fields.Fields,
			})
			return
		}

		logger.Error("unhandled error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{
			Error: "internal server error",
		})
	}
}

func statusFor(class domain.Class) int {
	switch class {
	case domain.ClassConfiguration:
		return http.StatusBadRequest
	case domain.ClassAuthentication:
		return http.StatusUnauthorized
	case domain.ClassUnavailable:
		return http.StatusBadGateway
	case domain.ClassTimeout:
		return http.StatusGatewayTimeout
	case domain.ClassUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// ValidationFailure carries per-field binding errors to the error
// middleware.
type ValidationFailure struct {
	Fields map[string]string
}

func (v *ValidationFailure) Error() string { return "invalid request" }
