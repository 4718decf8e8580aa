package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDMiddleware stamps every outgoing request with an X-Request-ID so
// client and server logs can be correlated.
func RequestIDMiddleware() Middleware {
	return func(next RoundTripFunc) RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("X-Request-ID") == "" {
				req.Header.Set("X-Request-ID", uuid.NewString())
			}
			return next(req)
		}
	}
}

// LoggingMiddleware logs outgoing requests with method, URL, status and
// duration.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next RoundTripFunc) RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(req)
			attrs := []any{
				"method", req.Method,
				"url", req.URL.String(),
				"duration", time.Since(start).Round(time.Millisecond),
				"request_id", req.Header.Get("X-Request-ID"),
			}
			if err != nil {
				logger.Warn("remote request failed", append(attrs, "error", err)...)
				return resp, err
			}
			logger.Debug("remote request", append(attrs, "status", resp.StatusCode)...)
			return resp, nil
		}
	}
}

// TokenSource yields the current bearer token, or "" when logged out.
type TokenSource func() string

// AuthMiddleware attaches the bearer token when one is present and invokes
// onUnauthorized for every 401 response, so the session layer can clear
// itself and raise the login prompt.
func AuthMiddleware(token TokenSource, onUnauthorized func()) Middleware {
	return func(next RoundTripFunc) RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			if t := token(); t != "" {
				req.Header.Set("Authorization", "Bearer "+t)
			}
			resp, err := next(req)
			if err == nil && resp.StatusCode == http.StatusUnauthorized && onUnauthorized != nil {
				onUnauthorized()
			}
			return resp, err
		}
	}
}
