package ring

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const redacted = "REDACTED"

// WithLogger configures a structured logger for the client.
// When set, the client logs every API exchange at debug level. Tokens and
// credentials are never written.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	client := ring.NewClient("user@example.com", "secret", ring.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// LoggingTransport wraps an http.RoundTripper and logs requests/responses.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper with logging.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	logRequest(t.Logger, req)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	logResponse(t.Logger, req, status, time.Since(start), err)
	return resp, err
}

func logRequest(logger *slog.Logger, req *http.Request) {
	if logger == nil {
		return
	}
	logger.LogAttrs(req.Context(), slog.LevelDebug, "api_request",
		slog.String("method", req.Method),
		slog.String("url", RedactURL(req.URL)),
	)
}

func logResponse(logger *slog.Logger, req *http.Request, statusCode int, duration time.Duration, err error) {
	if logger == nil {
		return
	}

	level := slog.LevelDebug
	if statusCode >= 400 {
		level = slog.LevelWarn
	}
	if statusCode >= 500 || err != nil {
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", RedactURL(req.URL)),
		slog.Int("status", statusCode),
		slog.Duration("duration", duration),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	logger.LogAttrs(req.Context(), level, "api_response", attrs...)
}

// LogOperation logs the outcome of a client operation such as "authenticate"
// or "history". It is a no-op when no logger is configured.
func (c *Client) LogOperation(ctx context.Context, op Operation, duration time.Duration, err error) {
	if c.logger == nil {
		return
	}
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("operation", op.String()),
		slog.Duration("duration", duration),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	c.logger.LogAttrs(ctx, level, "ring_operation", attrs...)
}

// RedactURL renders u with the auth_token query parameter masked.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if q.Get("auth_token") == "" {
		return u.String()
	}
	q.Set("auth_token", redacted)
	clone := *u
	clone.RawQuery = q.Encode()
	return clone.String()
}

// NewLoggingClient creates a client whose HTTP transport logs every request.
// This is a convenience function that wraps the HTTP transport with logging.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	client := ring.NewLoggingClient("user@example.com", "secret", logger)
func NewLoggingClient(username, password string, logger *slog.Logger, opts ...Option) *Client {
	httpClient := &http.Client{
		Transport: &LoggingTransport{
			Base:   newHTTPTransport(),
			Logger: logger,
		},
	}

	allOpts := append([]Option{WithHTTPClient(httpClient)}, opts...)
	return NewClient(username, password, allOpts...)
}
