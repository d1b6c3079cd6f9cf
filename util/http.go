package util

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// retryLogger feeds retryablehttp's leveled logging into slog. Errors are only logged at WARN
// since the request may still succeed on a later attempt, and the retry notices retryablehttp
// logs at DEBUG are raised to INFO.
type retryLogger struct {
	logger *slog.Logger
}

func (l retryLogger) Error(msg string, kv ...any) { l.logger.Warn(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...any)  { l.logger.Warn(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...any)  { l.logger.Info(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...any) { l.logger.Info(msg, kv...) }

const DefaultHTTPTimeout = 20 * time.Second

// RobustHTTPClient returns a traced HTTP client which retries connection errors, 429 (honoring
// Retry-After) and 5xx other than 501, up to three times. timeout bounds the whole exchange,
// retries included; zero means DefaultHTTPTimeout.
func RobustHTTPClient(logger *slog.Logger, timeout time.Duration) *http.Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = retryLogger{logger: logger.With("component", "http")}
	rc.HTTPClient.Transport = otelhttp.NewTransport(rc.HTTPClient.Transport)

	client := rc.StandardClient()
	client.Timeout = timeout
	return client
}
