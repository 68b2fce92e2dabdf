// Package clients fetches documents from downstream HTTP services with
// retries, a circuit breaker and OpenTelemetry instrumentation.
package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/feedmill/quote-service/internal/platform/config"
	"github.com/feedmill/quote-service/internal/platform/logging"
)

const (
	instrumentationName = "github.com/feedmill/quote-service/internal/adapters/clients"

	defaultTimeout = 30 * time.Second

	// defaultMaxSize caps bodies when Config.MaxSize is unset.
	defaultMaxSize = 10 << 20

	transportMaxIdleConns        = 10
	transportMaxIdleConnsPerHost = 2
	transportIdleConnTimeout     = 90 * time.Second
)

// Config configures a Client.
type Config struct {
	// ServiceName identifies the downstream service in logs, spans and metrics.
	ServiceName string

	// Timeout bounds each attempt. Retries and backoff may exceed it in total.
	Timeout time.Duration

	// MaxSize is the largest accepted response body in bytes.
	MaxSize int64

	Retry   config.RetryConfig
	Circuit config.CircuitBreakerConfig

	// Transport replaces the default pooled transport.
	Transport http.RoundTripper

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Client downloads documents over HTTP GET.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *Breaker
	tracer  trace.Tracer

	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// New creates a client for cfg.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	c := *cfg
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxSize <= 0 {
		c.MaxSize = defaultMaxSize
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		slog.String("component", "clients.Client"),
		slog.String("downstream", c.ServiceName),
	)

	meter := otel.Meter(instrumentationName)
	requestDuration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration metric: %w", err)
	}

	requestTotal, err := meter.Int64Counter(
		"http.client.request.total",
		metric.WithDescription("Total number of HTTP client requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	transport := c.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        transportMaxIdleConns,
			MaxIdleConnsPerHost: transportMaxIdleConnsPerHost,
			IdleConnTimeout:     transportIdleConnTimeout,
		}
	}

	breaker := NewBreaker(c.Circuit, func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &Client{
		http:            &http.Client{Timeout: c.Timeout, Transport: transport},
		cfg:             c,
		breaker:         breaker,
		tracer:          otel.Tracer(instrumentationName),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// CircuitState returns the state of the client's circuit breaker.
func (c *Client) CircuitState() State {
	return c.breaker.State()
}

// Fetch GETs url and returns its body. Network failures and 5xx responses
// are retried with exponential backoff; other non-2xx responses fail at once
// with a *StatusError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With(
		slog.String("downstream", c.cfg.ServiceName),
		slog.String("url", url),
	)

	if !c.breaker.Allow() {
		c.recordMetrics(ctx, 0, time.Since(start), "circuit_open")
		logger.WarnContext(ctx, "request blocked by circuit breaker")
		return nil, ErrCircuitOpen
	}

	ctx, span := c.tracer.Start(ctx, "HTTP GET "+c.cfg.ServiceName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("http.url", url),
			attribute.String("peer.service", c.cfg.ServiceName),
		),
	)
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < c.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			logger.DebugContext(ctx, "retrying request",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.Any("error", lastErr),
			)

			select {
			case <-ctx.Done():
				c.breaker.Failure()
				c.recordMetrics(ctx, 0, time.Since(start), "context_canceled")
				span.SetStatus(codes.Error, ctx.Err().Error())
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, status, err := c.attempt(ctx, url)
		if err == nil {
			c.breaker.Success()
			span.SetAttributes(attribute.Int("http.status_code", status))
			c.recordMetrics(ctx, status, time.Since(start), "2xx")
			logger.DebugContext(ctx, "request completed",
				slog.Int("status", status),
				slog.Int("bytes", len(body)),
				slog.Duration("duration", time.Since(start)),
			)
			return body, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code < http.StatusInternalServerError {
			// The service answered; only the document is unavailable.
			c.breaker.Success()
			span.SetStatus(codes.Error, err.Error())
			c.recordMetrics(ctx, status, time.Since(start), fmt.Sprintf("%dxx", status/100))
			return nil, err
		}

		lastErr = err
		if !retryable(err) {
			break
		}
	}

	c.breaker.Failure()
	span.SetStatus(codes.Error, lastErr.Error())
	c.recordMetrics(ctx, 0, time.Since(start), "error")
	logger.ErrorContext(ctx, "request failed",
		slog.Duration("duration", time.Since(start)),
		slog.Any("error", lastErr),
	)

	return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

// attempt performs a single GET and reads the body within MaxSize.
func (c *Client) attempt(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.cfg.MaxSize))
		return nil, resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxSize+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxSize {
		return nil, resp.StatusCode, ErrTooLarge
	}

	return body, resp.StatusCode, nil
}

// backoff returns initial * multiplier^attempt capped at MaxInterval, with
// ±JitterFactor jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.cfg.Retry.InitialInterval) * math.Pow(c.cfg.Retry.Multiplier, float64(attempt))
	if limit := float64(c.cfg.Retry.MaxInterval); limit > 0 && d > limit {
		d = limit
	}

	jitter := (rand.Float64()*2 - 1) * c.cfg.Retry.JitterFactor //nolint:gosec // backoff jitter
	d += d * jitter

	return time.Duration(d)
}

func (c *Client) recordMetrics(ctx context.Context, status int, duration time.Duration, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", http.MethodGet),
		attribute.String("peer.service", c.cfg.ServiceName),
		attribute.String("result", result),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", status))
	}

	c.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	c.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// retryable reports whether a failed attempt may succeed if repeated.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
