package circuitbreaker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/observability/telemetry"
)

// StatusError is a non-2xx answer from the remote service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Settings configures an HTTP client and its breaker.
type Settings struct {
	Name string

	// Timeout bounds a single HTTP request
	Timeout time.Duration

	// MaxRequests may pass while half-open
	MaxRequests uint32

	// Interval clears counts while closed
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before probing
	OpenTimeout time.Duration

	// MinRequests and FailureRatio decide when to trip
	MinRequests  uint32
	FailureRatio float64
}

// DefaultSettings returns the defaults used for collaborator clients.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:         name,
		Timeout:      5 * time.Second,
		MaxRequests:  3,
		Interval:     time.Minute,
		OpenTimeout:  30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// HTTPClient issues JSON requests to one collaborator behind a circuit breaker.
// Transport errors and 5xx answers count as breaker failures; 4xx do not.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewHTTPClient creates a client for baseURL.
func NewHTTPClient(baseURL string, settings Settings, log *zap.Logger) *HTTPClient {
	if settings.Timeout <= 0 {
		settings.Timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Collaborator circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: settings.Timeout},
		breaker: breaker,
		log:     log,
	}
}

// Name is the breaker name, which doubles as the collaborator label.
func (c *HTTPClient) Name() string {
	return c.breaker.Name()
}

type response struct {
	status int
	body   []byte
}

// DoJSON sends in as the JSON body (if non-nil) and decodes a 2xx answer into out (if non-nil).
func (c *HTTPClient) DoJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
		}
		return &response{status: resp.StatusCode, body: respBody}, nil
	})
	telemetry.CollaboratorLatency.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		if IsCircuitOpen(err) {
			c.log.Warn("Circuit breaker open, request blocked",
				zap.String("breaker", c.Name()),
				zap.String("path", path),
			)
		}
		return err
	}

	res := result.(*response)
	if res.status >= 300 {
		return &StatusError{Code: res.status, Body: string(res.body)}
	}

	if out != nil && len(res.body) > 0 {
		if err := json.Unmarshal(res.body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
