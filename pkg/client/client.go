// Package client sends chat turns to the producer and streams the response
// into a session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/papercomputeco/streamflow/pkg/logger"
	"github.com/papercomputeco/streamflow/pkg/session"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// DefaultEndpoint is the producer chat route.
const DefaultEndpoint = "http://localhost:3000/api/chat"

// DefaultTimeout bounds a whole turn, including streaming.
const DefaultTimeout = 5 * time.Minute

// maxErrorBody caps how much of a failure response is read.
const maxErrorBody = 64 * 1024

// APIError is a non-streaming failure response from the producer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("producer returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("producer returned status %d: %s", e.StatusCode, e.Message)
}

// ErrorResponse is the JSON body the producer sends instead of a stream.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client posts turns to one producer endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-turn timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.OrNop(l)
	}
}

// New returns a Client for endpoint, or DefaultEndpoint when empty.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the producer URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send runs one turn: it records content as the user's message, posts the
// conversation and document, and consumes the streamed response into s.
//
// Transport failures and non-2xx responses fail the turn with
// transcript.FailureMessage and are returned; a producer failure response
// is returned as *APIError. Cancelling ctx ends the turn and returns
// ctx.Err().
func (c *Client) Send(ctx context.Context, s *session.Session, content string) error {
	s.BeginTurn(content)

	body, err := s.RequestBody()
	if err != nil {
		s.Fail(transcript.FailureMessage)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		s.Fail(transcript.FailureMessage)
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(session.Header, s.ID())

	c.logger.Debug("sending turn", "endpoint", c.endpoint, "bytes", len(body))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.EndTurn()
			return ctxErr
		}
		s.Fail(transcript.FailureMessage)
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 || isJSON(resp.Header.Get("Content-Type")) {
		apiErr := readAPIError(resp)
		c.logger.Warn("producer rejected turn", "status", resp.StatusCode, "error", apiErr.Message)
		s.Fail(transcript.FailureMessage)
		return apiErr
	}

	if err := s.Consume(ctx, resp.Body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("streaming response: %w", err)
	}

	c.logger.Debug("turn complete", "duration", time.Since(start))
	return nil
}

func readAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}

	var body ErrorResponse
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		return apiErr
	}
	apiErr.Message = string(bytes.TrimSpace(b))
	return apiErr
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
