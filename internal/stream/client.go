package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/klubi/golem/pkg/api"
)

// StatusError is returned for non-2xx responses from the completion
// endpoint. The status code is preserved so the turn controller can
// distinguish the blocked/filtered band from transient failures.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion endpoint returned status %d: %s", e.Code, e.Body)
}

// Blocked reports whether the status code falls in the content-filter
// band that warrants a corrective prompt instead of a blind retry.
func (e *StatusError) Blocked() bool {
	switch e.Code {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusUnavailableForLegalReasons:
		return true
	}
	return false
}

// Client talks to an OpenAI-compatible chat-completions endpoint with
// bearer-token auth. It is the transport collaborator of the turn
// controller: make a POST, get back an event stream.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a Client for the given endpoint.
func NewClient(apiURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Stream POSTs the request with stream:true and feeds every raw SSE line
// to fn. fn returns true to stop reading early (the termination sentinel
// was seen). Network failures and non-2xx statuses are returned as errors; a
// non-2xx status is a *StatusError.
func (c *Client) Stream(ctx context.Context, req api.ChatRequest, fn func(line string) (stop bool)) error {
	req.Stream = true
	resp, err := c.post(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if fn(scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read response stream: %w", err)
	}
	return nil
}

// Complete POSTs a non-streaming request and returns the first choice's
// message. Used by conversation consolidation for the summary request.
func (c *Client) Complete(ctx context.Context, req api.ChatRequest) (api.Message, error) {
	req.Stream = false
	resp, err := c.post(ctx, req)
	if err != nil {
		return api.Message{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return api.Message{}, fmt.Errorf("failed to read completion body: %w", err)
	}

	var completion api.Completion
	if err := json.Unmarshal(body, &completion); err != nil {
		return api.Message{}, fmt.Errorf("failed to parse completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return api.Message{}, fmt.Errorf("completion response has no choices")
	}
	return completion.Choices[0].Message, nil
}

func (c *Client) post(ctx context.Context, req api.ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("posting completion request",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("tools", len(req.Tools)),
		zap.Bool("stream", req.Stream),
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}
