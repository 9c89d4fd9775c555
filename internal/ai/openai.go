package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"itinera/internal/logger"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

type OpenAIOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// Timeout bounds one buffered request. Streaming requests are bounded by
	// the caller's context only.
	Timeout     time.Duration
	MaxAttempts int
	BackOff     BackOffFactory
	Limiter     Limiter
	Transport   http.RoundTripper
}

func (o *OpenAIOptions) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = defaultOpenAIBaseURL
	}
	if o.Model == "" {
		o.Model = defaultOpenAIModel
	}
	if o.Temperature == 0 {
		o.Temperature = 0.7
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 8000
	}
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackOff == nil {
		o.BackOff = DefaultBackOff
	}
}

// OpenAIClient talks to the chat completions endpoint directly so HTTP status
// codes and SSE framing stay visible to the caller.
type OpenAIClient struct {
	opts     OpenAIOptions
	url      string
	hc       *http.Client
	streamHC *http.Client
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai: missing api key")
	}
	opts.defaults()
	return &OpenAIClient{
		opts:     opts,
		url:      strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		hc:       &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		streamHC: &http.Client{Transport: opts.Transport},
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

func (c *OpenAIClient) encode(p Prompt, stream bool) ([]byte, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature:    c.opts.Temperature,
		MaxTokens:      c.opts.MaxTokens,
		Stream:         stream,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	return body, nil
}

// Complete performs a buffered request. HTTP 429 is retried with backoff up
// to MaxAttempts; every other failure is returned as is.
func (c *OpenAIClient) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	body, err := c.encode(p, false)
	if err != nil {
		return nil, err
	}

	var out *Completion
	err = retryRateLimited(ctx, c.Name(), c.opts.MaxAttempts, c.opts.BackOff, func(attempt int) error {
		if err := admit(ctx, c.opts.Limiter, c.Name()); err != nil {
			return err
		}
		logger.Debug("openai request", "mode", ModeBuffered, "attempt", attempt)
		resp, err := c.post(ctx, c.hc, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return statusError(c.Name(), resp)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("openai: read response: %w", transportError(ctx, c.Name(), err))
		}
		out, err = parseChatCompletion(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream opens one streaming request. Failures to establish it carry the
// same classification as Complete but are never retried here.
func (c *OpenAIClient) Stream(ctx context.Context, p Prompt) (Stream, error) {
	body, err := c.encode(p, true)
	if err != nil {
		return nil, err
	}
	if err := admit(ctx, c.opts.Limiter, c.Name()); err != nil {
		return nil, err
	}
	logger.Debug("openai request", "mode", ModeStreaming)
	resp, err := c.post(ctx, c.streamHC, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, statusError(c.Name(), resp)
	}
	return newSSEStream(ctx, c.Name(), resp.Body, DecodeOpenAIDelta), nil
}

func (c *OpenAIClient) post(ctx context.Context, hc *http.Client, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: do request: %w", transportError(ctx, c.Name(), err))
	}
	return resp, nil
}

func parseChatCompletion(raw []byte) (*Completion, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("openai: decode response: invalid json")
	}
	choice := gjson.GetBytes(raw, "choices.0")
	if !choice.Exists() {
		return nil, fmt.Errorf("openai: %w: no choices", ErrEmptyResponse)
	}
	text := choice.Get("message.content").String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	finish := choice.Get("finish_reason").String()
	return &Completion{Text: text, FinishReason: finish, Truncated: finish == "length"}, nil
}

// DecodeOpenAIDelta reads one chat.completion.chunk frame. Frames that are not
// JSON are skipped; an error object ends the stream.
func DecodeOpenAIDelta(frame []byte) (Delta, error) {
	if bytes.Equal(frame, []byte("[DONE]")) {
		return Delta{Done: true}, nil
	}
	if !gjson.ValidBytes(frame) {
		return Delta{}, nil
	}
	if msg := gjson.GetBytes(frame, "error.message"); msg.Exists() {
		return Delta{}, fmt.Errorf("openai: %w: %s", ErrStreamRead, msg.String())
	}
	choice := gjson.GetBytes(frame, "choices.0")
	return Delta{
		Text:         choice.Get("delta.content").String(),
		FinishReason: choice.Get("finish_reason").String(),
	}, nil
}

// statusError turns a non-2xx response into an *UpstreamError.
func statusError(provider string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := gjson.GetBytes(b, "error.message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(b))
	}
	return &UpstreamError{Provider: provider, Status: resp.StatusCode, Message: msg}
}

// transportError tags deadline expiry as ErrTimeout and leaves the rest intact.
func transportError(ctx context.Context, provider string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%s: %w: %v", provider, ErrTimeout, err)
	}
	return err
}

// admit consults the shared request budget. Limiter outages never block
// generation.
func admit(ctx context.Context, l Limiter, provider string) error {
	if l == nil {
		return nil
	}
	ok, err := l.Allow(ctx, provider)
	if err != nil {
		logger.Warn("rate limiter unavailable", "provider", provider, "err", err)
		return nil
	}
	if !ok {
		return &UpstreamError{Provider: provider, Status: http.StatusTooManyRequests, Message: "shared request budget exhausted"}
	}
	return nil
}
