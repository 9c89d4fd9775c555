package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"itinera/internal/logger"
)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiOptions struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
	MaxAttempts int
	BackOff     BackOffFactory
	Limiter     Limiter
}

// GeminiClient implements Provider using Google's Gemini models.
type GeminiClient struct {
	client *genai.Client
	opts   GeminiOptions
}

// NewGeminiClient initializes a Gemini client. apiKey comes from the environment.
func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini: missing api key")
	}
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 8000
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, opts: opts}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

// Close cleans up the Gemini client resources.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// model builds a per-request model so concurrent sessions never share a
// system instruction.
func (c *GeminiClient) model(p Prompt) *genai.GenerativeModel {
	m := c.client.GenerativeModel(c.opts.Model)
	m.SystemInstruction = genai.NewUserContent(genai.Text(p.System))
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(c.opts.Temperature)
	m.SetMaxOutputTokens(c.opts.MaxTokens)
	return m
}

func (c *GeminiClient) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	var out *Completion
	err := retryRateLimited(ctx, c.Name(), c.opts.MaxAttempts, c.opts.BackOff, func(attempt int) error {
		if err := admit(ctx, c.opts.Limiter, c.Name()); err != nil {
			return err
		}
		logger.Debug("gemini request", "mode", ModeBuffered, "attempt", attempt)
		resp, err := c.model(p).GenerateContent(ctx, genai.Text(p.User))
		if err != nil {
			return geminiError(ctx, err)
		}
		text, finish := responseText(resp)
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("gemini: %w", ErrEmptyResponse)
		}
		out = &Completion{Text: text, FinishReason: finish, Truncated: finish == "length"}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream starts a streaming generation and waits for its first response so
// that failures to establish the stream surface here.
func (c *GeminiClient) Stream(ctx context.Context, p Prompt) (Stream, error) {
	if err := admit(ctx, c.opts.Limiter, c.Name()); err != nil {
		return nil, err
	}
	logger.Debug("gemini request", "mode", ModeStreaming)
	it := c.model(p).GenerateContentStream(ctx, genai.Text(p.User))
	first, err := it.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return nil, geminiError(ctx, err)
	}
	return &geminiStream{ctx: ctx, it: it, first: first, done: errors.Is(err, iterator.Done)}, nil
}

type geminiStream struct {
	ctx   context.Context
	it    *genai.GenerateContentResponseIterator
	first *genai.GenerateContentResponse
	done  bool
}

// Recv returns response text as the frame; Gemini has no extra delta framing.
func (s *geminiStream) Recv() ([]byte, error) {
	for {
		if s.done {
			return nil, io.EOF
		}
		resp := s.first
		s.first = nil
		if resp == nil {
			var err error
			resp, err = s.it.Next()
			if errors.Is(err, iterator.Done) {
				s.done = true
				return nil, io.EOF
			}
			if err != nil {
				return nil, streamError(s.ctx, err)
			}
		}
		if text, _ := responseText(resp); text != "" {
			return []byte(text), nil
		}
	}
}

func (s *geminiStream) Decode(frame []byte) (Delta, error) {
	return Delta{Text: string(frame)}, nil
}

func (s *geminiStream) Close() error {
	s.done = true
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	cand := resp.Candidates[0]
	finish := ""
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		finish = "length"
	} else if cand.FinishReason != genai.FinishReasonUnspecified {
		finish = strings.ToLower(cand.FinishReason.String())
	}
	if cand.Content == nil {
		return "", finish
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), finish
}

// geminiError maps SDK errors onto the taxonomy using the HTTP status they carry.
func geminiError(ctx context.Context, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &UpstreamError{Provider: "gemini", Status: gerr.Code, Message: gerr.Message}
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return &UpstreamError{Provider: "gemini", Status: coded.HTTPCode(), Message: err.Error()}
	}
	return fmt.Errorf("gemini: %w", transportError(ctx, "gemini", err))
}

func streamError(ctx context.Context, err error) error {
	classified := geminiError(ctx, err)
	if errors.Is(classified, ErrTimeout) || errors.Is(classified, context.Canceled) {
		return classified
	}
	var upstream *UpstreamError
	if errors.As(classified, &upstream) && upstream.Status != 0 {
		return fmt.Errorf("%w: %v", ErrStreamRead, classified)
	}
	return fmt.Errorf("gemini: %w: %v", ErrStreamRead, err)
}
