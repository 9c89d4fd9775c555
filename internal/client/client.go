// README: HTTP client for itinera-api: remote generation source plus saved itinerary calls.
package client

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

	"github.com/tidwall/gjson"

	"itinera/internal/ai"
	"itinera/internal/itinerary"
	"itinera/internal/stream"
)

var ErrNotFound = errors.New("itinerary not found")

type Options struct {
	BaseURL string
	// Timeout bounds buffered calls. Streams are bounded by their context only.
	Timeout   time.Duration
	Transport http.RoundTripper
}

type Client struct {
	baseURL  string
	hc       *http.Client
	streamHC *http.Client
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 150 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		hc:       &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		streamHC: &http.Client{Transport: opts.Transport},
	}
}

type generateRequest struct {
	TravelData itinerary.TripPreferences `json:"travelData"`
	Stream     bool                      `json:"stream"`
}

// Source returns a generation source that runs on the server.
func (c *Client) Source(prefs itinerary.TripPreferences) *Source {
	return &Source{c: c, prefs: prefs}
}

// Source generates through POST /api/itineraries/generate.
type Source struct {
	c     *Client
	prefs itinerary.TripPreferences
}

func (s *Source) OpenStream(ctx context.Context) (<-chan itinerary.Event, error) {
	resp, err := s.c.do(ctx, s.c.streamHC, http.MethodPost, "/api/itineraries/generate",
		generateRequest{TravelData: s.prefs, Stream: true})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	out := make(chan itinerary.Event, 16)
	go pump(ctx, resp.Body, out)
	return out, nil
}

// pump forwards frames until the body ends. A stream that stops without a
// terminal event is left for the consumer to judge.
func pump(ctx context.Context, body io.ReadCloser, out chan<- itinerary.Event) {
	defer close(out)
	defer body.Close()

	r := stream.NewEventReader(body)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ev = itinerary.ErrorEvent(fmt.Errorf("%w: %v", ai.ErrStreamRead, err), ai.CodeStreamRead)
		} else if ev.Kind == itinerary.KindError {
			ev.Err = ai.FromCode(ev.Code, ev.Message)
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
		if ev.Terminal() {
			return
		}
	}
}

func (s *Source) Generate(ctx context.Context) (*itinerary.Generated, error) {
	var resp struct {
		Itinerary json.RawMessage `json:"itinerary"`
	}
	if err := s.c.call(ctx, http.MethodPost, "/api/itineraries/generate", generateRequest{TravelData: s.prefs}, &resp); err != nil {
		return nil, err
	}
	var doc itinerary.Document
	if err := json.Unmarshal(resp.Itinerary, &doc); err != nil {
		return nil, ai.NewMalformedOutput(string(resp.Itinerary), false, err)
	}
	return &itinerary.Generated{Document: doc, Raw: resp.Itinerary}, nil
}

// Saved mirrors the API's saved itinerary representation.
type Saved struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Itinerary itinerary.Document `json:"itinerary"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (c *Client) Save(ctx context.Context, title string, doc itinerary.Document) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]any{"title": title, "itinerary": doc}
	if err := c.call(ctx, http.MethodPost, "/api/itineraries", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// SaveRaw stores an itinerary document exactly as given.
func (c *Client) SaveRaw(ctx context.Context, title string, raw json.RawMessage) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]any{"title": title, "itinerary": raw}
	if err := c.call(ctx, http.MethodPost, "/api/itineraries", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Saved, error) {
	var out Saved
	if err := c.call(ctx, http.MethodGet, "/api/itineraries/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context, limit int) ([]Saved, error) {
	var out struct {
		Itineraries []Saved `json:"itineraries"`
	}
	path := fmt.Sprintf("/api/itineraries?limit=%d", limit)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Itineraries, nil
}

// Calendar downloads the iCalendar export of a saved itinerary.
func (c *Client) Calendar(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.do(ctx, c.hc, http.MethodGet, "/api/itineraries/"+id+"/calendar.ics", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, c.hc, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ai.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ai.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

// apiError turns an `{"error","code"}` body back into a typed error.
func apiError(resp *http.Response) error {
	slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := gjson.GetBytes(slurp, "error").String()
	code := gjson.GetBytes(slurp, "code").String()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case code != "" && code != ai.CodeInternal && code != "invalid_request":
		return ai.FromCode(code, msg)
	case msg == "":
		msg = strings.TrimSpace(string(slurp))
	}
	return fmt.Errorf("itinera api: status %d: %s", resp.StatusCode, msg)
}
