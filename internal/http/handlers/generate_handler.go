// README: Itinerary generation handler: SSE section stream or one repaired document.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"itinera/internal/ai"
	"itinera/internal/itinerary"
	"itinera/internal/logger"
	"itinera/internal/stream"
)

type GenerateHandler struct {
	provider      ai.Provider
	streamTimeout time.Duration
	bufferTimeout time.Duration
}

// NewGenerateHandler bounds streams by streamTimeout and buffered requests by
// bufferTimeout; zero means no bound beyond the request context.
func NewGenerateHandler(provider ai.Provider, streamTimeout, bufferTimeout time.Duration) *GenerateHandler {
	return &GenerateHandler{provider: provider, streamTimeout: streamTimeout, bufferTimeout: bufferTimeout}
}

type generateReq struct {
	TravelData *itinerary.TripPreferences `json:"travelData"`
	Stream     bool                       `json:"stream"`
}

// Generate handles POST /api/itineraries/generate.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", codeInvalidRequest)
		return
	}
	if req.TravelData == nil {
		writeError(c, http.StatusBadRequest, "missing travelData", codeInvalidRequest)
		return
	}
	prefs := req.TravelData.Normalize()
	if err := prefs.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, err.Error(), codeInvalidRequest)
		return
	}
	logger.Info("generating itinerary", "destination", prefs.Destination, "days", prefs.Days(), "stream", req.Stream)

	if req.Stream {
		h.stream(c, prefs)
		return
	}
	h.buffered(c, prefs)
}

func (h *GenerateHandler) buffered(c *gin.Context, prefs itinerary.TripPreferences) {
	ctx, cancel := withOptionalTimeout(c.Request.Context(), h.bufferTimeout)
	defer cancel()

	gen, err := stream.NewGenerator(h.provider, prefs).Generate(ctx)
	if err != nil {
		writeGenerationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"itinerary": json.RawMessage(gen.Raw)})
}

// stream answers with text/event-stream once the upstream stream is open.
// A failure to open it is answered with a plain JSON error instead.
func (h *GenerateHandler) stream(c *gin.Context, prefs itinerary.TripPreferences) {
	ctx, cancel := withOptionalTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	src, err := h.provider.Stream(ctx, ai.BuildPrompt(prefs, ai.ModeStreaming))
	if err != nil {
		writeGenerationError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	events := make(chan itinerary.Event, 16)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stream.NewMultiplexer(src).Run(gctx, events)
	})
	g.Go(func() error {
		sent := 0
		for ev := range events {
			if err := stream.WriteEvent(c.Writer, ev); err != nil {
				return err
			}
			c.Writer.Flush()
			sent++
		}
		logger.Debug("event stream closed", "events", sent)
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("event stream ended with error", "code", ai.Classify(err), "err", err)
	}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
