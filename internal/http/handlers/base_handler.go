// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"itinera/internal/ai"
	"itinera/internal/logger"
	"itinera/internal/modules/saved"
)

const (
	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"

	// statusClientClosedRequest is logged when the caller hangs up mid-request.
	statusClientClosedRequest = 499
)

type errorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	Details     string `json:"details,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg, code string) {
	writeJSON(c, status, errorResponse{Error: msg, Code: code})
}

// writeGenerationError maps the upstream error taxonomy onto HTTP statuses.
func writeGenerationError(c *gin.Context, err error) {
	code := ai.Classify(err)
	resp := errorResponse{Error: ai.UserMessage(err), Code: code}
	status := http.StatusInternalServerError
	switch code {
	case ai.CodeRateLimited:
		status = http.StatusTooManyRequests
	case ai.CodeAuthInvalid:
		status = http.StatusUnauthorized
	case ai.CodeUpstreamUnavailable:
		status = http.StatusServiceUnavailable
	case ai.CodeTimeout:
		status = http.StatusGatewayTimeout
	case ai.CodeUpstreamError, ai.CodeStreamRead:
		status = http.StatusBadGateway
	case ai.CodeMalformedOutput:
		status = http.StatusBadGateway
		var malformed *ai.MalformedOutputError
		if errors.As(err, &malformed) {
			resp.Details = malformed.Error()
			resp.RawResponse = malformed.RawPrefix
		}
	case ai.CodeCanceled:
		c.AbortWithStatus(statusClientClosedRequest)
		return
	default:
		logger.Error("generation failed", "err", err)
		resp.Error = "internal error"
	}
	writeJSON(c, status, resp)
}

func writeSavedError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, saved.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error(), codeInvalidRequest)
	case errors.Is(err, saved.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error(), codeNotFound)
	default:
		logger.Error("saved itinerary request failed", "path", c.FullPath(), "err", err)
		writeError(c, http.StatusInternalServerError, "internal error", ai.CodeInternal)
	}
}
