// README: Saved itinerary handlers (save, fetch, list, delete, calendar export).
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"itinera/internal/export"
	"itinera/internal/itinerary"
	"itinera/internal/modules/saved"
)

type SavedHandler struct {
	saved *saved.Service
}

func NewSavedHandler(svc *saved.Service) *SavedHandler {
	return &SavedHandler{saved: svc}
}

type saveReq struct {
	Title     string          `json:"title"`
	Itinerary json.RawMessage `json:"itinerary"`
}

// Save handles POST /api/itineraries.
func (h *SavedHandler) Save(c *gin.Context) {
	var req saveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", codeInvalidRequest)
		return
	}
	id, err := h.saved.Save(c.Request.Context(), saved.SaveCommand{Title: req.Title, Itinerary: req.Itinerary})
	if err != nil {
		writeSavedError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"id": id})
}

// Get handles GET /api/itineraries/:id.
func (h *SavedHandler) Get(c *gin.Context) {
	it, err := h.saved.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeSavedError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, it)
}

// List handles GET /api/itineraries?limit=N.
func (h *SavedHandler) List(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid limit", codeInvalidRequest)
			return
		}
		limit = n
	}
	items, err := h.saved.List(c.Request.Context(), limit)
	if err != nil {
		writeSavedError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"itineraries": items})
}

// Delete handles DELETE /api/itineraries/:id.
func (h *SavedHandler) Delete(c *gin.Context) {
	if err := h.saved.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeSavedError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Calendar handles GET /api/itineraries/:id/calendar.ics?start=YYYY-MM-DD.
func (h *SavedHandler) Calendar(c *gin.Context) {
	var start time.Time
	if v := c.Query("start"); v != "" {
		d, err := itinerary.ParseDate(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid start date", codeInvalidRequest)
			return
		}
		start = d.Time
	}
	it, doc, err := h.saved.Document(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeSavedError(c, err)
		return
	}
	out, err := export.Calendar(*doc, export.CalendarOptions{ID: it.ID, Title: it.Title, Start: start})
	if errors.Is(err, export.ErrUndated) {
		writeError(c, http.StatusUnprocessableEntity, "itinerary has no dates; pass ?start=YYYY-MM-DD", codeInvalidRequest)
		return
	}
	if err != nil {
		writeSavedError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="itinerary-`+it.ID+`.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(out))
}
