// README: HTTP router registration.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"itinera/internal/http/handlers"
	httpmiddleware "itinera/internal/http/middleware"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(httpmiddleware.Recovery(), httpmiddleware.Logging(), corsMiddleware(deps.AllowedOrigins))

	generate := handlers.NewGenerateHandler(deps.Provider, deps.StreamTimeout, deps.BufferTimeout)
	r.POST("/api/itineraries/generate", generate.Generate)

	savedHandler := handlers.NewSavedHandler(deps.Saved)
	r.POST("/api/itineraries", savedHandler.Save)
	r.GET("/api/itineraries", savedHandler.List)
	r.GET("/api/itineraries/:id", savedHandler.Get)
	r.DELETE("/api/itineraries/:id", savedHandler.Delete)
	r.GET("/api/itineraries/:id/calendar.ics", savedHandler.Calendar)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || lo.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
