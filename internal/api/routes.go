package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/internal/auth"
	"github.com/satriahrh/echocoach/internal/metrics"
	"github.com/satriahrh/echocoach/internal/phonetics"
	"github.com/satriahrh/echocoach/internal/websocket"
)

// Dependencies are the services the routes are served from.
// Speech is optional; without it the sample endpoint answers 501.
type Dependencies struct {
	Hub           *websocket.Hub
	Issuer        *auth.Issuer
	Analyzer      Analyzer
	Conversations Conversations
	Catalog       *phonetics.Catalog
	Speech        Synthesizer
	Logger        *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handler{
		issuer:        deps.Issuer,
		analyzer:      deps.Analyzer,
		conversations: deps.Conversations,
		catalog:       deps.Catalog,
		speech:        deps.Speech,
		logger:        deps.Logger,
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "echo-coach",
		})
	})

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/token", h.issueToken)

	// Reference content is public
	ph := v1.Group("/phonetics")
	ph.GET("/symbols", h.listSymbols)
	ph.GET("/symbols/:symbol", h.getSymbol)
	ph.GET("/symbols/:symbol/sample", h.symbolSample)
	ph.GET("/drills", h.listDrills)
	ph.GET("/rhythm", h.getRhythm)

	requireLearner := deps.Issuer.Middleware()
	v1.POST("/analyze", h.analyze, requireLearner)

	// Conversation APIs
	v1.POST("/conversations", h.startConversation, requireLearner)
	v1.GET("/conversations/:id", h.getConversation, requireLearner)
	v1.DELETE("/conversations/:id", h.endConversation, requireLearner)
	v1.GET("/conversations/:id/messages", h.listMessages, requireLearner)
	v1.POST("/conversations/:id/messages", h.sendMessage, requireLearner)

	// WebSocket endpoint authenticates inside the handshake
	if deps.Hub != nil {
		e.GET("/ws", deps.Hub.HandleWebSocket)
	}
}
