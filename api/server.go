package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v76"

	"github.com/livetranslate/billing-service/processors"
)

// EventVerifier checks a webhook payload against the provider's signing
// scheme before any business logic runs.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

type Server struct {
	logger        *slog.Logger
	engine        *gin.Engine
	verifier      EventVerifier
	processor     *processors.WebhookProcessor
	cancellations *processors.CancellationService
}

func NewServer(logger *slog.Logger, verifier EventVerifier, processor *processors.WebhookProcessor, cancellations *processors.CancellationService) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Client-Info", "ApiKey"},
		MaxAge:       12 * time.Hour,
	}))

	server := &Server{
		logger:        logger,
		engine:        engine,
		verifier:      verifier,
		processor:     processor,
		cancellations: cancellations,
	}

	engine.GET("/health", server.handleHealth)
	engine.POST("/webhooks/stripe", server.handleStripeWebhook)
	engine.POST("/subscriptions/cancel", server.handleCancelSubscription)

	return server
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
