package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/livetranslate/billing-service/utils"
)

const maxWebhookBodyBytes = int64(65536)

func (s *Server) handleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	event, err := s.verifier.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("webhook signature verification failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook signature"})
		return
	}

	result := s.processor.Process(event)
	if result.Failure() {
		s.logger.Error(result.ErrorMessage(),
			slog.String("event_type", string(event.Type)),
			slog.String("error_code", result.ErrorCode()),
			slog.String("error", result.ErrorMsg()),
		)
		if result.IsCapturable() {
			utils.CaptureErrorResultWithExtra(result, "event_type", string(event.Type))
		}

		c.JSON(http.StatusBadRequest, gin.H{"error": result.ErrorMsg()})
		return
	}

	// Ignored outcomes are acknowledged like processed ones so the provider
	// stops redelivering them.
	c.JSON(http.StatusOK, gin.H{"received": true})
}

type cancelSubscriptionRequest struct {
	UserID      string `json:"userId" binding:"required"`
	Immediately bool   `json:"immediately"`
}

func (s *Server) handleCancelSubscription(c *gin.Context) {
	var req cancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameter: userId"})
		return
	}

	if _, err := uuid.Parse(req.UserID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	result := s.cancellations.Cancel(req.UserID, req.Immediately)
	if result.Failure() {
		if result.ErrorCode() == "subscription_not_found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "No active subscription found"})
			return
		}

		s.logger.Error(result.ErrorMessage(),
			slog.String("user_id", req.UserID),
			slog.String("error_code", result.ErrorCode()),
			slog.String("error", result.ErrorMsg()),
		)
		if result.IsCapturable() {
			utils.CaptureErrorResult(result)
		}

		c.JSON(http.StatusBadRequest, gin.H{"error": result.ErrorMsg()})
		return
	}

	outcome := result.Value()
	response := gin.H{
		"success": true,
		"message": outcome.Message,
	}
	if outcome.CancelAt != nil {
		response["cancelAt"] = outcome.CancelAt.Format(time.RFC3339)
	} else {
		response["cancelAt"] = nil
	}

	c.JSON(http.StatusOK, response)
}
