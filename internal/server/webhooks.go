package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/observability/logger"
	"github.com/smallbiznis/mysteryart/internal/payment/adapters/stripe"
	"go.uber.org/zap"
)

const (
	contextOrderIDKey = "order_id"
	contextOutcomeKey = "fulfillment_outcome"
)

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
	OrderID  string `json:"order_id,omitempty"`
}

// HandleStripeWebhook acknowledges a delivery once its outcome is durable.
// A failed attempt is answered with 503 so the provider redelivers, unless
// the sweeper owns retries.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Error: errorPayload{
				Type:    "payload_too_large",
				Message: fmt.Sprintf("webhook body exceeds %d bytes", maxWebhookBodyBytes),
			}})
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	event, result, err := s.webhooks.IngestWebhook(ctx, payload, c.GetHeader(stripe.SignatureHeader))
	resp := webhookResponse{Received: true, Outcome: string(result.Outcome)}
	if event != nil && event.OrderID != "" {
		resp.OrderID = event.OrderID
		c.Set(contextOrderIDKey, event.OrderID)
	}
	if result.Outcome != "" {
		c.Set(contextOutcomeKey, string(result.Outcome))
	}

	if err != nil {
		log := logger.WithContext(ctx, s.log).With(zap.String("order_id", resp.OrderID))
		switch result.Outcome {
		case fulfillmentdomain.OutcomeExhausted:
			// Terminal: operators were alerted and redelivery cannot help.
			log.Warn("fulfillment exhausted", zap.Error(err))
		case fulfillmentdomain.OutcomeFulfilled:
			// The sink already has the order; a redelivery would dispatch it again.
			log.Error("fulfilled order could not be marked notified", zap.Error(err))
		case fulfillmentdomain.OutcomeFailed:
			if !s.cfg.Sweeper.Enabled {
				AbortWithError(c, fmt.Errorf("%w: %w", ErrFulfillmentPending, err))
				return
			}
			log.Warn("fulfillment failed, sweeper will redrive", zap.Error(err))
		default:
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}
