package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"leaseflow/contract"
	"leaseflow/logging"
)

// WebhookHandler receives callbacks from the payment provider.
type WebhookHandler struct {
	contracts ContractService
	secret    string
}

func NewWebhookHandler(contracts ContractService, secret string) *WebhookHandler {
	return &WebhookHandler{contracts: contracts, secret: secret}
}

// RegisterRoutes sets up the webhook routes. These authenticate with the
// shared provider secret, not a user token.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/deposit-settled", h.DepositSettled)
}

type depositSettledRequest struct {
	ContractID     string `json:"contract_id"`
	IdempotencyKey string `json:"idempotency_key"`
	AmountCents    int64  `json:"amount_cents"`
}

// DepositSettled handles POST /v1/webhooks/deposit-settled. The provider
// retries on non-2xx, so a replayed key returns the current contract with 200.
func (h *WebhookHandler) DepositSettled(c *gin.Context) {
	provided := c.GetHeader("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Invalid webhook secret",
		})
		return
	}

	var req depositSettledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	updated, err := h.contracts.HandleDepositSettled(c.Request.Context(), contract.DepositSettledRequest{
		ContractID:     req.ContractID,
		IdempotencyKey: req.IdempotencyKey,
		AmountCents:    req.AmountCents,
	})
	if err != nil {
		switch {
		case errors.Is(err, contract.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
		case errors.Is(err, contract.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "message": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "webhook_failed", "message": err.Error()})
		}
		return
	}

	logging.L(c.Request.Context()).Info("deposit settled",
		"contractId", updated.ID, "status", string(updated.Status))
	c.JSON(http.StatusOK, gin.H{"contract": toContractResponse(updated)})
}
