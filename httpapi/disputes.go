package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leaseflow/dispute"
)

// DisputeService covers the dispute operations the handler needs.
type DisputeService interface {
	File(ctx context.Context, params dispute.FileParams) (dispute.Record, error)
	Get(ctx context.Context, id string) (dispute.Record, error)
	ListByContract(ctx context.Context, contractID string) ([]dispute.Record, error)
	Decide(ctx context.Context, disputeID string, decision dispute.Resolution, adminReason string) (dispute.Record, error)
}

// DisputeHandler provides HTTP endpoints for dispute filing and resolution.
type DisputeHandler struct {
	service DisputeService
}

func NewDisputeHandler(service DisputeService) *DisputeHandler {
	return &DisputeHandler{service: service}
}

// RegisterProtectedRoutes sets up auth-required dispute routes.
func (h *DisputeHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/disputes", h.File)
	r.GET("/disputes/:id", h.Get)
	r.GET("/contracts/:id/disputes", h.ListByContract)
}

// RegisterAdminRoutes sets up admin-only dispute routes.
func (h *DisputeHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/disputes/:id/decision", h.Decide)
}

type disputeResponse struct {
	ID            string     `json:"id"`
	ContractID    string     `json:"contract_id"`
	DisputerID    string     `json:"disputer_id"`
	TransactionID string     `json:"transaction_id"`
	Reason        string     `json:"reason"`
	EvidenceURLs  []string   `json:"evidence_urls,omitempty"`
	Status        string     `json:"status"`
	Resolution    *string    `json:"resolution,omitempty"`
	AdminReason   *string    `json:"admin_reason,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toDisputeResponse(rec dispute.Record) disputeResponse {
	resp := disputeResponse{
		ID:            rec.ID,
		ContractID:    rec.ContractID,
		DisputerID:    rec.DisputerID,
		TransactionID: rec.TransactionID,
		Reason:        rec.Reason,
		EvidenceURLs:  rec.EvidenceURLs,
		Status:        string(rec.Status),
		AdminReason:   rec.AdminReason,
		ResolvedAt:    rec.ResolvedAt,
		CreatedAt:     rec.CreatedAt,
	}
	if rec.Resolution != nil {
		s := string(*rec.Resolution)
		resp.Resolution = &s
	}
	return resp
}

type fileDisputeRequest struct {
	ContractID    string   `json:"contract_id"`
	TransactionID string   `json:"transaction_id"`
	Reason        string   `json:"reason"`
	EvidenceURLs  []string `json:"evidence_urls"`
}

// File handles POST /v1/disputes
func (h *DisputeHandler) File(c *gin.Context) {
	var req fileDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	rec, err := h.service.File(c.Request.Context(), dispute.FileParams{
		ContractID:    req.ContractID,
		DisputerID:    CallerID(c),
		TransactionID: req.TransactionID,
		Reason:        req.Reason,
		EvidenceURLs:  req.EvidenceURLs,
	})
	if err != nil {
		if errors.Is(err, dispute.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "dispute_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"dispute": toDisputeResponse(rec)})
}

// Get handles GET /v1/disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, dispute.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Dispute not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": toDisputeResponse(rec)})
}

// ListByContract handles GET /v1/contracts/:id/disputes
func (h *DisputeHandler) ListByContract(c *gin.Context) {
	records, err := h.service.ListByContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	out := make([]disputeResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toDisputeResponse(rec))
	}
	c.JSON(http.StatusOK, gin.H{"disputes": out, "count": len(out)})
}

type decisionRequest struct {
	Decision    string `json:"decision"`
	AdminReason string `json:"admin_reason"`
}

// Decide handles POST /v1/disputes/:id/decision
func (h *DisputeHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	rec, err := h.service.Decide(c.Request.Context(), c.Param("id"), dispute.Resolution(req.Decision), req.AdminReason)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, dispute.ErrNotFound):
			status = http.StatusNotFound
			code = "not_found"
		case errors.Is(err, dispute.ErrAlreadyResolved):
			status = http.StatusConflict
			code = "already_resolved"
		case errors.Is(err, dispute.ErrInvalidDecision):
			status = http.StatusUnprocessableEntity
			code = "invalid_decision"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": toDisputeResponse(rec)})
}
