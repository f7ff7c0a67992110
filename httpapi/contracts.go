package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"leaseflow/contract"
)

// ContractService covers the lifecycle operations the handler needs.
type ContractService interface {
	Create(ctx context.Context, tenantID string, params contract.CreateParams) (contract.Contract, error)
	Get(ctx context.Context, id, callerID string) (contract.Contract, error)
	ListByParty(ctx context.Context, userID string, limit int) ([]contract.Contract, error)
	SubmitRenewal(ctx context.Context, contractID, callerID string, newEnd time.Time) (contract.Contract, error)
	HandleDepositSettled(ctx context.Context, req contract.DepositSettledRequest) (contract.Contract, error)
}

// ContractHandler provides HTTP endpoints for the contract lifecycle.
type ContractHandler struct {
	service ContractService
}

func NewContractHandler(service ContractService) *ContractHandler {
	return &ContractHandler{service: service}
}

// RegisterProtectedRoutes sets up auth-required contract routes.
func (h *ContractHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/contracts", h.Create)
	r.GET("/contracts", h.List)
	r.GET("/contracts/:id", h.Get)
	r.POST("/contracts/:id/renewal", h.SubmitRenewal)
}

type pendingUpdateResponse struct {
	NewEndDate  time.Time `json:"new_end_date"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type contractResponse struct {
	ID            string                 `json:"id"`
	TenantID      string                 `json:"tenant_id"`
	OwnerID       string                 `json:"owner_id"`
	RoomID        string                 `json:"room_id"`
	StartDate     time.Time              `json:"start_date"`
	EndDate       time.Time              `json:"end_date"`
	Status        string                 `json:"status"`
	TenantSigned  bool                   `json:"tenant_signed"`
	OwnerSigned   bool                   `json:"owner_signed"`
	PendingUpdate *pendingUpdateResponse `json:"pending_update,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func toContractResponse(c contract.Contract) contractResponse {
	resp := contractResponse{
		ID:           c.ID,
		TenantID:     c.TenantID,
		OwnerID:      c.OwnerID,
		RoomID:       c.RoomID,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		Status:       string(c.Status),
		TenantSigned: c.TenantSigned,
		OwnerSigned:  c.OwnerSigned,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.PendingUpdate != nil {
		resp.PendingUpdate = &pendingUpdateResponse{
			NewEndDate:  c.PendingUpdate.NewEndDate,
			SubmittedAt: c.PendingUpdate.SubmittedAt,
		}
	}
	return resp
}

type createContractRequest struct {
	RoomID    string    `json:"room_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Create handles POST /v1/contracts
func (h *ContractHandler) Create(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	created, err := h.service.Create(c.Request.Context(), CallerID(c), contract.CreateParams{
		RoomID:    req.RoomID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		switch {
		case errors.Is(err, contract.ErrInvalidDates):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_dates", "message": err.Error()})
		case errors.Is(err, contract.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found", "message": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "contract_failed", "message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"contract": toContractResponse(created)})
}

// Get handles GET /v1/contracts/:id
func (h *ContractHandler) Get(c *gin.Context) {
	found, err := h.service.Get(c.Request.Context(), c.Param("id"), CallerID(c))
	if err != nil {
		writeContractError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contract": toContractResponse(found)})
}

// List handles GET /v1/contracts
func (h *ContractHandler) List(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	contracts, err := h.service.ListByParty(c.Request.Context(), CallerID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	out := make([]contractResponse, 0, len(contracts))
	for _, item := range contracts {
		out = append(out, toContractResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"contracts": out, "count": len(out)})
}

type renewalRequest struct {
	NewEndDate time.Time `json:"new_end_date"`
}

// SubmitRenewal handles POST /v1/contracts/:id/renewal
func (h *ContractHandler) SubmitRenewal(c *gin.Context) {
	var req renewalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NewEndDate.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "new_end_date is required",
		})
		return
	}

	updated, err := h.service.SubmitRenewal(c.Request.Context(), c.Param("id"), CallerID(c), req.NewEndDate)
	if err != nil {
		writeContractError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contract": toContractResponse(updated)})
}

func writeContractError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, contract.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, contract.ErrForbidden):
		status = http.StatusForbidden
		code = "forbidden"
	case errors.Is(err, contract.ErrConflict):
		status = http.StatusConflict
		code = "conflict"
	case errors.Is(err, contract.ErrInvalidTransition):
		status = http.StatusConflict
		code = "invalid_state"
	case errors.Is(err, contract.ErrRenewalNotLater), errors.Is(err, contract.ErrInvalidDates):
		status = http.StatusUnprocessableEntity
		code = "invalid_dates"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
