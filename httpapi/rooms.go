package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"leaseflow/room"
)

// RoomLister covers the room operations the handler needs.
type RoomLister interface {
	Create(ctx context.Context, params room.CreateParams) (room.Room, error)
	GetByID(ctx context.Context, id string) (room.Room, error)
	List(ctx context.Context, limit int) ([]room.Room, error)
}

// RoomHandler provides HTTP endpoints for room lookup and registration.
type RoomHandler struct {
	service RoomLister
}

func NewRoomHandler(service RoomLister) *RoomHandler {
	return &RoomHandler{service: service}
}

// RegisterRoutes sets up public room routes.
func (h *RoomHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rooms", h.List)
	r.GET("/rooms/:id", h.Get)
}

// RegisterProtectedRoutes sets up owner-only room routes.
func (h *RoomHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/rooms", h.Create)
}

type roomResponse struct {
	ID        string    `json:"id"`
	AreaID    string    `json:"area_id"`
	AreaName  string    `json:"area_name"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Number    string    `json:"number,omitempty"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

func toRoomResponse(r room.Room) roomResponse {
	return roomResponse{
		ID:        r.ID,
		AreaID:    r.AreaID,
		AreaName:  r.AreaName,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Number:    r.Number,
		Label:     r.Label(),
		CreatedAt: r.CreatedAt,
	}
}

type createRoomRequest struct {
	AreaID string `json:"area_id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Create handles POST /v1/rooms
func (h *RoomHandler) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	created, err := h.service.Create(c.Request.Context(), room.CreateParams{
		AreaID:  req.AreaID,
		OwnerID: CallerID(c),
		Name:    req.Name,
		Number:  req.Number,
	})
	if err != nil {
		if errors.Is(err, room.ErrUnknownArea) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown_area", "message": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room": toRoomResponse(created)})
}

// Get handles GET /v1/rooms/:id
func (h *RoomHandler) Get(c *gin.Context) {
	r, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": toRoomResponse(r)})
}

// List handles GET /v1/rooms
func (h *RoomHandler) List(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rooms, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	out := make([]roomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoomResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out, "count": len(out)})
}
