package room

import (
	"context"
	"fmt"
)

// Store abstracts repository operations for the service.
type Store interface {
	Create(ctx context.Context, params CreateParams) (Room, error)
	GetByID(ctx context.Context, id string) (Room, error)
	List(ctx context.Context, limit int) ([]Room, error)
}

// Service exposes business-level room operations.
type Service struct {
	repo Store
}

// NewService builds a Service using the provided repository.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create registers a room owned by the calling user.
func (s *Service) Create(ctx context.Context, params CreateParams) (Room, error) {
	if params.Name == "" {
		return Room{}, fmt.Errorf("room: name is required")
	}
	return s.repo.Create(ctx, params)
}

// GetByID returns the room for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Room, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit rooms.
func (s *Service) List(ctx context.Context, limit int) ([]Room, error) {
	return s.repo.List(ctx, limit)
}
