package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested room does not exist.
	ErrNotFound = errors.New("room: not found")
	// ErrUnknownArea signals the referenced housing area does not exist.
	ErrUnknownArea = errors.New("room: unknown housing area")
)

// Repository provides access to rooms and their housing areas.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roomSelect = `
	SELECT r.id, r.housing_area_id, a.name, r.owner_id, r.name, r.number, r.created_at
	FROM rooms r
	JOIN housing_areas a ON a.id = r.housing_area_id
`

// Create registers a room under an existing housing area.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Room, error) {
	const insertSQL = `
		INSERT INTO rooms (housing_area_id, owner_id, name, number)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	room := Room{
		AreaID:  params.AreaID,
		OwnerID: params.OwnerID,
		Name:    params.Name,
		Number:  params.Number,
	}
	err := r.pool.QueryRow(ctx, insertSQL, params.AreaID, params.OwnerID, params.Name, params.Number).
		Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Room{}, ErrUnknownArea
		}
		return Room{}, fmt.Errorf("room: create: %w", err)
	}

	// Fetch the joined view so callers get the area name immediately.
	return r.GetByID(ctx, room.ID)
}

// GetByID fetches a room by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Room, error) {
	const query = roomSelect + ` WHERE r.id = $1`

	room, err := scanRoom(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("room: query by id: %w", err)
	}

	return room, nil
}

// List fetches up to limit rooms ordered by area then name.
func (r *Repository) List(ctx context.Context, limit int) ([]Room, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = roomSelect + `
		ORDER BY a.name ASC, r.name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("room: list: %w", err)
	}
	defer rows.Close()

	rooms := make([]Room, 0, limit)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("room: scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("room: iterate rooms: %w", err)
	}

	return rooms, nil
}

func scanRoom(row pgx.Row) (Room, error) {
	var room Room
	err := row.Scan(
		&room.ID,
		&room.AreaID,
		&room.AreaName,
		&room.OwnerID,
		&room.Name,
		&room.Number,
		&room.CreatedAt,
	)
	if err != nil {
		return Room{}, err
	}
	return room, nil
}
