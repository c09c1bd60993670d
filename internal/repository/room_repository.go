package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

const roomColumns = `id, location, capability, kaltura_resource_id, is_auditorium, created_at`

// RoomRepository manages recording-eligible rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// FindByLocation returns the room for a meeting location or sql.ErrNoRows.
func (r *RoomRepository) FindByLocation(ctx context.Context, location string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE location = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, location); err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByID returns the room by id or sql.ErrNoRows.
func (r *RoomRepository) FindByID(ctx context.Context, id int) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// List returns all rooms ordered by location.
func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY location`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// UpdateKalturaResource links a room to its capture resource on the video platform.
func (r *RoomRepository) UpdateKalturaResource(ctx context.Context, id, resourceID int) error {
	const query = `UPDATE rooms SET kaltura_resource_id = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, resourceID); err != nil {
		return fmt.Errorf("update room %d: %w", id, err)
	}
	return nil
}
