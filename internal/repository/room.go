package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nearhub/chatd/internal/domain"
)

type RoomRepo struct {
	db *sqlx.DB
}

func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

func (rp *RoomRepo) CreateRoom(ctx context.Context, name, creatorID string) (*domain.Room, error) {
	tx, err := rp.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO rooms (id, name, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, created_at;
	`

	var room domain.Room
	if err := tx.QueryRowxContext(ctx, query, uuid.NewString(), name).StructScan(&room); err != nil {
		return nil, err
	}

	query = `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2);
	`

	if _, err := tx.ExecContext(ctx, query, room.ID, creatorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &room, nil
}

func (rp *RoomRepo) AddMember(ctx context.Context, roomID, userID string) error {
	query := `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING;
	`

	_, err := rp.db.ExecContext(ctx, query, roomID, userID)
	return err
}

func (rp *RoomRepo) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	query := `
		SELECT user_id FROM room_members WHERE room_id = $1;
	`

	var ids []string
	err := rp.db.SelectContext(ctx, &ids, query, roomID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return ids, nil
}

// UserRoomIDs lists every room the user is a member of.
func (rp *RoomRepo) UserRoomIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT room_id FROM room_members WHERE user_id = $1;
	`

	var ids []string
	err := rp.db.SelectContext(ctx, &ids, query, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return ids, nil
}

func (rp *RoomRepo) UserRooms(ctx context.Context, userID string) ([]domain.Room, error) {
	query := `
		SELECT r.id, r.name, r.created_at
		FROM rooms r
		JOIN room_members rm ON r.id = rm.room_id
		WHERE rm.user_id = $1
		ORDER BY r.created_at DESC;
	`

	var rooms []domain.Room
	err := rp.db.SelectContext(ctx, &rooms, query, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return rooms, nil
}
