package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nearhub/chatd/internal/domain"
)

type PresenceRepo struct {
	db *sqlx.DB
}

func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// SetOnline marks the user online, creating the row on first contact.
func (pr *PresenceRepo) SetOnline(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		INSERT INTO users (id, name, is_online)
		VALUES ($1, $1, TRUE)
		ON CONFLICT (id) DO UPDATE SET is_online = TRUE
		RETURNING id, name, is_online, last_seen;
	`

	var user domain.User
	if err := pr.db.QueryRowxContext(ctx, query, userID).StructScan(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (pr *PresenceRepo) SetOffline(ctx context.Context, userID string, lastSeen time.Time) (*domain.User, error) {
	query := `
		UPDATE users
		SET is_online = FALSE, last_seen = $2
		WHERE id = $1
		RETURNING id, name, is_online, last_seen;
	`

	var user domain.User
	if err := pr.db.QueryRowxContext(ctx, query, userID, lastSeen).StructScan(&user); err != nil {
		return nil, err
	}
	return &user, nil
}
