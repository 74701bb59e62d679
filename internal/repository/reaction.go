package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nearhub/chatd/internal/domain"
)

type ReactionRepo struct {
	db *sqlx.DB
}

func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Find returns nil, nil when no matching reaction exists.
func (rr *ReactionRepo) Find(ctx context.Context, userID, emoji string, ref domain.MessageRef) (*domain.Reaction, error) {
	column := "direct_message_id"
	if ref.Kind == domain.GroupKind {
		column = "group_message_id"
	}

	query := `
		SELECT id, user_id, emoji, direct_message_id, group_message_id, created_at
		FROM reactions
		WHERE user_id = $1 AND emoji = $2 AND ` + column + ` = $3;
	`

	var reaction domain.Reaction
	err := rr.db.GetContext(ctx, &reaction, query, userID, emoji, ref.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (rr *ReactionRepo) Create(ctx context.Context, userID, emoji string, ref domain.MessageRef) (*domain.Reaction, error) {
	var directID, groupID *string
	switch ref.Kind {
	case domain.GroupKind:
		groupID = &ref.MessageID
	default:
		directID = &ref.MessageID
	}

	query := `
		INSERT INTO reactions (id, user_id, emoji, direct_message_id, group_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, user_id, emoji, direct_message_id, group_message_id, created_at;
	`

	var reaction domain.Reaction
	err := rr.db.QueryRowxContext(ctx, query, uuid.NewString(), userID, emoji, directID, groupID).StructScan(&reaction)
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (rr *ReactionRepo) Delete(ctx context.Context, id string) error {
	_, err := rr.db.ExecContext(ctx, `DELETE FROM reactions WHERE id = $1;`, id)
	return err
}
