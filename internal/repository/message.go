package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nearhub/chatd/internal/domain"
)

const DefaultPageSize = 30

type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (mr *MessageRepo) CreateDirect(ctx context.Context, senderID, recipientID, content string) (*domain.DirectMessage, error) {
	query := `
		INSERT INTO direct_messages (id, sender_id, recipient_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, sender_id, recipient_id, content, created_at;
	`

	var msg domain.DirectMessage
	err := mr.db.QueryRowxContext(ctx, query, uuid.NewString(), senderID, recipientID, content).StructScan(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (mr *MessageRepo) CreateGroup(ctx context.Context, senderID, roomID, content string) (*domain.GroupMessage, error) {
	query := `
		INSERT INTO group_messages (id, sender_id, room_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, sender_id, room_id, content, created_at;
	`

	var msg domain.GroupMessage
	err := mr.db.QueryRowxContext(ctx, query, uuid.NewString(), senderID, roomID, content).StructScan(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetDirect returns nil, nil when the message does not exist.
func (mr *MessageRepo) GetDirect(ctx context.Context, id string) (*domain.DirectMessage, error) {
	query := `
		SELECT id, sender_id, recipient_id, content, created_at
		FROM direct_messages
		WHERE id = $1;
	`

	var msg domain.DirectMessage
	err := mr.db.GetContext(ctx, &msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (mr *MessageRepo) GetGroup(ctx context.Context, id string) (*domain.GroupMessage, error) {
	query := `
		SELECT id, sender_id, room_id, content, created_at
		FROM group_messages
		WHERE id = $1;
	`

	var msg domain.GroupMessage
	err := mr.db.GetContext(ctx, &msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (mr *MessageRepo) DeleteDirect(ctx context.Context, id string) error {
	_, err := mr.db.ExecContext(ctx, `DELETE FROM direct_messages WHERE id = $1;`, id)
	return err
}

func (mr *MessageRepo) DeleteGroup(ctx context.Context, id string) error {
	_, err := mr.db.ExecContext(ctx, `DELETE FROM group_messages WHERE id = $1;`, id)
	return err
}

// PaginateDirect returns the newest-first page of messages between two users.
func (mr *MessageRepo) PaginateDirect(ctx context.Context, userID, otherUserID string, skip, take int) ([]domain.DirectMessage, error) {
	query := `
		SELECT id, sender_id, recipient_id, content, created_at
		FROM direct_messages
		WHERE (
			(sender_id = $1 AND recipient_id = $2)
			OR
			(sender_id = $2 AND recipient_id = $1)
		)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4;
	`

	var messages []domain.DirectMessage
	err := mr.db.SelectContext(ctx, &messages, query, userID, otherUserID, skip, take)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}

	reactions, err := mr.reactionsFor(ctx, "direct_message_id", ids)
	if err != nil {
		return nil, err
	}

	for i := range messages {
		for _, r := range reactions {
			if *r.DirectMessageID == messages[i].ID {
				messages[i].Reactions = append(messages[i].Reactions, r)
			}
		}
	}
	return messages, nil
}

// PaginateGroup returns the newest-first page of a room's messages.
func (mr *MessageRepo) PaginateGroup(ctx context.Context, roomID string, skip, take int) ([]domain.GroupMessage, error) {
	query := `
		SELECT id, sender_id, room_id, content, created_at
		FROM group_messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3;
	`

	var messages []domain.GroupMessage
	err := mr.db.SelectContext(ctx, &messages, query, roomID, skip, take)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}

	reactions, err := mr.reactionsFor(ctx, "group_message_id", ids)
	if err != nil {
		return nil, err
	}

	for i := range messages {
		for _, r := range reactions {
			if *r.GroupMessageID == messages[i].ID {
				messages[i].Reactions = append(messages[i].Reactions, r)
			}
		}
	}
	return messages, nil
}

func (mr *MessageRepo) reactionsFor(ctx context.Context, column string, messageIDs []string) ([]domain.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, user_id, emoji, direct_message_id, group_message_id, created_at
		FROM reactions
		WHERE `+column+` IN (?);
	`, messageIDs)
	if err != nil {
		return nil, err
	}
	query = mr.db.Rebind(query)

	var reactions []domain.Reaction
	if err := mr.db.SelectContext(ctx, &reactions, query, args...); err != nil {
		return nil, err
	}
	return reactions, nil
}

// ListConversations returns one row per distinct DM counterparty, newest
// conversation first.
func (mr *MessageRepo) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	query := `
		SELECT DISTINCT ON (counterpart_id)
			counterpart_id,
			content AS last_content,
			created_at AS last_at
		FROM (
			SELECT
				CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS counterpart_id,
				content,
				created_at
			FROM direct_messages
			WHERE sender_id = $1 OR recipient_id = $1
		) dm
		ORDER BY counterpart_id, created_at DESC;
	`

	var summaries []domain.ConversationSummary
	err := mr.db.SelectContext(ctx, &summaries, query, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// DISTINCT ON fixes the counterpart ordering, the inbox wants recency.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastAt.After(summaries[j].LastAt)
	})
	return summaries, nil
}
