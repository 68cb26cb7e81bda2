package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeskhq/opsdesk/internal/db"
)

const messageColumns = `
	id, conversation_id, org_id, slack_channel_id, slack_ts, slack_thread_ts,
	sender_kind, sender_name, sender_avatar, body, created_at`

// PGStore is the Postgres-backed message store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a Postgres message store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// InsertIfAbsent writes the message and updates the owning conversation's
// denormalized fields in one transaction. A conflict on (channel, ts) means
// the event was already ingested; the transaction is abandoned and
// ErrDuplicate returned.
func (s *PGStore) InsertIfAbsent(ctx context.Context, params IngestParams) (Message, error) {
	pgConvID, err := db.ParseUUID(params.ConversationID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid conversation id: %w", err)
	}
	pgOrgID, err := db.ParseUUID(params.OrgID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid org id: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO messages (
			conversation_id, org_id, slack_channel_id, slack_ts, slack_thread_ts,
			sender_kind, sender_name, sender_avatar, body
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (slack_channel_id, slack_ts) DO NOTHING
		RETURNING`+messageColumns,
		pgConvID, pgOrgID, params.SlackChannelID, params.SlackTS, params.SlackThreadTS,
		params.SenderKind, params.SenderName, params.SenderAvatar, params.Body)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrDuplicate
	}
	if err != nil {
		return Message{}, err
	}

	// Replies from operators are already "seen"; only external and system
	// traffic bumps the unread counter.
	unreadDelta := 1
	if params.SenderKind == SenderInternal {
		unreadDelta = 0
	}
	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_text = $2,
		    last_message_at = $3,
		    last_sender_name = $4,
		    unread_count = unread_count + $5,
		    message_count = message_count + 1,
		    updated_at = now()
		WHERE id = $1`,
		pgConvID, Preview(params.Body), msg.CreatedAt, params.SenderName, unreadDelta)
	if err != nil {
		return Message{}, fmt.Errorf("update conversation rollup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// ListByConversation returns messages ordered by their Slack ts, which is
// monotonically increasing within a channel.
func (s *PGStore) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	pgConvID, err := db.ParseUUID(conversationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY slack_ts ASC`, pgConvID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		id        pgtype.UUID
		convID    pgtype.UUID
		orgID     pgtype.UUID
		createdAt pgtype.Timestamptz
		msg       Message
	)
	err := row.Scan(
		&id, &convID, &orgID, &msg.SlackChannelID, &msg.SlackTS, &msg.SlackThreadTS,
		&msg.SenderKind, &msg.SenderName, &msg.SenderAvatar, &msg.Body, &createdAt,
	)
	if err != nil {
		return Message{}, err
	}
	msg.ID = db.UUIDToString(id)
	msg.ConversationID = db.UUIDToString(convID)
	msg.OrgID = db.UUIDToString(orgID)
	msg.CreatedAt = createdAt.Time
	return msg, nil
}
