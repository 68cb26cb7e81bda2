package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeskhq/opsdesk/internal/db"
)

const conversationColumns = `
	id, org_id, slack_thread_ts, slack_channel_id, title, status,
	last_message_text, last_message_at, last_sender_name,
	unread_count, message_count, created_at, updated_at`

// PGStore is the Postgres-backed conversation store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a Postgres conversation store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Upsert inserts the conversation if absent, otherwise returns the existing
// row. ON CONFLICT DO NOTHING means the loser of a concurrent create sees no
// returned row and falls through to the re-read.
func (s *PGStore) Upsert(ctx context.Context, params UpsertParams) (Conversation, error) {
	pgOrgID, err := db.ParseUUID(params.OrgID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid org id: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (org_id, slack_thread_ts, slack_channel_id, title, status)
		VALUES ($1, $2, $3, $4, 'active')
		ON CONFLICT (org_id, slack_thread_ts) DO NOTHING
		RETURNING`+conversationColumns,
		pgOrgID, params.SlackThreadTS, params.SlackChannelID, params.Title)
	conv, err := scanConversation(row)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, err
	}

	// Race loser: another delivery created the row between our insert and
	// now. The unique index guarantees exactly one winner.
	row = s.pool.QueryRow(ctx, `
		SELECT`+conversationColumns+`
		FROM conversations
		WHERE org_id = $1 AND slack_thread_ts = $2`,
		pgOrgID, params.SlackThreadTS)
	conv, err = scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("conversation upsert lost race but winner missing for thread %s", params.SlackThreadTS)
	}
	return conv, err
}

// GetByID returns one conversation row.
func (s *PGStore) GetByID(ctx context.Context, id string) (Conversation, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Conversation{}, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT`+conversationColumns+`
		FROM conversations
		WHERE id = $1`, pgID)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return conv, err
}

// ListByOrg returns conversations for an organization, most recently
// active first.
func (s *PGStore) ListByOrg(ctx context.Context, orgID string) ([]Conversation, error) {
	pgOrgID, err := db.ParseUUID(orgID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+conversationColumns+`
		FROM conversations
		WHERE org_id = $1
		ORDER BY updated_at DESC`, pgOrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// UpdateStatus sets the lifecycle status.
func (s *PGStore) UpdateStatus(ctx context.Context, id, status string) (Conversation, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Conversation{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE conversations
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING`+conversationColumns, pgID, status)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return conv, err
}

// MarkRead resets the unread counter.
func (s *PGStore) MarkRead(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET unread_count = 0, updated_at = now()
		WHERE id = $1`, pgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		id            pgtype.UUID
		orgID         pgtype.UUID
		lastMessageAt pgtype.Timestamptz
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
		conv          Conversation
	)
	err := row.Scan(
		&id, &orgID, &conv.SlackThreadTS, &conv.SlackChannelID, &conv.Title, &conv.Status,
		&conv.LastMessageText, &lastMessageAt, &conv.LastSenderName,
		&conv.UnreadCount, &conv.MessageCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return Conversation{}, err
	}
	conv.ID = db.UUIDToString(id)
	conv.OrgID = db.UUIDToString(orgID)
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		conv.LastMessageAt = &t
	}
	conv.CreatedAt = createdAt.Time
	conv.UpdatedAt = updatedAt.Time
	return conv, nil
}
