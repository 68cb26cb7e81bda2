package message

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeskhq/opsdesk/internal/db"
)

// Integration tests against a live Postgres. Set OPSDESK_TEST_DATABASE_URL
// to run them, e.g. postgres://postgres@127.0.0.1:5432/opsdesk_test?sslmode=disable
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("OPSDESK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("OPSDESK_TEST_DATABASE_URL not set")
	}
	if err := db.MigrateDSN(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

type conversationRollup struct {
	LastMessageText string
	LastSenderName  string
	UnreadCount     int
	MessageCount    int
}

func createTestConversation(t *testing.T, pool *pgxpool.Pool) (orgID, convID string) {
	t.Helper()
	ctx := context.Background()
	err := pool.QueryRow(ctx, `
		INSERT INTO organizations (name) VALUES ('ingest-org') RETURNING id::text`).Scan(&orgID)
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	threadTS := fmt.Sprintf("%d.000000", time.Now().UnixNano())
	err = pool.QueryRow(ctx, `
		INSERT INTO conversations (org_id, slack_thread_ts, slack_channel_id)
		VALUES ($1::uuid, $2, 'C200') RETURNING id::text`, orgID, threadTS).Scan(&convID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM messages WHERE org_id = $1::uuid`, orgID)
		_, _ = pool.Exec(ctx, `DELETE FROM conversations WHERE org_id = $1::uuid`, orgID)
		_, _ = pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1::uuid`, orgID)
	})
	return orgID, convID
}

func readRollup(t *testing.T, pool *pgxpool.Pool, convID string) conversationRollup {
	t.Helper()
	var r conversationRollup
	err := pool.QueryRow(context.Background(), `
		SELECT last_message_text, last_sender_name, unread_count, message_count
		FROM conversations WHERE id = $1::uuid`, convID).
		Scan(&r.LastMessageText, &r.LastSenderName, &r.UnreadCount, &r.MessageCount)
	if err != nil {
		t.Fatalf("read conversation rollup: %v", err)
	}
	return r
}

func TestPGStoreInsertIfAbsent(t *testing.T) {
	pool := openTestPool(t)
	store := NewStore(pool)
	orgID, convID := createTestConversation(t, pool)
	ctx := context.Background()

	ts := fmt.Sprintf("%d.100000", time.Now().UnixNano())
	params := IngestParams{
		ConversationID: convID,
		OrgID:          orgID,
		SlackChannelID: "C200",
		SlackTS:        ts,
		SenderKind:     SenderExternal,
		SenderName:     "Dana Cruz",
		Body:           "the deploy is stuck on step 3",
	}

	msg, err := store.InsertIfAbsent(ctx, params)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if msg.ID == "" || msg.SlackTS != ts {
		t.Fatalf("unexpected message: %+v", msg)
	}

	rollup := readRollup(t, pool, convID)
	if rollup.MessageCount != 1 {
		t.Fatalf("message_count = %d, want 1", rollup.MessageCount)
	}
	if rollup.UnreadCount != 1 {
		t.Fatalf("unread_count = %d, want 1", rollup.UnreadCount)
	}
	if rollup.LastMessageText != params.Body {
		t.Fatalf("last_message_text = %q, want %q", rollup.LastMessageText, params.Body)
	}
	if rollup.LastSenderName != params.SenderName {
		t.Fatalf("last_sender_name = %q, want %q", rollup.LastSenderName, params.SenderName)
	}
}

func TestPGStoreInsertIfAbsent_DuplicateLeavesRollupUntouched(t *testing.T) {
	pool := openTestPool(t)
	store := NewStore(pool)
	orgID, convID := createTestConversation(t, pool)
	ctx := context.Background()

	ts := fmt.Sprintf("%d.200000", time.Now().UnixNano())
	params := IngestParams{
		ConversationID: convID,
		OrgID:          orgID,
		SlackChannelID: "C200",
		SlackTS:        ts,
		SenderKind:     SenderExternal,
		SenderName:     "Dana Cruz",
		Body:           "please take a look",
	}
	if _, err := store.InsertIfAbsent(ctx, params); err != nil {
		t.Fatalf("insert: %v", err)
	}
	before := readRollup(t, pool, convID)

	// Redelivered event: same (channel, ts), possibly a mutated body.
	params.Body = "please take a look (edited)"
	_, err := store.InsertIfAbsent(ctx, params)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	var count int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM messages
		WHERE slack_channel_id = $1 AND slack_ts = $2`, params.SlackChannelID, ts).Scan(&count)
	if err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one message row, got %d", count)
	}

	after := readRollup(t, pool, convID)
	if after != before {
		t.Fatalf("rollup changed on duplicate: before %+v, after %+v", before, after)
	}
}

func TestPGStoreInsertIfAbsent_InternalSenderRefreshesPreview(t *testing.T) {
	pool := openTestPool(t)
	store := NewStore(pool)
	orgID, convID := createTestConversation(t, pool)
	ctx := context.Background()

	base := time.Now().UnixNano()
	external := IngestParams{
		ConversationID: convID,
		OrgID:          orgID,
		SlackChannelID: "C200",
		SlackTS:        fmt.Sprintf("%d.300000", base),
		SenderKind:     SenderExternal,
		SenderName:     "Dana Cruz",
		Body:           "anything new?",
	}
	if _, err := store.InsertIfAbsent(ctx, external); err != nil {
		t.Fatalf("insert external: %v", err)
	}

	// An operator reply counts toward message_count and refreshes the
	// preview, but is already seen and must not bump unread_count.
	internal := IngestParams{
		ConversationID: convID,
		OrgID:          orgID,
		SlackChannelID: "C200",
		SlackTS:        fmt.Sprintf("%d.300001", base),
		SenderKind:     SenderInternal,
		SenderName:     "Ops Bot",
		Body:           "rollback finished, retry now",
	}
	if _, err := store.InsertIfAbsent(ctx, internal); err != nil {
		t.Fatalf("insert internal: %v", err)
	}

	rollup := readRollup(t, pool, convID)
	if rollup.MessageCount != 2 {
		t.Fatalf("message_count = %d, want 2", rollup.MessageCount)
	}
	if rollup.UnreadCount != 1 {
		t.Fatalf("unread_count = %d, want 1", rollup.UnreadCount)
	}
	if rollup.LastMessageText != internal.Body {
		t.Fatalf("last_message_text = %q, want %q", rollup.LastMessageText, internal.Body)
	}
	if rollup.LastSenderName != internal.SenderName {
		t.Fatalf("last_sender_name = %q, want %q", rollup.LastSenderName, internal.SenderName)
	}
}
