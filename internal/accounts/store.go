package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeskhq/opsdesk/internal/db"
)

// PGStore is the Postgres-backed account store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a Postgres account store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetByUsername returns one account row by username.
func (s *PGStore) GetByUsername(ctx context.Context, username string) (Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, display_name, role, is_active, created_at, updated_at
		FROM accounts
		WHERE username = $1`, username)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return account, err
}

// Count returns the number of account rows.
func (s *PGStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&count)
	return count, err
}

// Create inserts one account row.
func (s *PGStore) Create(ctx context.Context, params CreateAccountParams) (Account, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, password_hash, display_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, password_hash, display_name, role, is_active, created_at, updated_at`,
		params.Username, params.PasswordHash, db.ToText(params.DisplayName), params.Role)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id          pgtype.UUID
		displayName pgtype.Text
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
		account     Account
	)
	if err := row.Scan(&id, &account.Username, &account.passwordHash, &displayName, &account.Role, &account.IsActive, &createdAt, &updatedAt); err != nil {
		return Account{}, err
	}
	account.ID = db.UUIDToString(id)
	account.DisplayName = db.TextToString(displayName)
	account.CreatedAt = createdAt.Time
	account.UpdatedAt = updatedAt.Time
	return account, nil
}
