package org

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeskhq/opsdesk/internal/db"
)

// PGStore is the Postgres-backed organization store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a Postgres organization store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetByID returns one organization row.
func (s *PGStore) GetByID(ctx context.Context, id string) (Organization, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Organization{}, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, settings, created_at, updated_at
		FROM organizations
		WHERE id = $1`, pgID)
	o, err := scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	return o, err
}

// ListBySetting returns organizations whose settings value matches, ordered
// by creation time so callers can pick a deterministic winner.
func (s *PGStore) ListBySetting(ctx context.Context, key, value string) ([]Organization, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, settings, created_at, updated_at
		FROM organizations
		WHERE settings->>$1 = $2
		ORDER BY created_at ASC`, key, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func scanOrganization(row pgx.Row) (Organization, error) {
	var (
		id        pgtype.UUID
		name      string
		settings  []byte
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &name, &settings, &createdAt, &updatedAt); err != nil {
		return Organization{}, err
	}
	o := Organization{
		ID:        db.UUIDToString(id),
		Name:      name,
		CreatedAt: createdAt.Time,
		UpdatedAt: updatedAt.Time,
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &o.Settings); err != nil {
			slog.Warn("organization settings unmarshal failed", slog.String("org_id", o.ID), slog.Any("error", err))
			return o, fmt.Errorf("decode settings for %s: %w", o.ID, err)
		}
	}
	return o, nil
}
