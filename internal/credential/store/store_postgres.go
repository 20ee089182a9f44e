package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"iam/internal/credential/models"
)

// PostgresStore persists stamps and claims in PostgreSQL.
// Schema lives in migrations/000001_create_stamps.up.sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Claim inserts the claim if absent, then reads back the owner.
func (s *PostgresStore) Claim(ctx context.Context, hash, address string) (string, error) {
	if hash == "" || address == "" {
		return "", fmt.Errorf("hash and address are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stamp_claims (hash, address, claimed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (hash) DO NOTHING
	`, hash, address)
	if err != nil {
		return "", fmt.Errorf("insert claim: %w", err)
	}

	var owner string
	if err := s.db.QueryRowContext(ctx, `SELECT address FROM stamp_claims WHERE hash = $1`, hash).Scan(&owner); err != nil {
		return "", fmt.Errorf("read claim owner: %w", err)
	}
	return owner, nil
}

func (s *PostgresStore) Save(ctx context.Context, stamp *models.Stamp) error {
	if stamp == nil {
		return fmt.Errorf("stamp is required")
	}
	record, err := json.Marshal(stamp.Record)
	if err != nil {
		return fmt.Errorf("encode stamp record: %w", err)
	}
	query := `
		INSERT INTO stamps (id, provider, address, hash, record, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (hash) DO UPDATE SET
			address = EXCLUDED.address,
			record = EXCLUDED.record,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		stamp.ID,
		stamp.Provider,
		stamp.Address,
		stamp.Hash,
		record,
		stamp.IssuedAt,
		stamp.ExpiresAt,
	).Scan(&stamp.ID)
	if err != nil {
		return fmt.Errorf("save stamp: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*models.Stamp, error) {
	query := `
		SELECT id, provider, address, hash, record, issued_at, expires_at
		FROM stamps
		WHERE hash = $1
	`
	stamp, err := scanStamp(s.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find stamp: %w", err)
	}
	return stamp, nil
}

func (s *PostgresStore) ListByAddress(ctx context.Context, address string) ([]*models.Stamp, error) {
	query := `
		SELECT id, provider, address, hash, record, issued_at, expires_at
		FROM stamps
		WHERE address = $1
		ORDER BY issued_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("list stamps: %w", err)
	}
	defer rows.Close()

	var result []*models.Stamp
	for rows.Next() {
		stamp, err := scanStamp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stamp: %w", err)
		}
		result = append(result, stamp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stamps: %w", err)
	}
	return result, nil
}

type stampRow interface {
	Scan(dest ...any) error
}

func scanStamp(row stampRow) (*models.Stamp, error) {
	var stamp models.Stamp
	var record []byte
	if err := row.Scan(&stamp.ID, &stamp.Provider, &stamp.Address, &stamp.Hash, &record, &stamp.IssuedAt, &stamp.ExpiresAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(record, &stamp.Record); err != nil {
		return nil, fmt.Errorf("decode stamp record: %w", err)
	}
	return &stamp, nil
}
