// Package pgtoken keeps REST bearer tokens in PostgreSQL.
package pgtoken

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
)

type Store struct {
	db *pgxpool.Pool
}

func New(connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Get returns the token stored for key, or nil when there is none.
func (s *Store) Get(ctx context.Context, key string) (*auth.Token, error) {
	var tok auth.Token
	err := s.db.QueryRow(ctx,
		`SELECT access_token, expires_at FROM carrier_tokens WHERE account_key = $1`, key,
	).Scan(&tok.AccessToken, &tok.Expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select token")
	}
	return &tok, nil
}

// Put replaces the token stored for key in a single statement.
func (s *Store) Put(ctx context.Context, key string, tok *auth.Token) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO carrier_tokens (account_key, access_token, expires_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (account_key) DO UPDATE
SET access_token = EXCLUDED.access_token,
    expires_at = EXCLUDED.expires_at,
    updated_at = EXCLUDED.updated_at`,
		key, tok.AccessToken, tok.Expiry, time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "upsert token")
	}
	return nil
}

// Purge deletes tokens that expired before now.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM carrier_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, errors.Wrap(err, "purge tokens")
	}
	return tag.RowsAffected(), nil
}

var _ auth.TokenCache = (*Store)(nil)
