package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

const createCartsTable = `
CREATE TABLE IF NOT EXISTS storefront_carts (
	id         TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresCartStore stores cart snapshots in PostgreSQL
type PostgresCartStore struct {
	db *sql.DB
}

func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db}
}

// Migrate creates the carts table if needed
func (s *PostgresCartStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createCartsTable)
	return err
}

func (s *PostgresCartStore) Load(ctx context.Context, cartID string) (*CartSnapshot, bool, error) {
	var snap CartSnapshot
	var state []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, state, updated_at FROM storefront_carts WHERE id = $1`,
		cartID,
	).Scan(&snap.CartID, &state, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	snap.State = state
	return &snap, true, nil
}

func (s *PostgresCartStore) Save(ctx context.Context, snapshot *CartSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storefront_carts (id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`, snapshot.CartID, []byte(snapshot.State), snapshot.UpdatedAt)
	return err
}

func (s *PostgresCartStore) Delete(ctx context.Context, cartID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM storefront_carts WHERE id = $1`, cartID)
	return err
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
