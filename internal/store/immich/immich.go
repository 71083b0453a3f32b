// Package immich reads face detections, persons, and assets directly from an
// Immich PostgreSQL database.
package immich

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// ConnConfig holds the Immich database connection parameters.
type ConnConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// DSN renders the config as a lib/pq connection string.
func (c ConnConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable connect_timeout=10",
		c.Host, c.Port, c.Name, c.User, c.Password,
	)
}

// Reader manages a connection pool to the Immich database.
type Reader struct {
	db       *sql.DB
	nameMode facematch.NameMatchMode
}

// Open creates a new Immich database reader.
func Open(cfg ConnConfig, nameMode facematch.NameMatchMode) (*Reader, error) {
	if cfg.Host == "" || cfg.Name == "" || cfg.User == "" {
		return nil, errors.New("Immich database host, name and user are required")
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open Immich database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnreachable, err)
	}

	return &Reader{db: db, nameMode: nameMode}, nil
}

// Close closes the connection pool.
func (r *Reader) Close() error {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return fmt.Errorf("closing Immich database connection: %w", err)
		}
	}
	return nil
}

// TestConnection pings the store and collects totals.
func (r *Reader) TestConnection(ctx context.Context) store.TargetStatus {
	totals, err := r.totals(ctx)
	if err != nil {
		return store.TargetStatus{Connected: false, Error: err.Error()}
	}
	return store.TargetStatus{Connected: true, Totals: totals}
}

func (r *Reader) totals(ctx context.Context) (*store.TargetTotals, error) {
	var t store.TargetTotals

	queries := []struct {
		dst   *int
		query string
	}{
		{&t.TotalPersons, `SELECT COUNT(*) FROM person`},
		{&t.NamedPersons, `SELECT COUNT(*) FROM person WHERE name IS NOT NULL AND name != ''`},
		{&t.UniqueNamedPersons, `SELECT COUNT(DISTINCT LOWER(name)) FROM person WHERE name IS NOT NULL AND name != ''`},
		{&t.UnnamedPersons, `SELECT COUNT(*) FROM person WHERE name IS NULL OR name = ''`},
		{&t.TotalFaces, `SELECT COUNT(*) FROM asset_face WHERE "deletedAt" IS NULL`},
		{&t.TotalAssets, `SELECT COUNT(*) FROM asset WHERE "deletedAt" IS NULL`},
	}

	for _, q := range queries {
		if err := r.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrSchema, err)
		}
	}

	return &t, nil
}
