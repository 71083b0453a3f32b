// Package legacy reads named persons and face rectangles from a Windows
// Photos Legacy SQLite database (MediaDb.v1.sqlite).
package legacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// Reader manages a read-only connection to the legacy store.
type Reader struct {
	db       *sql.DB
	nameMode facematch.NameMatchMode
}

// Open opens the legacy database at path. The database is opened read-only;
// the migration never writes to the source side.
func Open(path string, nameMode facematch.NameMatchMode) (*Reader, error) {
	if path == "" {
		return nil, errors.New("legacy database path is required")
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", url.PathEscape(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy database: %w", err)
	}

	// SQLite is a single file; one connection avoids locking surprises.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnreachable, err)
	}

	return &Reader{db: db, nameMode: nameMode}, nil
}

// Close closes the connection.
func (r *Reader) Close() error {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return fmt.Errorf("closing legacy database: %w", err)
		}
	}
	return nil
}

// TestConnection pings the store and collects totals.
func (r *Reader) TestConnection(ctx context.Context) store.SourceStatus {
	totals, err := r.totals(ctx)
	if err != nil {
		return store.SourceStatus{Connected: false, Error: err.Error()}
	}
	return store.SourceStatus{Connected: true, Totals: totals}
}

func (r *Reader) totals(ctx context.Context) (*store.SourceTotals, error) {
	var t store.SourceTotals

	queries := []struct {
		dst   *int
		query string
	}{
		{&t.TotalPersons, `SELECT COUNT(*) FROM Person`},
		{&t.NamedPersons, `SELECT COUNT(*) FROM Person WHERE Person_Name IS NOT NULL AND TRIM(Person_Name) != ''`},
		{&t.UniqueNamedPersons, `SELECT COUNT(DISTINCT LOWER(TRIM(Person_Name))) FROM Person WHERE Person_Name IS NOT NULL AND TRIM(Person_Name) != ''`},
		{&t.TotalFaces, `SELECT COUNT(*) FROM Face`},
		{&t.TotalItems, `SELECT COUNT(*) FROM Item`},
	}

	for _, q := range queries {
		if err := r.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrSchema, err)
		}
	}

	return &t, nil
}
