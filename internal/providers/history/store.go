package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GriffinCanCode/tabsession/internal/domain/migration"
)

// Store is a SQLite-backed history database receiving migrated history.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path and creates tables if they don't exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS domains (
		id INTEGER PRIMARY KEY,
		domain TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		domain_id INTEGER NOT NULL,
		FOREIGN KEY (domain_id) REFERENCES domains(id)
	);

	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_id INTEGER NOT NULL,
		date INTEGER NOT NULL,
		FOREIGN KEY (site_id) REFERENCES history(id)
	);

	CREATE INDEX IF NOT EXISTS idx_visits_site ON visits(site_id);
	`
	_, err := db.Exec(schema)
	return err
}

// ClearHistory removes all history rows.
func (s *Store) ClearHistory(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"visits", "history", "domains"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// StoreDomains inserts domains keyed by their migration id.
func (s *Store) StoreDomains(ctx context.Context, domains map[string]int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO domains (id, domain) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare domains: %w", err)
		}
		defer stmt.Close()

		for domain, id := range domains {
			if _, err := stmt.ExecContext(ctx, id, domain); err != nil {
				return fmt.Errorf("insert domain %s: %w", domain, err)
			}
		}
		return nil
	})
}

// StoreSites inserts distinct history URLs.
func (s *Store) StoreSites(ctx context.Context, sites []migration.Site) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO history (id, url, title, domain_id) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare sites: %w", err)
		}
		defer stmt.Close()

		for _, site := range sites {
			if _, err := stmt.ExecContext(ctx, site.ID, site.URL, site.Title, site.DomainID); err != nil {
				return fmt.Errorf("insert site %s: %w", site.URL, err)
			}
		}
		return nil
	})
}

// StoreVisits inserts visits with microsecond timestamps.
func (s *Store) StoreVisits(ctx context.Context, visits []migration.Visit) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO visits (site_id, date) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare visits: %w", err)
		}
		defer stmt.Close()

		for _, v := range visits {
			if _, err := stmt.ExecContext(ctx, v.SiteID, v.Date.UnixMicro()); err != nil {
				return fmt.Errorf("insert visit: %w", err)
			}
		}
		return nil
	})
}

// Stats holds row counts per table.
type Stats struct {
	Domains int `json:"domains" yaml:"domains"`
	Sites   int `json:"sites" yaml:"sites"`
	Visits  int `json:"visits" yaml:"visits"`
}

// Stats counts the rows of each table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM domains),
		(SELECT COUNT(*) FROM history),
		(SELECT COUNT(*) FROM visits)`)
	if err := row.Scan(&st.Domains, &st.Sites, &st.Visits); err != nil {
		return Stats{}, fmt.Errorf("count rows: %w", err)
	}
	return st, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
