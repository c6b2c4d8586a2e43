package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"protodash/internal/metrics"
	"protodash/internal/storage"
)

const backendName = "sqlite"

type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS protocol_records (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		user_identity    TEXT NOT NULL,
		position         INTEGER NOT NULL,
		protocol         TEXT NOT NULL DEFAULT '',
		analyst          TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT '',
		analysis_nanos   INTEGER,
		scheduled_at     DATETIME,
		portfolio        TEXT NOT NULL DEFAULT '',
		saved_at         DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_protocol_records_user ON protocol_records(user_identity, position);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, user string) (metrics.Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT protocol, analyst, status, analysis_nanos, scheduled_at, portfolio
		 FROM protocol_records WHERE user_identity = ? ORDER BY position, id`,
		user,
	)
	if err != nil {
		return nil, storage.Unavailable(backendName, "load", user, err)
	}
	defer rows.Close()

	ds := metrics.Dataset{}
	for rows.Next() {
		var r metrics.Record
		var status string
		var nanos sql.NullInt64
		var scheduled sql.NullTime
		if err := rows.Scan(&r.Protocol, &r.User, &status, &nanos, &scheduled, &r.Portfolio); err != nil {
			return nil, storage.Unavailable(backendName, "load", user, err)
		}
		r.Status = metrics.Status(status)
		if nanos.Valid {
			d := time.Duration(nanos.Int64)
			r.AnalysisDuration = &d
		}
		if scheduled.Valid {
			t := scheduled.Time.UTC()
			r.ScheduledAt = &t
		}
		ds = append(ds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable(backendName, "load", user, err)
	}
	return ds, nil
}

// Save replaces every stored record of user with ds in one transaction.
func (s *Store) Save(ctx context.Context, user string, ds metrics.Dataset) error {
	if err := s.replace(ctx, user, ds); err != nil {
		return storage.Unavailable(backendName, "save", user, err)
	}
	return nil
}

func (s *Store) replace(ctx context.Context, user string, ds metrics.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM protocol_records WHERE user_identity = ?`, user); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO protocol_records (user_identity, position, protocol, analyst, status, analysis_nanos, scheduled_at, portfolio)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range ds {
		var nanos sql.NullInt64
		if r.AnalysisDuration != nil {
			nanos = sql.NullInt64{Int64: int64(*r.AnalysisDuration), Valid: true}
		}
		var scheduled sql.NullTime
		if r.ScheduledAt != nil {
			scheduled = sql.NullTime{Time: r.ScheduledAt.UTC(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			user, i, r.Protocol, r.User, string(r.Status), nanos, scheduled, r.Portfolio,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
