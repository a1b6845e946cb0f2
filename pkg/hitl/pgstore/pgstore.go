// Package pgstore keeps the correction corpus and digitization results in
// PostgreSQL.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/gardar/labdigitize/pkg/hitl"
)

const uniqueViolation = "23505"

const schema = `
create table if not exists corrections (
	id         text primary key,
	original   jsonb not null,
	corrected  jsonb not null,
	created_at timestamptz not null default now()
);
create table if not exists results (
	name       text primary key,
	data       jsonb not null,
	created_at timestamptz not null default now()
);`

// Store implements hitl.CorrectionStore on a *sql.DB.
type Store struct{ DB *sql.DB }

var _ hitl.CorrectionStore = (*Store)(nil)

// Open connects to dsn, verifies the connection and creates the tables.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return &hitl.PersistenceError{Op: "migrate", Path: "postgres", Err: err}
	}
	return nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Count(ctx context.Context) (int, error) {
	const q = `select count(*) from corrections`
	var n int
	if err := s.DB.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, &hitl.PersistenceError{Op: "count corrections", Path: "corrections", Err: err}
	}
	return n, nil
}

// Create inserts the correction. The primary key makes a duplicate id fail
// with hitl.ErrCorpusRace.
func (s *Store) Create(ctx context.Context, id string, c hitl.Correction) error {
	if err := hitl.ValidateID(id); err != nil {
		return err
	}
	original, err := json.Marshal(c.Original)
	if err != nil {
		return &hitl.PersistenceError{Op: "encode correction", Path: id, Err: err}
	}
	corrected, err := json.Marshal(c.Corrected)
	if err != nil {
		return &hitl.PersistenceError{Op: "encode correction", Path: id, Err: err}
	}

	const q = `insert into corrections (id, original, corrected) values ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, q, id, original, corrected); err != nil {
		if isUniqueViolation(err) {
			return hitl.ErrCorpusRace
		}
		return &hitl.PersistenceError{Op: "save correction", Path: id, Err: err}
	}
	return nil
}

func (s *Store) All(ctx context.Context) ([]hitl.Correction, error) {
	const q = `select id, original, corrected from corrections order by id`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, &hitl.PersistenceError{Op: "read corrections", Path: "corrections", Err: err}
	}
	defer rows.Close()

	var corpus []hitl.Correction
	for rows.Next() {
		var (
			c                   hitl.Correction
			original, corrected []byte
		)
		if err := rows.Scan(&c.ID, &original, &corrected); err != nil {
			return nil, &hitl.PersistenceError{Op: "read corrections", Path: "corrections", Err: err}
		}
		if err := json.Unmarshal(original, &c.Original); err != nil {
			return nil, &hitl.PersistenceError{Op: "decode correction", Path: c.ID, Err: err}
		}
		if err := json.Unmarshal(corrected, &c.Corrected); err != nil {
			return nil, &hitl.PersistenceError{Op: "decode correction", Path: c.ID, Err: err}
		}
		corpus = append(corpus, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &hitl.PersistenceError{Op: "read corrections", Path: "corrections", Err: err}
	}
	return corpus, nil
}

// SaveResult stores a rendered result document under name. An existing
// result is never replaced.
func (s *Store) SaveResult(ctx context.Context, name string, data []byte) error {
	const q = `insert into results (name, data) values ($1, $2)`
	if _, err := s.DB.ExecContext(ctx, q, name, data); err != nil {
		return &hitl.PersistenceError{Op: "save result", Path: name, Err: err}
	}
	return nil
}

func (s *Store) CountResults(ctx context.Context) (int, error) {
	const q = `select count(*) from results`
	var n int
	if err := s.DB.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, &hitl.PersistenceError{Op: "count results", Path: "results", Err: err}
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
