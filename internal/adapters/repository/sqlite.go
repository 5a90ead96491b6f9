package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/biasaudit/internal/domain/model"
)

//go:embed sql/*
var ddl embed.FS

// SQLiteStore keeps reports in a SQLite file. The report body is stored
// as JSON next to the columns used for lookup and ordering.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path not specified")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	b, err := ddl.ReadFile("sql/ddl.sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, r model.Report) error { //nolint:gocritic // hugeParam
	if r.ID == "" {
		return ErrEmptyID
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID, err)
	}
	const q = `INSERT INTO report (id, request_id, status, created_at, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			request_id = excluded.request_id,
			status = excluded.status,
			created_at = excluded.created_at,
			body = excluded.body`
	if _, err := s.db.ExecContext(ctx, q, r.ID, r.RequestID, string(r.Status), r.CreatedAt.UnixNano(), string(body)); err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Report, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM report WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, ErrNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return decodeReport([]byte(body))
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM report ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]model.Report, 0, limit)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r, err := decodeReport([]byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

// Count returns the number of stored reports, or 0 when the query fails.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeReport(b []byte) (model.Report, error) {
	var r model.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return model.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
