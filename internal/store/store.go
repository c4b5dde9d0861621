package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"
)

// Session statuses. Transitions are running -> completed | failed, once.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a slug does not resolve to a session.
var ErrNotFound = errors.New("research session not found")

// ErrAlreadyFinal is returned when a finalize hits a non-running session.
var ErrAlreadyFinal = errors.New("research session already finalized")

// ResearchSession is the durable record of one research request.
type ResearchSession struct {
	ID            int64                  `json:"id"`
	Slug          string                 `json:"slug"`
	Query         string                 `json:"query"`
	Title         string                 `json:"title"`
	Status        string                 `json:"status"`
	Model         string                 `json:"model"`
	Duration      *float64               `json:"duration,omitempty"`
	ResourcesUsed []string               `json:"resources_used"`
	Answer        *string                `json:"answer,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
	DatetimeStart time.Time              `json:"datetime_start"`
	DatetimeEnd   *time.Time             `json:"datetime_end,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Stats summarizes the session table.
type Stats struct {
	Total       int64   `json:"total"`
	Running     int64   `json:"running"`
	Completed   int64   `json:"completed"`
	Failed      int64   `json:"failed"`
	AvgDuration float64 `json:"avg_duration"`
}

type Store struct {
	DB *sql.DB
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// TitleFromQuery derives the display title: the query truncated at 60 chars.
func TitleFromQuery(query string) string {
	if len(query) > 60 {
		return query[:60] + "..."
	}
	return query
}

const sessionColumns = `id, slug, query, title, status, model, duration, resources_used, answer, metadata, datetime_start, datetime_end, created_at, updated_at`

// CreateSession inserts a new running session and returns it.
func (s *Store) CreateSession(ctx context.Context, slug, query, model string) (*ResearchSession, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO research_sessions (slug, query, title, status, model, resources_used, metadata)
VALUES ($1,$2,$3,$4,$5,'[]','{}')
RETURNING `+sessionColumns, slug, query, TitleFromQuery(query), StatusRunning, model)
	return scanSession(row)
}

// GetBySlug fetches one session.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*ResearchSession, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+sessionColumns+` FROM research_sessions WHERE slug=$1`, slug)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List returns sessions newest-first, optionally filtered by status.
func (s *Store) List(ctx context.Context, limit, offset int, status string) ([]ResearchSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = s.DB.QueryContext(ctx, `
SELECT `+sessionColumns+` FROM research_sessions WHERE status=$1 ORDER BY datetime_start DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
SELECT `+sessionColumns+` FROM research_sessions ORDER BY datetime_start DESC LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// Finalize applies the single running->terminal transition. The WHERE guard
// makes the transition exactly-once: a second call gets ErrAlreadyFinal.
func (s *Store) Finalize(ctx context.Context, slug, status string, duration float64, answer string, resources []string, metadata map[string]interface{}) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("invalid terminal status: %s", status)
	}
	resJSON, err := json.Marshal(resources)
	if err != nil {
		return fmt.Errorf("marshal resources: %w", err)
	}
	if resources == nil {
		resJSON = []byte("[]")
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if metadata == nil {
		metaJSON = []byte("{}")
	}

	res, err := s.DB.ExecContext(ctx, `
UPDATE research_sessions
SET status=$2, duration=$3, answer=$4, resources_used=$5, metadata=$6, datetime_end=NOW(), updated_at=NOW()
WHERE slug=$1 AND status=$7`, slug, status, duration, answer, resJSON, metaJSON, StatusRunning)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetBySlug(ctx, slug); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrAlreadyFinal
	}
	return nil
}

// UpdateTitle renames a session.
func (s *Store) UpdateTitle(ctx context.Context, slug, title string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE research_sessions SET title=$2, updated_at=NOW() WHERE slug=$1`, slug, title)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes a session. Administrative operation, never called by the pipeline.
func (s *Store) Delete(ctx context.Context, slug string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM research_sessions WHERE slug=$1`, slug)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Stats aggregates counts per status and the mean duration of finished runs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status='running'),
       COUNT(*) FILTER (WHERE status='completed'),
       COUNT(*) FILTER (WHERE status='failed'),
       COALESCE(AVG(duration), 0)
FROM research_sessions`).Scan(&st.Total, &st.Running, &st.Completed, &st.Failed, &st.AvgDuration)
	return st, err
}

// Search matches q against query, title and answer.
func (s *Store) Search(ctx context.Context, q string, limit int) ([]ResearchSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	pattern := "%" + q + "%"
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+sessionColumns+` FROM research_sessions
WHERE query ILIKE $1 OR title ILIKE $1 OR answer ILIKE $1
ORDER BY datetime_start DESC LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ReapStale fails sessions stuck in running for longer than maxAge.
func (s *Store) ReapStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
UPDATE research_sessions
SET status=$1, metadata = metadata || '{"error":"stale_session"}'::jsonb, datetime_end=NOW(), updated_at=NOW()
WHERE status=$2 AND datetime_start < NOW() - $3::interval`,
		StatusFailed, StatusRunning, fmt.Sprintf("%d seconds", int(maxAge.Seconds())))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return fmt.Errorf("email already registered")
	}
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*ResearchSession, error) {
	var (
		sess     ResearchSession
		duration sql.NullFloat64
		answer   sql.NullString
		end      sql.NullTime
		resJSON  []byte
		metaJSON []byte
	)
	err := row.Scan(&sess.ID, &sess.Slug, &sess.Query, &sess.Title, &sess.Status, &sess.Model,
		&duration, &resJSON, &answer, &metaJSON, &sess.DatetimeStart, &end, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if duration.Valid {
		sess.Duration = &duration.Float64
	}
	if answer.Valid {
		sess.Answer = &answer.String
	}
	if end.Valid {
		sess.DatetimeEnd = &end.Time
	}
	sess.ResourcesUsed = []string{}
	if len(resJSON) > 0 {
		if err := json.Unmarshal(resJSON, &sess.ResourcesUsed); err != nil {
			return nil, fmt.Errorf("decode resources_used: %w", err)
		}
	}
	sess.Metadata = map[string]interface{}{}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &sess, nil
}

func collectSessions(rows *sql.Rows) ([]ResearchSession, error) {
	var out []ResearchSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
