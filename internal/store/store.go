// Package store persists users, research topics, runs, and generated reports
// in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/litmaphq/litmap/models"
)

type Store struct {
	DB *sql.DB
}

// Run statuses persisted for scheduled research runs.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Topic is a saved research query with an optional refresh schedule.
type Topic struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Query        string    `json:"query"`
	ScheduleCron string    `json:"schedule_cron"`
	CreatedAt    time.Time `json:"created_at"`
}

// Run records one execution of a topic's research pipeline.
type Run struct {
	ID         string     `json:"id"`
	TopicID    string     `json:"topic_id"`
	Status     string     `json:"status"`
	ReportID   *string    `json:"report_id,omitempty"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ReportID       string    `json:"report_id"`
	Query          string    `json:"query"`
	PapersAnalyzed int       `json:"papers_analyzed"`
	ThemeCount     int       `json:"theme_count"`
	CreatedAt      time.Time `json:"created_at"`
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

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Topic operations
func (s *Store) CreateTopic(ctx context.Context, userID, name, query, cron string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO topics (user_id, name, query, schedule_cron) VALUES ($1,$2,$3,$4) RETURNING id`,
		userID, name, query, cron).Scan(&id)
	return id, err
}

func (s *Store) ListTopics(ctx context.Context, userID string) ([]Topic, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, name, query, schedule_cron, created_at FROM topics WHERE user_id=$1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Query, &t.ScheduleCron, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListAllTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, name, query, schedule_cron, created_at FROM topics ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Query, &t.ScheduleCron, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTopicByID(ctx context.Context, id string, userID string) (Topic, error) {
	var t Topic
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, name, query, schedule_cron, created_at FROM topics WHERE id=$1 AND user_id=$2`,
		id, userID).Scan(&t.ID, &t.UserID, &t.Name, &t.Query, &t.ScheduleCron, &t.CreatedAt)
	return t, err
}

func (s *Store) DeleteTopic(ctx context.Context, id string, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM topics WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Run operations
func (s *Store) CreateRun(ctx context.Context, topicID string, status string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO runs (topic_id, status) VALUES ($1,$2) RETURNING id`, topicID, status).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, reportID *string, errMsg *string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$2, report_id=$3, error=$4, finished_at=now() WHERE id=$1`,
		runID, status, reportID, errMsg)
	return err
}

func (s *Store) LatestRunTime(ctx context.Context, topicID string) (*time.Time, error) {
	var ts sql.NullTime
	err := s.DB.QueryRowContext(ctx,
		`SELECT MAX(started_at) FROM runs WHERE topic_id=$1`, topicID).Scan(&ts)
	if err != nil {
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Time, nil
}

func (s *Store) ListRuns(ctx context.Context, topicID string) ([]Run, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, topic_id, status, report_id, error, started_at, finished_at FROM runs WHERE topic_id=$1 ORDER BY started_at DESC`,
		topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.TopicID, &r.Status, &r.ReportID, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Report operations. Papers, themes, and citations are stored as JSONB so a
// report round-trips without a join fan-out.
func (s *Store) SaveReport(ctx context.Context, report *models.ResearchReport) error {
	citations, err := json.Marshal(report.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}
	themes, err := json.Marshal(report.Themes)
	if err != nil {
		return fmt.Errorf("marshal themes: %w", err)
	}
	topPapers, err := json.Marshal(report.TopPapers)
	if err != nil {
		return fmt.Errorf("marshal top papers: %w", err)
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO reports (id, query, papers_analyzed, markdown, citations, themes, top_papers, processing_time_ms, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		report.ReportID, report.Query, report.PapersAnalyzed, report.Markdown,
		citations, themes, topPapers, report.ProcessingTime.Milliseconds(), report.CreatedAt)
	return err
}

func (s *Store) GetReport(ctx context.Context, reportID string) (*models.ResearchReport, error) {
	var (
		report    models.ResearchReport
		citations []byte
		themes    []byte
		topPapers []byte
		ms        int64
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, query, papers_analyzed, markdown, citations, themes, top_papers, processing_time_ms, created_at
		 FROM reports WHERE id=$1`, reportID).
		Scan(&report.ReportID, &report.Query, &report.PapersAnalyzed, &report.Markdown,
			&citations, &themes, &topPapers, &ms, &report.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(citations, &report.Citations); err != nil {
		return nil, fmt.Errorf("unmarshal citations: %w", err)
	}
	if err := json.Unmarshal(themes, &report.Themes); err != nil {
		return nil, fmt.Errorf("unmarshal themes: %w", err)
	}
	if err := json.Unmarshal(topPapers, &report.TopPapers); err != nil {
		return nil, fmt.Errorf("unmarshal top papers: %w", err)
	}
	report.ProcessingTime = time.Duration(ms) * time.Millisecond
	return &report, nil
}

func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, query, papers_analyzed, COALESCE(jsonb_array_length(NULLIF(themes, 'null'::jsonb)), 0), created_at
		 FROM reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportSummary
	for rows.Next() {
		var r ReportSummary
		if err := rows.Scan(&r.ReportID, &r.Query, &r.PapersAnalyzed, &r.ThemeCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
