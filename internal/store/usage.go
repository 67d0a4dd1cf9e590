package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"demandflow/internal/models"
)

// UsageStore appends and aggregates AI usage events. The log is
// append-only; events are never updated or deleted. IDs are ULIDs so the
// primary key doubles as a chronological cursor for paging.
type UsageStore struct {
	db *sql.DB
}

// NewUsageStore creates a new UsageStore with the given database connection.
func NewUsageStore(db *sql.DB) *UsageStore {
	return &UsageStore{db: db}
}

// Record appends one usage event and returns it with its generated ID.
func (s *UsageStore) Record(e *models.UsageEvent) (*models.UsageEvent, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("record usage: ulid: %w", err)
	}
	e.ID = id.String()

	err = s.db.QueryRow(`
		INSERT INTO usage_events (id, provider, model, kind, prompt_tokens, completion_tokens, images, latency_ms, success, error_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, e.ID, e.Provider, e.Model, e.Kind, e.PromptTokens, e.CompletionTokens,
		e.Images, e.LatencyMS, e.Success, e.ErrorCode,
	).Scan(&e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}
	return e, nil
}

// List pages through the usage log newest first. Pass the last ID of the
// previous page as cursor; an empty cursor starts from the newest event.
func (s *UsageStore) List(cursor string, limit int) ([]models.UsageEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, provider, model, kind, prompt_tokens, completion_tokens, images, latency_ms, success, error_code, created_at
		FROM usage_events`
	args := []any{}
	if cursor != "" {
		args = append(args, cursor)
		query += fmt.Sprintf(" WHERE id < $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list usage events: %w", err)
	}
	defer rows.Close()

	events := []models.UsageEvent{}
	for rows.Next() {
		var e models.UsageEvent
		if err := rows.Scan(
			&e.ID, &e.Provider, &e.Model, &e.Kind, &e.PromptTokens,
			&e.CompletionTokens, &e.Images, &e.LatencyMS, &e.Success,
			&e.ErrorCode, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats aggregates the usage log over an optional time window. Zero times
// mean an unbounded side.
func (s *UsageStore) Stats(from, to time.Time) (*models.UsageStats, error) {
	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	if to.IsZero() {
		to = time.Now()
	}

	stats := &models.UsageStats{ByProvider: []models.ProviderUsage{}}

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(prompt_tokens + completion_tokens), 0),
		       COALESCE(SUM(images), 0),
		       COALESCE(AVG(latency_ms), 0),
		       COALESCE(AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END), 0)
		FROM usage_events
		WHERE created_at BETWEEN $1 AND $2
	`, from, to).Scan(
		&stats.TotalEvents, &stats.TotalTokens, &stats.TotalImages,
		&stats.AvgLatencyMS, &stats.SuccessRate,
	)
	if err != nil {
		return nil, fmt.Errorf("usage stats: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT provider,
		       COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(images), 0),
		       COALESCE(AVG(latency_ms), 0),
		       COALESCE(AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END), 0)
		FROM usage_events
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY provider
		ORDER BY COUNT(*) DESC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("usage stats by provider: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.ProviderUsage
		if err := rows.Scan(
			&p.Provider, &p.Events, &p.PromptTokens, &p.CompletionTokens,
			&p.Images, &p.AvgLatencyMS, &p.SuccessRate,
		); err != nil {
			return nil, fmt.Errorf("scan provider usage: %w", err)
		}
		stats.ByProvider = append(stats.ByProvider, p)
	}
	return stats, rows.Err()
}
