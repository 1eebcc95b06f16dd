package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const eventColumns = `id, user_id, title, description, start_date, end_date, platform, status, content_id, image_id, created_at`

// Store persists calendar events and content entries in Postgres. The
// schema is owned by the goose migrations under sql/.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
}

// Open connects a pool to dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string, maxConns int32, logger *zap.SugaredLogger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Infow("Connected to postgres event store", "maxConns", poolCfg.MaxConns)
	return New(pool, logger), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, logger *zap.SugaredLogger) *Store {
	return &Store{pool: pool, logger: logger}
}

// AddUser records a user that may not own any events yet.
func (s *Store) AddUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
SELECT user_id FROM users
UNION
SELECT user_id FROM calendar_events
ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) ListEvents(ctx context.Context, userID string) ([]calendar.CalendarEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE user_id = $1 ORDER BY start_date, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", userID, err)
	}
	defer rows.Close()

	var events []calendar.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events for %s: %w", userID, err)
	}
	return events, nil
}

func (s *Store) CreateEvent(ctx context.Context, event calendar.CalendarEvent) (calendar.CalendarEvent, error) {
	if event.Status == "" {
		event.Status = calendar.StatusPending
	}
	if err := event.Validate(); err != nil {
		return calendar.CalendarEvent{}, err
	}
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
INSERT INTO calendar_events (`+eventColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, event.UserID, event.Title, event.Description, event.StartDate, event.EndDate,
		event.Platform, string(event.Status), event.ContentID, event.ImageID, event.CreatedAt)
	if err != nil {
		return calendar.CalendarEvent{}, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// UpdateEvent locks the row, applies the patch in Go so the lifecycle
// rules live in one place, then writes the result back.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch calendar.EventPatch) (calendar.CalendarEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return calendar.CalendarEvent{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warnw("Rollback failed", "eventId", id, "error", rbErr)
		}
	}()

	current, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.CalendarEvent{}, fmt.Errorf("event %s: %w", id, calendar.ErrNotFound)
		}
		return calendar.CalendarEvent{}, fmt.Errorf("load event %s: %w", id, err)
	}

	updated, err := patch.Apply(current)
	if err != nil {
		return calendar.CalendarEvent{}, fmt.Errorf("event %s: %w", id, err)
	}

	_, err = tx.Exec(ctx, `
UPDATE calendar_events
SET title = $2, description = $3, platform = $4, status = $5, content_id = $6, image_id = $7
WHERE id = $1`,
		id, updated.Title, updated.Description, updated.Platform, string(updated.Status), updated.ContentID, updated.ImageID)
	if err != nil {
		return calendar.CalendarEvent{}, fmt.Errorf("update event %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return calendar.CalendarEvent{}, fmt.Errorf("commit event %s: %w", id, err)
	}
	return updated, nil
}

func (s *Store) GetContent(ctx context.Context, id string) (calendar.ContentEntry, error) {
	var (
		entry       calendar.ContentEntry
		contentType string
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, user_id, title, content, type, status, word_count, created_at
FROM content_entries WHERE id = $1`, id).Scan(
		&entry.ID, &entry.UserID, &entry.Title, &entry.Content, &contentType,
		&entry.Status, &entry.WordCount, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.ContentEntry{}, fmt.Errorf("content %s: %w", id, calendar.ErrNotFound)
		}
		return calendar.ContentEntry{}, fmt.Errorf("get content %s: %w", id, err)
	}
	entry.Type = calendar.ContentType(contentType)
	return entry, nil
}

func (s *Store) CreateContent(ctx context.Context, entry calendar.ContentEntry) (calendar.ContentEntry, error) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	if entry.WordCount == 0 {
		entry.WordCount = calendar.CountWords(entry.Content)
	}
	if entry.Status == "" {
		entry.Status = calendar.ContentStatusDraft
	}

	_, err := s.pool.Exec(ctx, `
INSERT INTO content_entries (id, user_id, title, content, type, status, word_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, entry.Title, entry.Content, string(entry.Type),
		entry.Status, entry.WordCount, entry.CreatedAt)
	if err != nil {
		return calendar.ContentEntry{}, fmt.Errorf("create content: %w", err)
	}
	return entry, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanEvent(row pgx.Row) (calendar.CalendarEvent, error) {
	var (
		e      calendar.CalendarEvent
		status string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.StartDate, &e.EndDate,
		&e.Platform, &status, &e.ContentID, &e.ImageID, &e.CreatedAt)
	if err != nil {
		return calendar.CalendarEvent{}, err
	}
	e.Status = calendar.EventStatus(status)
	return e, nil
}

var _ calendar.Store = (*Store)(nil)
