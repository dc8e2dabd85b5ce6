package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var ErrSummaryNotFound = errors.New("summary not found")

type Repository interface {
	UpsertSummary(ctx context.Context, summary *Summary) error
	GetSummary(ctx context.Context, date time.Time, hour int, eventType string) (*Summary, error)
	GetSummariesByDateRange(ctx context.Context, from, to time.Time, eventType string) ([]*Summary, error)
	GetEventTotals(ctx context.Context, from, to time.Time, limit int) ([]*EventTotal, error)
}

type repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewRepository(db *sqlx.DB, logger *zap.Logger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

// UpsertSummary adds the bucket's counters to the stored row. Unique counts
// come from the consumer's in-memory sets and replace the stored ones.
func (r *repository) UpsertSummary(ctx context.Context, summary *Summary) error {
	query := r.db.Rebind(`
		INSERT INTO activity_summary (date, hour, event_type, total_events, unique_sessions, unique_users, total_time_ms, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, hour, event_type)
		DO UPDATE SET
			total_events = activity_summary.total_events + EXCLUDED.total_events,
			unique_sessions = EXCLUDED.unique_sessions,
			unique_users = EXCLUDED.unique_users,
			total_time_ms = activity_summary.total_time_ms + EXCLUDED.total_time_ms,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`)

	err := r.db.QueryRowContext(
		ctx,
		query,
		summary.Date.Time,
		summary.Hour,
		summary.EventType,
		summary.TotalEvents,
		summary.UniqueSessions,
		summary.UniqueUsers,
		summary.TotalTimeMS,
		summary.UpdatedAt.Time,
	).Scan(&summary.ID)

	if err != nil {
		r.logger.Error("Failed to upsert summary", zap.Error(err))
		return fmt.Errorf("failed to upsert summary: %w", err)
	}

	r.logger.Debug("Summary upserted",
		zap.String("date", summary.Date.Format("2006-01-02")),
		zap.Int("hour", summary.Hour),
		zap.String("event_type", summary.EventType),
		zap.Int64("total_events", summary.TotalEvents),
	)

	return nil
}

const summaryColumns = `id, date, hour, event_type, total_events, unique_sessions, unique_users, total_time_ms, updated_at`

func (r *repository) GetSummary(
	ctx context.Context,
	date time.Time,
	hour int,
	eventType string) (*Summary, error) {
	query := r.db.Rebind(`
		SELECT ` + summaryColumns + `
		FROM activity_summary
		WHERE date = ? AND hour = ? AND event_type = ?
	`)

	var summary Summary
	err := r.db.GetContext(ctx, &summary, query, dayOf(date), hour, eventType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSummaryNotFound
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return &summary, nil
}

func (r *repository) GetSummariesByDateRange(
	ctx context.Context,
	from, to time.Time,
	eventType string) ([]*Summary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM activity_summary
		WHERE date >= ? AND date <= ?
	`
	args := []any{dayOf(from), dayOf(to)}

	if eventType != "" {
		query += " AND event_type = ?"
		args = append(args, eventType)
	}

	query += " ORDER BY date, hour, event_type"

	var summaries []*Summary
	err := r.db.SelectContext(ctx, &summaries, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}

	return summaries, nil
}

func (r *repository) GetEventTotals(
	ctx context.Context,
	from, to time.Time,
	limit int) ([]*EventTotal, error) {
	query := r.db.Rebind(`
		SELECT
			event_type,
			SUM(total_events) AS total_events,
			SUM(total_time_ms) AS total_time_ms
		FROM activity_summary
		WHERE date >= ? AND date <= ?
		GROUP BY event_type
		ORDER BY total_events DESC, event_type
		LIMIT ?
	`)

	var totals []*EventTotal
	err := r.db.SelectContext(ctx, &totals, query, dayOf(from), dayOf(to), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get event totals: %w", err)
	}
	for _, t := range totals {
		t.AvgTimeMS = AverageMS(t.TotalTimeMS, t.TotalEvents)
	}

	return totals, nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
