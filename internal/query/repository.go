package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ActivityRepository interface {
	RecentActivity(ctx context.Context, eventType string, limit int) ([]*ActivityEntry, error)
	ProfileNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	Orders(ctx context.Context) ([]*Order, error)
	Ping(ctx context.Context) error
}

type repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewActivityRepository(db *sqlx.DB, logger *zap.Logger) ActivityRepository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

// RecentActivity returns the newest events first, optionally of one type.
func (r *repository) RecentActivity(ctx context.Context, eventType string, limit int) ([]*ActivityEntry, error) {
	query := `
		SELECT id, user_id, session_id, event_type, event_data, page_url, created_at
		FROM user_activity
	`
	var args []any
	if eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var entries []*ActivityEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to get recent activity",
			zap.Error(err),
			zap.String("event_type", eventType),
		)
		return nil, fmt.Errorf("failed to get recent activity: %w", err)
	}

	return entries, nil
}

type profileRow struct {
	ID       uuid.UUID `db:"id"`
	FullName string    `db:"full_name"`
}

// ProfileNames looks all ids up in one query.
func (r *repository) ProfileNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query, args, err := sqlx.In(`SELECT id, full_name FROM profiles WHERE id IN (?)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile query: %w", err)
	}

	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to get profiles", zap.Error(err), zap.Int("ids", len(ids)))
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}

	for _, row := range rows {
		names[row.ID] = row.FullName
	}
	return names, nil
}

func (r *repository) Orders(ctx context.Context) ([]*Order, error) {
	query := `
		SELECT id, user_id, status, subtotal, total, order_items, created_at
		FROM orders
		ORDER BY created_at DESC
	`

	var orders []*Order
	if err := r.db.SelectContext(ctx, &orders, query); err != nil {
		r.logger.Error("Failed to get orders", zap.Error(err))
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}

	return orders, nil
}

func (r *repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
