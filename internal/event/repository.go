package event

import (
	"context"
	"fmt"

	"github.com/Wuchinator/storefront-activity/pkg/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, event *ActivityEvent) error
	CreateBatch(ctx context.Context, events []*ActivityEvent) (int, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*ActivityEvent, error)
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

const insertActivity = `
	INSERT INTO user_activity (user_id, session_id, event_type, event_data, page_url)
	VALUES (?, ?, ?, ?, ?)
`

func (r *repository) Create(ctx context.Context, event *ActivityEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	query := r.db.Rebind(insertActivity + ` RETURNING id, created_at`)

	err := r.db.QueryRowxContext(
		ctx,
		query,
		event.UserID,
		event.SessionID,
		event.EventType,
		event.EventData,
		event.PageURL,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		if postgres.IsIntegrityViolation(err) {
			r.logger.Warn("Activity event rejected by store",
				zap.String("session_id", event.SessionID.String()),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %v", ErrEventRejected, err)
		}
		r.logger.Error("Failed to create activity event", zap.Error(err))
		return fmt.Errorf("failed to create activity event: %w", err)
	}

	r.logger.Debug("Activity event created",
		zap.Int64("id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("session_id", event.SessionID.String()),
	)

	return nil
}

func (r *repository) CreateBatch(ctx context.Context, events []*ActivityEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertActivity))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	successCount := 0
	for _, event := range events {
		if err := event.Validate(); err != nil {
			r.logger.Warn("Invalid event in batch",
				zap.String("session_id", event.SessionID.String()),
				zap.Error(err),
			)
			continue
		}

		_, err := stmt.ExecContext(
			ctx,
			event.UserID,
			event.SessionID,
			event.EventType,
			event.EventData,
			event.PageURL,
		)
		if err != nil {
			// a failed statement aborts a postgres transaction, so stop here
			r.logger.Error("Failed to insert event in batch",
				zap.String("session_id", event.SessionID.String()),
				zap.Error(err),
			)
			return 0, fmt.Errorf("failed to insert batch: %w", err)
		}
		successCount++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("Batch insert completed",
		zap.Int("total", len(events)),
		zap.Int("success", successCount),
	)

	return successCount, nil
}

func (r *repository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*ActivityEvent, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, session_id, event_type, event_data, page_url, created_at
		FROM user_activity
		WHERE session_id = ?
		ORDER BY id ASC
		LIMIT ?
	`)

	var events []*ActivityEvent
	if err := r.db.SelectContext(ctx, &events, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("failed to get session events: %w", err)
	}

	return events, nil
}
