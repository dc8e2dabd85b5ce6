package query

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/analytics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const activitySummaryKey = "activity-summary"

type AnalyticsRepository interface {
	GetSummariesByDateRange(ctx context.Context, from, to time.Time, eventType string) ([]*analytics.Summary, error)
	GetEventTotals(ctx context.Context, from, to time.Time, limit int) ([]*analytics.EventTotal, error)
}

// SummaryCache is satisfied by cache.Service.
type SummaryCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type Service struct {
	activityRepo  ActivityRepository
	analyticsRepo AnalyticsRepository
	cache         SummaryCache
	feedLimit     int
	logger        *zap.Logger
	now           func() time.Time
}

// NewService builds the admin read side. cache may be nil.
func NewService(
	activityRepo ActivityRepository,
	analyticsRepo AnalyticsRepository,
	cache SummaryCache,
	feedLimit int,
	logger *zap.Logger) *Service {
	if feedLimit <= 0 {
		feedLimit = 100
	}
	return &Service{
		activityRepo:  activityRepo,
		analyticsRepo: analyticsRepo,
		cache:         cache,
		feedLimit:     feedLimit,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Service) FeedLimit() int {
	return s.feedLimit
}

// RecentActivity returns the feed with profile names filled in.
func (s *Service) RecentActivity(ctx context.Context, eventType string, limit int) ([]*ActivityEntry, error) {
	if limit <= 0 || limit > s.feedLimit {
		limit = s.feedLimit
	}

	entries, err := s.activityRepo.RecentActivity(ctx, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, e := range entries {
		if e.UserID != nil && !seen[*e.UserID] {
			seen[*e.UserID] = true
			ids = append(ids, *e.UserID)
		}
	}

	names, err := s.activityRepo.ProfileNames(ctx, ids)
	if err != nil {
		// the feed is still useful without names
		s.logger.Warn("Failed to enrich activity with profile names", zap.Error(err))
		return entries, nil
	}
	for _, e := range entries {
		if e.UserID != nil {
			e.FullName = names[*e.UserID]
		}
	}

	return entries, nil
}

// ActivitySummary summarizes the unfiltered feed, served from cache when fresh.
func (s *Service) ActivitySummary(ctx context.Context) (ActivitySummary, error) {
	var summary ActivitySummary
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, activitySummaryKey, &summary); err == nil && hit {
			return summary, nil
		}
	}

	entries, err := s.activityRepo.RecentActivity(ctx, "", s.feedLimit)
	if err != nil {
		return ActivitySummary{}, fmt.Errorf("failed to get activity: %w", err)
	}
	summary = SummarizeActivity(entries, s.now())

	if s.cache != nil {
		if err := s.cache.Set(ctx, activitySummaryKey, summary); err != nil {
			s.logger.Warn("Failed to cache activity summary", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *Service) OrdersSummary(ctx context.Context) (OrdersSummary, error) {
	orders, err := s.activityRepo.Orders(ctx)
	if err != nil {
		return OrdersSummary{}, fmt.Errorf("failed to get orders: %w", err)
	}
	return SummarizeOrders(orders), nil
}

func (s *Service) GetEventStats(
	ctx context.Context,
	from, to time.Time,
	eventType string,
	granularity string,
) ([]*EventStat, error) {
	summaries, err := s.analyticsRepo.GetSummariesByDateRange(ctx, from, to, eventType)
	if err != nil {
		s.logger.Error("Failed to get summaries",
			zap.Error(err),
			zap.Time("from", from),
			zap.Time("to", to))
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}

	stats := s.groupByGranularity(summaries, granularity)

	s.logger.Debug("Event stats retrieved",
		zap.Int("count", len(stats)),
		zap.String("granularity", granularity),
	)

	return stats, nil
}

// EventTotals ranks event types by volume over the days of [from, to].
func (s *Service) EventTotals(ctx context.Context, from, to time.Time, limit int) ([]*analytics.EventTotal, error) {
	totals, err := s.analyticsRepo.GetEventTotals(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get event totals: %w", err)
	}
	return totals, nil
}

// Dashboard loads the feed, its summary, orders and the last day of stats
// concurrently.
func (s *Service) Dashboard(ctx context.Context, eventType string) (*Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		entries, err := s.RecentActivity(ctx, eventType, s.feedLimit)
		d.Activity = entries
		return err
	})
	g.Go(func() error {
		summary, err := s.ActivitySummary(ctx)
		d.Summary = summary
		return err
	})
	g.Go(func() error {
		orders, err := s.OrdersSummary(ctx)
		d.Orders = orders
		return err
	})
	g.Go(func() error {
		to := s.now()
		stats, err := s.GetEventStats(ctx, to.Add(-24*time.Hour), to, "", "hour")
		d.Stats = stats
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) groupByGranularity(summaries []*analytics.Summary, granularity string) []*EventStat {
	grouped := make(map[string]*EventStat)

	for _, summary := range summaries {
		var key string
		var timestamp time.Time

		switch granularity {
		case "day":
			timestamp = summary.Date.UTC()
			key = fmt.Sprintf("%s-%s", timestamp.Format("2006-01-02"), summary.EventType)
		default:
			timestamp = time.Date(
				summary.Date.Year(),
				summary.Date.Month(),
				summary.Date.Day(),
				summary.Hour,
				0, 0, 0,
				time.UTC,
			)
			key = fmt.Sprintf("%s-%s", timestamp.Format("2006-01-02-15"), summary.EventType)
		}

		if stat, exists := grouped[key]; exists {
			stat.TotalEvents += summary.TotalEvents
			stat.TotalTimeMS += summary.TotalTimeMS
			// hourly unique counts can't be summed; the peak hour is a lower bound
			stat.UniqueSessions = max(stat.UniqueSessions, summary.UniqueSessions)
			stat.UniqueUsers = max(stat.UniqueUsers, summary.UniqueUsers)
		} else {
			grouped[key] = &EventStat{
				Timestamp:      timestamp,
				EventType:      summary.EventType,
				TotalEvents:    summary.TotalEvents,
				UniqueSessions: summary.UniqueSessions,
				UniqueUsers:    summary.UniqueUsers,
				TotalTimeMS:    summary.TotalTimeMS,
			}
		}
	}

	stats := make([]*EventStat, 0, len(grouped))
	for _, stat := range grouped {
		stat.AvgTimeMS = analytics.AverageMS(stat.TotalTimeMS, stat.TotalEvents)
		stats = append(stats, stat)
	}
	slices.SortFunc(stats, func(a, b *EventStat) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.EventType, b.EventType)
	})

	return stats
}

func (s *Service) HealthCheck(ctx context.Context) (bool, map[string]string) {
	status := make(map[string]string)
	healthy := true

	if err := s.activityRepo.Ping(ctx); err != nil {
		status["database"] = "error: " + err.Error()
		healthy = false
	} else {
		status["database"] = "ok"
	}

	if s.cache == nil {
		status["cache"] = "disabled"
	} else {
		status["cache"] = "ok"
	}

	return healthy, status
}

// ParseGranularity accepts hour and day, defaulting to hour.
func ParseGranularity(s string) (string, error) {
	switch g := strings.ToLower(strings.TrimSpace(s)); g {
	case "", "hour":
		return "hour", nil
	case "day":
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
}
