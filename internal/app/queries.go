package app

import (
	"context"
	"fmt"
	"time"

	"rent_search/internal/domain"
)

// QueryService is the read side behind the aggregate API. The pipeline's
// only obligation to it is accurate observation timestamps and canonical
// units; everything here is derived.
type QueryService struct {
	repo     domain.PropertyRepository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewQueryService(r domain.PropertyRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, now: time.Now}
}

// PriceTrends returns day-bucketed avg/min/max/count over the trailing
// window. days is clamped to the supported windows, defaulting to 30.
func (s *QueryService) PriceTrends(ctx context.Context, days int) ([]domain.PriceTrend, error) {
	days = clampDays(days)

	key := fmt.Sprintf("trends:%d:%s", days, s.now().Format("2006-01-02"))
	var out []domain.PriceTrend
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	since := s.now().AddDate(0, 0, -days)
	trends, err := s.repo.PriceTrends(ctx, since)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, trends, int(s.cacheTTL.Seconds()))
	return trends, nil
}

// ListProperties returns every tracked listing joined with its latest
// observation.
func (s *QueryService) ListProperties(ctx context.Context) ([]domain.PropertyView, error) {
	const key = "properties:all"
	var out []domain.PropertyView
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	views, err := s.repo.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, views, int(s.cacheTTL.Seconds()))
	return views, nil
}

func clampDays(days int) int {
	switch days {
	case 7, 30, 180, 365:
		return days
	}
	return 30
}
