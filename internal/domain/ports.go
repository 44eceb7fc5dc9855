package domain

import (
	"context"
	"time"
)

type PropertyRepository interface {
	// Write paths
	SaveObserved(ctx context.Context, l Listing, obs *PriceObservation) error
	MarkClosed(ctx context.Context, listingIDs []int64, closedAt time.Time) (int64, error)

	// Read paths
	PropertyState(ctx context.Context, listingID int64) (PropertyState, error)
	ActiveListingIDs(ctx context.Context) ([]int64, error)
	PriceTrends(ctx context.Context, since time.Time) ([]PriceTrend, error)
	ListProperties(ctx context.Context) ([]PropertyView, error)
}

type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Notifier delivers a run-failure summary out of band. Failures to notify
// must never propagate into the run.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
