package domain

import "time"

// Action classifies one observed listing against stored state.
type Action int

const (
	ActionNew Action = iota
	ActionPriceChanged
	ActionUnchanged
)

func (a Action) String() string {
	switch a {
	case ActionNew:
		return "new"
	case ActionPriceChanged:
		return "price_changed"
	case ActionUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// RunResult aggregates one scrape run. It is transient: consumed by the
// notifier and logging, never persisted.
type RunResult struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	PagesFetched  int
	PagesFailed   int
	New           int
	PriceChanged  int
	Unchanged     int
	Closed        int
	RecordsFailed int
	CloseSkipped  bool
	Errors        []string
}

// Failed reports whether the run accumulated any isolated errors.
// A failed run still completes; only start-up faults abort it.
func (r RunResult) Failed() bool { return len(r.Errors) > 0 }

// PriceTrend is one day bucket of the read-side aggregate.
type PriceTrend struct {
	Date     time.Time
	AvgPrice float64
	MinPrice int64
	MaxPrice int64
	Count    int
}

// PropertyView is a listing joined with its latest observation, served by
// the read API.
type PropertyView struct {
	Listing
	Price          *int64
	Gross          *float64
	PriceUpdatedAt *time.Time
}
