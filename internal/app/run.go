package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"rent_search/internal/adapters/observability"
	"rent_search/internal/domain"
)

// RunService drives one scrape run end to end: fetch every target page,
// extract and reconcile each listing, close the listings that disappeared,
// and notify when anything went wrong. The service never retries a run;
// that is the calling scheduler's job. Page-level retries live in the
// fetcher.
type RunService struct {
	fetcher  domain.PageFetcher
	extract  ExtractFunc
	repo     domain.PropertyRepository
	notifier domain.Notifier

	pages   []string
	workers int
	errMax  int

	log zerolog.Logger
	now func() time.Time
}

// ExtractFunc parses one fetched page into observed listings plus
// per-record failures; a page yielding nothing fails as a whole.
type ExtractFunc func(pageURL string, html []byte) ([]domain.ObservedListing, []error, error)

func NewRunService(f domain.PageFetcher, e ExtractFunc, r domain.PropertyRepository, n domain.Notifier, pages []string, workers, errMax int, log zerolog.Logger) *RunService {
	if workers < 1 {
		workers = 1
	}
	if errMax < 1 {
		errMax = 10
	}
	return &RunService{
		fetcher:  f,
		extract:  e,
		repo:     r,
		notifier: n,
		pages:    pages,
		workers:  workers,
		errMax:   errMax,
		log:      log,
		now:      time.Now,
	}
}

type fetchedPage struct {
	url  string
	body []byte
	err  error
}

// Run executes one complete scrape run. Page and record errors are
// accumulated in the result and never abort the run; the returned error is
// non-nil only for faults that make the whole run impossible (no targets,
// store unreachable at start).
func (s *RunService) Run(ctx context.Context) (domain.RunResult, error) {
	start := s.now()
	res := domain.RunResult{
		RunID:     start.Format("20060102-150405"),
		StartedAt: start,
	}
	logger := observability.RunLogger(s.log, res.RunID)

	if len(s.pages) == 0 || s.pages[0] == "" {
		return res, errors.New("no target pages configured")
	}

	// Snapshot active listings before the page loop; the closed set is the
	// difference against everything observed this run.
	active, err := s.repo.ActiveListingIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("load active listings: %w", err)
	}
	logger.Info().Int("pages", len(s.pages)).Int("active", len(active)).Msg("run starting")

	seen := make(map[int64]struct{})

	if s.workers > 1 {
		for _, pg := range s.prefetch(ctx) {
			// Same cooperative cancellation point as the sequential loop.
			if ctx.Err() != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("run cancelled: %v", ctx.Err()))
				break
			}
			s.processPage(ctx, pg, seen, &res, logger)
		}
	} else {
		for _, u := range s.pages {
			// Cooperative cancellation point between pages.
			if ctx.Err() != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("run cancelled: %v", ctx.Err()))
				break
			}
			body, err := s.fetcher.FetchPage(ctx, u)
			s.processPage(ctx, fetchedPage{url: u, body: body, err: err}, seen, &res, logger)
		}
	}

	s.closeAbsent(ctx, active, seen, &res, logger)

	res.FinishedAt = s.now()
	observability.RunDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())

	if res.Failed() {
		s.notifyFailure(ctx, res, logger)
	}

	logger.Info().
		Int("pages_fetched", res.PagesFetched).
		Int("pages_failed", res.PagesFailed).
		Int("new", res.New).
		Int("price_changed", res.PriceChanged).
		Int("unchanged", res.Unchanged).
		Int("closed", res.Closed).
		Int("records_failed", res.RecordsFailed).
		Int("errors", len(res.Errors)).
		Msg("run done")
	return res, nil
}

// prefetch fetches all pages concurrently, bounded by workers. Results keep
// page order so reconciliation stays deterministic; per-listing writes stay
// serialized because processing is single-threaded.
func (s *RunService) prefetch(ctx context.Context) []fetchedPage {
	out := make([]fetchedPage, len(s.pages))
	sem := semaphore.NewWeighted(int64(s.workers))
	var wg sync.WaitGroup

	for i, u := range s.pages {
		if err := sem.Acquire(ctx, 1); err != nil {
			out[i] = fetchedPage{url: u, err: err}
			continue
		}
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			defer sem.Release(1)
			body, err := s.fetcher.FetchPage(ctx, u)
			out[i] = fetchedPage{url: u, body: body, err: err}
		}(i, u)
	}
	wg.Wait()
	return out
}

func (s *RunService) processPage(ctx context.Context, pg fetchedPage, seen map[int64]struct{}, res *domain.RunResult, logger zerolog.Logger) {
	if pg.err != nil {
		res.PagesFailed++
		res.Errors = append(res.Errors, pg.err.Error())
		observability.PagesScraped.WithLabelValues("fetch_failed").Inc()
		logger.Warn().Str("url", pg.url).Err(pg.err).Msg("page fetch failed")
		return
	}

	records, recordErrs, err := s.extract(pg.url, pg.body)
	if err != nil {
		res.PagesFailed++
		res.Errors = append(res.Errors, err.Error())
		observability.PagesScraped.WithLabelValues("extract_failed").Inc()
		logger.Warn().Str("url", pg.url).Err(err).Msg("page extraction failed")
		return
	}
	res.PagesFetched++
	observability.PagesScraped.WithLabelValues("ok").Inc()

	for _, rerr := range recordErrs {
		res.RecordsFailed++
		res.Errors = append(res.Errors, rerr.Error())
		observability.ListingsReconciled.WithLabelValues("failed").Inc()
		logger.Warn().Str("url", pg.url).Err(rerr).Msg("record extraction failed")
	}

	now := s.now()
	for _, rec := range records {
		s.processRecord(ctx, rec, now, seen, res, logger)
	}
}

func (s *RunService) processRecord(ctx context.Context, rec domain.ObservedListing, now time.Time, seen map[int64]struct{}, res *domain.RunResult, logger zerolog.Logger) {
	var prior *domain.PropertyState
	st, err := s.repo.PropertyState(ctx, rec.ListingID)
	switch {
	case err == nil:
		prior = &st
	case errors.Is(err, domain.ErrNotFound):
		// first observation of this listing
	default:
		res.RecordsFailed++
		res.Errors = append(res.Errors, fmt.Sprintf("read listing %d: %v", rec.ListingID, err))
		observability.ListingsReconciled.WithLabelValues("failed").Inc()
		return
	}

	out := Reconcile(rec, prior, now)
	if err := s.repo.SaveObserved(ctx, out.Listing, out.Observation); err != nil {
		if errors.Is(err, domain.ErrOutOfOrderObservation) {
			// A defect, not a data condition: log loudly, skip the record,
			// never reorder history.
			logger.Error().Int64("listing_id", rec.ListingID).Err(err).Msg("out-of-order observation rejected")
		}
		res.RecordsFailed++
		res.Errors = append(res.Errors, fmt.Sprintf("save listing %d: %v", rec.ListingID, err))
		observability.ListingsReconciled.WithLabelValues("failed").Inc()
		return
	}

	seen[rec.ListingID] = struct{}{}
	observability.ListingsReconciled.WithLabelValues(out.Action.String()).Inc()
	switch out.Action {
	case domain.ActionNew:
		res.New++
	case domain.ActionPriceChanged:
		res.PriceChanged++
	case domain.ActionUnchanged:
		res.Unchanged++
	}
}

// closeAbsent marks every previously active listing that no page of this run
// produced. When any page failed, its listings were invisible through no
// fault of their own, so closing is skipped for the whole run rather than
// closing half the market by accident.
func (s *RunService) closeAbsent(ctx context.Context, active []int64, seen map[int64]struct{}, res *domain.RunResult, logger zerolog.Logger) {
	if res.PagesFailed > 0 {
		res.CloseSkipped = true
		logger.Warn().Int("pages_failed", res.PagesFailed).Msg("skipping closed-listing pass")
		return
	}

	var absent []int64
	for _, id := range active {
		if _, ok := seen[id]; !ok {
			absent = append(absent, id)
		}
	}
	if len(absent) == 0 {
		return
	}

	n, err := s.repo.MarkClosed(ctx, absent, s.now())
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("mark closed: %v", err))
		return
	}
	res.Closed = int(n)
	for range absent {
		observability.ListingsReconciled.WithLabelValues("closed").Inc()
	}
	logger.Info().Int64("closed", n).Msg("absent listings closed")
}

func (s *RunService) notifyFailure(ctx context.Context, res domain.RunResult, logger zerolog.Logger) {
	if s.notifier == nil {
		return
	}
	subject := fmt.Sprintf("Property scrape %s completed with %d error(s)", res.StartedAt.Format("2006-01-02"), len(res.Errors))

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: pages %d ok / %d failed, new %d, price changed %d, unchanged %d, closed %d, records failed %d.\n",
		res.RunID, res.PagesFetched, res.PagesFailed, res.New, res.PriceChanged, res.Unchanged, res.Closed, res.RecordsFailed)
	if res.CloseSkipped {
		b.WriteString("Closed-listing pass was skipped because of page failures.\n")
	}
	b.WriteString("\nFirst errors:\n")
	for i, e := range res.Errors {
		if i >= s.errMax {
			fmt.Fprintf(&b, "... and %d more\n", len(res.Errors)-i)
			break
		}
		fmt.Fprintf(&b, "- %s\n", e)
	}

	if err := s.notifier.Notify(ctx, subject, b.String()); err != nil {
		// Best effort only; a broken mailer must not fail the run.
		logger.Error().Err(err).Msg("failure notification not delivered")
	}
}
