package rakumachi

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rent_search/internal/adapters/observability"
	"rent_search/internal/domain"
)

// blockedMarker appears in HTTP 200 responses when the site blocks a
// client. Such a page is a transient failure, not content.
const blockedMarker = "アクセスができません"

// userAgents rotates across retry attempts; the site is less likely to keep
// blocking a client that looks like a different browser.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// RetryPolicy bounds the fetch retry loop. Backoff is the base delay before
// the first retry; subsequent delays double, with up to +50% jitter.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

type Client struct {
	hc     *http.Client
	rl     *rate.Limiter
	policy RetryPolicy

	// sleep is swappable so retry timing is deterministic in tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewClient(policy RetryPolicy, rps int) *Client {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		hc:     &http.Client{Timeout: 30 * time.Second},
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
		policy: policy,
		sleep:  sleepCtx,
	}
}

// FetchPage retrieves one listing page. Transient faults (network errors,
// 5xx, 429, blocked-marker pages) consume retry budget; other 4xx and bad
// URLs fail immediately. After the budget is spent the last cause is
// wrapped in a *domain.FetchError.
func (c *Client) FetchPage(ctx context.Context, url string) ([]byte, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	var serverWait time.Duration
	attempts := 0
	for try := 0; try <= c.policy.MaxRetries; try++ {
		if try > 0 {
			observability.FetchRetries.Inc()
			delay := retryDelay(c.policy.Backoff, try-1)
			// Prefer the server's Retry-After when it is longer.
			if serverWait > delay {
				delay = serverWait
			}
			if !c.sleep(ctx, delay) {
				return nil, ctx.Err()
			}
		}
		attempts++

		body, status, wait, err := c.get(ctx, url, userAgents[try%len(userAgents)])
		serverWait = wait
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case status == http.StatusOK:
			if strings.Contains(string(body), blockedMarker) {
				lastErr = fmt.Errorf("access blocked by source (status %d)", status)
				continue
			}
			return body, nil

		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = fmt.Errorf("remote %d", status)
			continue

		default:
			// Terminal: 4xx other than 429, redirects the client refused, etc.
			return nil, &domain.FetchError{URL: url, Attempts: attempts, Cause: fmt.Errorf("status %d", status)}
		}
	}

	return nil, &domain.FetchError{URL: url, Attempts: attempts, Cause: lastErr}
}

// get performs a single attempt. A non-nil error means the request never
// yielded a response (network fault, bad URL). wait carries the server's
// Retry-After for retriable statuses.
func (c *Client) get(ctx context.Context, url, ua string) (body []byte, status int, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveFetch(0, err, time.Since(start))
		return nil, 0, 0, err
	}
	defer resp.Body.Close()
	observability.ObserveFetch(resp.StatusCode, nil, time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, retryAfter(resp), nil
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, 0, err
	}
	return body, resp.StatusCode, 0, nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// retryDelay doubles the base each retry with up to +50% jitter.
func retryDelay(base time.Duration, i int) time.Duration {
	d := base * time.Duration(1<<i)
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return d
	}
	f := float64(b[0]) / 255.0
	return d + time.Duration(0.5*f*float64(d))
}
