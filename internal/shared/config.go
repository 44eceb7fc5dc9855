package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	// Scrape targets: BaseURL with &page=N appended for pages 2..Pages.
	ScrapeBaseURL string
	ScrapePages   int

	FetchMaxRetries int
	FetchBackoff    time.Duration
	FetchRPS        int
	FetchWorkers    int

	SMTPAddr     string
	NotifyFrom   string
	NotifyPass   string
	NotifyTo     string
	NotifyErrMax int
}

func Load() Config {
	// .env is optional; system env always wins.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", "rentuser:rentpassword@tcp(localhost:3306)/rent_search?parseTime=true&charset=utf8mb4&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		ScrapeBaseURL: env("SCRAPE_BASE_URL", ""),
		ScrapePages:   atoi("SCRAPE_PAGES", 1),

		FetchMaxRetries: atoi("FETCH_MAX_RETRIES", 5),
		FetchBackoff:    time.Duration(atof("FETCH_BACKOFF_SECONDS", 10) * float64(time.Second)),
		FetchRPS:        atoi("FETCH_RPS", 1),
		FetchWorkers:    atoi("FETCH_WORKERS", 1),

		SMTPAddr:     env("NOTIFY_SMTP_ADDR", "smtp.gmail.com:587"),
		NotifyFrom:   env("NOTIFY_FROM", ""),
		NotifyPass:   env("NOTIFY_PASSWORD", ""),
		NotifyTo:     env("NOTIFY_TO", ""),
		NotifyErrMax: atoi("NOTIFY_MAX_ERRORS", 10),
	}
	if c.ScrapeBaseURL == "" {
		log.Warn().Msg("SCRAPE_BASE_URL is empty")
	}
	return c
}

// PageURLs expands the configured base URL into one URL per target page.
// Page 1 is the base URL itself; the source paginates with a page query param.
func (c Config) PageURLs() []string {
	urls := make([]string, 0, c.ScrapePages)
	urls = append(urls, c.ScrapeBaseURL)
	for p := 2; p <= c.ScrapePages; p++ {
		urls = append(urls, fmt.Sprintf("%s&page=%d", c.ScrapeBaseURL, p))
	}
	return urls
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
