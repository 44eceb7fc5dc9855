//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"rent_search/internal/domain"
	mysqlrepo "rent_search/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=rent_search",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/rent_search?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC", hostPort)

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func listing(id int64, scrapedAt time.Time) domain.Listing {
	return domain.Listing{
		ListingID: id,
		Address:   pstr("大阪府大阪市中央区久太郎町1-2-3"),
		Access:    pstr("御堂筋線 本町駅 徒歩5分"),
		Structure: pstr("RC造"),
		DetailURL: fmt.Sprintf("https://example.jp/detail/id%d/", id),
		ScrapedAt: scrapedAt,
	}
}

// ---------- the test ----------
func TestRepo_MySQL_ObserveAndClose(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	day1 := time.Date(2025, 8, 1, 3, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)

	// New listing with its first observation.
	if err := repo.SaveObserved(ctx, listing(123, day1),
		&domain.PriceObservation{Price: 4800, Gross: pfloat(8.0), ScrapedAt: day1}); err != nil {
		t.Fatalf("SaveObserved new: %v", err)
	}

	st, err := repo.PropertyState(ctx, 123)
	if err != nil {
		t.Fatalf("PropertyState: %v", err)
	}
	if st.Listing.ListingID != 123 || st.Listing.Address == nil {
		t.Fatalf("listing row: %+v", st.Listing)
	}
	if st.Latest == nil || st.Latest.Price != 4800 || st.Latest.Gross == nil || *st.Latest.Gross != 8.0 {
		t.Fatalf("latest observation: %+v", st.Latest)
	}

	// Price change appends; latest moves.
	if err := repo.SaveObserved(ctx, listing(123, day2),
		&domain.PriceObservation{Price: 5000, Gross: pfloat(8.0), ScrapedAt: day2}); err != nil {
		t.Fatalf("SaveObserved change: %v", err)
	}
	st, err = repo.PropertyState(ctx, 123)
	if err != nil {
		t.Fatalf("PropertyState after change: %v", err)
	}
	if st.Latest == nil || st.Latest.Price != 5000 {
		t.Fatalf("latest after change: %+v", st.Latest)
	}
	// First-seen date must survive the second upsert.
	if got := st.Listing.ScrapedAt.Format("2006-01-02"); got != "2025-08-01" {
		t.Fatalf("first seen = %s, want 2025-08-01", got)
	}

	// Out-of-order append is rejected and writes nothing.
	err = repo.SaveObserved(ctx, listing(123, day1),
		&domain.PriceObservation{Price: 4900, ScrapedAt: day1})
	if !errors.Is(err, domain.ErrOutOfOrderObservation) {
		t.Fatalf("out-of-order err = %v, want ErrOutOfOrderObservation", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM price_history`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("price_history rows = %d (err %v), want 2", n, err)
	}

	// Second listing, then close the first.
	if err := repo.SaveObserved(ctx, listing(456, day2),
		&domain.PriceObservation{Price: 3000, Gross: pfloat(6.5), ScrapedAt: day2}); err != nil {
		t.Fatalf("SaveObserved second: %v", err)
	}

	ids, err := repo.ActiveListingIDs(ctx)
	if err != nil {
		t.Fatalf("ActiveListingIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 123 || ids[1] != 456 {
		t.Fatalf("active = %v, want [123 456]", ids)
	}

	closed, err := repo.MarkClosed(ctx, []int64{123}, day3)
	if err != nil || closed != 1 {
		t.Fatalf("MarkClosed = %d, %v", closed, err)
	}
	// Closing an already closed row is a no-op.
	closed, err = repo.MarkClosed(ctx, []int64{123}, day3.AddDate(0, 0, 5))
	if err != nil || closed != 0 {
		t.Fatalf("second MarkClosed = %d, %v, want 0", closed, err)
	}

	ids, err = repo.ActiveListingIDs(ctx)
	if err != nil {
		t.Fatalf("ActiveListingIDs after close: %v", err)
	}
	if len(ids) != 1 || ids[0] != 456 {
		t.Fatalf("active after close = %v, want [456]", ids)
	}

	st, err = repo.PropertyState(ctx, 123)
	if err != nil {
		t.Fatalf("PropertyState closed: %v", err)
	}
	if st.Listing.ClosedAt == nil {
		t.Fatal("closed_at not set")
	}

	// Re-listing: the upsert clears closed_at, history continues.
	if err := repo.SaveObserved(ctx, listing(123, day3),
		&domain.PriceObservation{Price: 5200, ScrapedAt: day3}); err != nil {
		t.Fatalf("SaveObserved re-listing: %v", err)
	}
	st, err = repo.PropertyState(ctx, 123)
	if err != nil {
		t.Fatalf("PropertyState re-listed: %v", err)
	}
	if st.Listing.ClosedAt != nil {
		t.Fatalf("closed_at must clear on re-listing, got %v", st.Listing.ClosedAt)
	}
	if st.Latest == nil || st.Latest.Price != 5200 {
		t.Fatalf("history must continue: %+v", st.Latest)
	}

	// Unknown listing.
	if _, err := repo.PropertyState(ctx, 999999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing listing err = %v, want ErrNotFound", err)
	}

	// Day buckets: day1 has one observation, day2 two, day3 one.
	trends, err := repo.PriceTrends(ctx, day1.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("PriceTrends: %v", err)
	}
	if len(trends) != 3 {
		t.Fatalf("trend buckets = %d, want 3: %+v", len(trends), trends)
	}
	d2 := trends[1]
	if d2.Count != 2 || d2.MinPrice != 3000 || d2.MaxPrice != 5000 {
		t.Fatalf("day2 bucket = %+v", d2)
	}
	if d2.AvgPrice < 3999 || d2.AvgPrice > 4001 {
		t.Fatalf("day2 avg = %v, want 4000", d2.AvgPrice)
	}

	views, err := repo.ListProperties(ctx)
	if err != nil {
		t.Fatalf("ListProperties: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	if views[0].ListingID != 123 || views[0].Price == nil || *views[0].Price != 5200 {
		t.Fatalf("view 123 = %+v", views[0])
	}
	if views[1].ListingID != 456 || views[1].Gross == nil || *views[1].Gross != 6.5 {
		t.Fatalf("view 456 = %+v", views[1])
	}
}
