package rakumachi_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"rent_search/internal/adapters/rakumachi"
	"rent_search/internal/domain"
)

const indexPage = `<!DOCTYPE html>
<html><body>
<div class="propertyBlock">
  <div class="Ad__pr">PR</div>
  <a class="propertyBlock__content" href="/syuuekibukken/detail/id999/"></a>
  <span class="price">9,999万円</span>
</div>
<div class="propertyBlock">
  <span class="propertyBlock__update">2025/5/10</span>
  <a class="propertyBlock__content" href="/syuuekibukken/detail/id123/">一棟マンション</a>
  <span class="price">5,000万円</span>
  <span class="gross">8.0%</span>
  <div class="propertyBlock__contents">
    <div><span>所在地</span><span>大阪府大阪市中央区久太郎町1-2-3</span></div>
    <div><span>交通</span><span>御堂筋線 本町駅 徒歩5分</span></div>
    <div><span>築年月</span><span>2010年3月</span></div>
    <div><span>建物構造</span><span>RC造</span></div>
    <div><span>階数</span><span>5階建</span></div>
    <div><span>面積</span><span>建物120.5㎡ 土地 200㎡</span></div>
  </div>
</div>
<div class="propertyBlock">
  <a class="propertyBlock__content" href="/syuuekibukken/detail/id456/">戸建</a>
  <span class="price">3,000万円</span>
</div>
<div class="propertyBlock">
  <a class="propertyBlock__content" href="/syuuekibukken/detail/id789/">価格未定</a>
  <span class="price">要相談</span>
</div>
</body></html>`

func TestExtract_IndexPage(t *testing.T) {
	records, recordErrs, err := rakumachi.Extract("https://example.jp/syuuekibukken/area/list?layout=table", []byte(indexPage))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (ad skipped, broken block dropped)", len(records))
	}
	if len(recordErrs) != 1 || !strings.Contains(recordErrs[0].Error(), "no price") {
		t.Fatalf("recordErrs = %v, want one missing-price error", recordErrs)
	}

	full := records[0]
	if full.ListingID != 123 {
		t.Fatalf("listing id = %d, want 123", full.ListingID)
	}
	if full.DetailURL != "https://example.jp/syuuekibukken/detail/id123/" {
		t.Fatalf("detail url = %q", full.DetailURL)
	}
	if full.Price != 5000 {
		t.Fatalf("price = %d, want 5000", full.Price)
	}
	if full.Gross == nil || *full.Gross != 8.0 {
		t.Fatalf("gross = %v, want 8.0", full.Gross)
	}
	if full.PubDate == nil || !full.PubDate.Equal(time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("pub date = %v", full.PubDate)
	}
	if full.Address == nil || *full.Address != "大阪府大阪市中央区久太郎町1-2-3" {
		t.Fatalf("address = %v", full.Address)
	}
	if full.Access == nil || !strings.Contains(*full.Access, "本町駅") {
		t.Fatalf("access = %v", full.Access)
	}
	if full.Structure == nil || *full.Structure != "RC造" {
		t.Fatalf("structure = %v", full.Structure)
	}
	if full.BuildAt == nil || !full.BuildAt.Equal(time.Date(2010, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("build at = %v", full.BuildAt)
	}
	if full.Floors == nil || *full.Floors != 5 {
		t.Fatalf("floors = %v", full.Floors)
	}
	if full.BuildingArea == nil || *full.BuildingArea != 120 {
		t.Fatalf("building area = %v", full.BuildingArea)
	}
	if full.LandArea == nil || *full.LandArea != 200 {
		t.Fatalf("land area = %v", full.LandArea)
	}

	minimal := records[1]
	if minimal.ListingID != 456 || minimal.Price != 3000 {
		t.Fatalf("minimal record = %+v", minimal)
	}
	if minimal.Gross != nil || minimal.Address != nil {
		t.Fatalf("absent fields must stay nil: %+v", minimal)
	}
}

func TestExtract_EmptyPage(t *testing.T) {
	_, _, err := rakumachi.Extract("https://example.jp/list", []byte("<html><body>メンテナンス中</body></html>"))
	var ee *domain.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *domain.ExtractionError", err)
	}
}

func TestExtract_AllBlocksBroken(t *testing.T) {
	page := `<div class="propertyBlock"><span class="price">5,000万円</span></div>`
	_, recordErrs, err := rakumachi.Extract("https://example.jp/list", []byte(page))
	var ee *domain.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *domain.ExtractionError", err)
	}
	if len(recordErrs) != 1 {
		t.Fatalf("recordErrs = %v, want the missing-id error", recordErrs)
	}
}
