package rakumachi

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rent_search/internal/domain"
)

// Extract parses one listing index page into observed listings. Ad blocks
// are skipped. A record missing its listing id or price is dropped and
// reported in recordErrs; the rest of the page is unaffected. A page with
// no parseable records at all fails with *domain.ExtractionError.
func Extract(pageURL string, html []byte) (records []domain.ObservedListing, recordErrs []error, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, nil, &domain.ExtractionError{URL: pageURL, Reason: err.Error()}
	}

	base, _ := url.Parse(pageURL)

	doc.Find("div.propertyBlock").Each(func(i int, s *goquery.Selection) {
		if s.Find(".Ad__pr").Length() > 0 {
			return // sponsored block, not a listing
		}
		rec, rerr := extractBlock(base, s)
		if rerr != nil {
			recordErrs = append(recordErrs, fmt.Errorf("block %d: %w", i, rerr))
			return
		}
		records = append(records, rec)
	})

	if len(records) == 0 {
		reason := "no property blocks found"
		if len(recordErrs) > 0 {
			reason = fmt.Sprintf("all %d blocks failed to parse", len(recordErrs))
		}
		return nil, recordErrs, &domain.ExtractionError{URL: pageURL, Reason: reason}
	}
	return records, recordErrs, nil
}

func extractBlock(base *url.URL, s *goquery.Selection) (domain.ObservedListing, error) {
	var rec domain.ObservedListing

	href, _ := s.Find("a.propertyBlock__content").Attr("href")
	rec.DetailURL = resolveURL(base, href)
	rec.ListingID = parseListingID(rec.DetailURL)
	if rec.ListingID == 0 {
		return rec, fmt.Errorf("no listing id in detail url %q", href)
	}

	rec.Price = parsePrice(s.Find(".price").Text())
	if rec.Price < 0 {
		return rec, fmt.Errorf("listing %d: no price", rec.ListingID)
	}
	rec.Gross = parseGross(s.Find(".gross").Text())
	rec.PubDate = parseDate(s.Find(".propertyBlock__update").Text())

	// The detail table is label/value span pairs.
	s.Find(".propertyBlock__contents span").Each(func(_ int, label *goquery.Selection) {
		value := strings.TrimSpace(label.Next().Text())
		if value == "" {
			return
		}
		switch {
		case strings.Contains(label.Text(), "所在地"):
			rec.Address = trimmedOrNil(value)
		case strings.Contains(label.Text(), "交通"):
			rec.Access = trimmedOrNil(value)
		case strings.Contains(label.Text(), "建物構造"):
			rec.Structure = trimmedOrNil(value)
		case strings.Contains(label.Text(), "築年月"):
			rec.BuildAt = parseDate(value)
		case strings.Contains(label.Text(), "階数"):
			rec.Floors = parseFloors(value)
		case strings.Contains(label.Text(), "面積"):
			rec.BuildingArea, rec.LandArea = parseAreas(value)
		}
	})

	return rec, nil
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
