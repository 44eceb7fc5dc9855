package rakumachi

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The site renders everything as localized text: prices in 万円 (man-yen),
// yields as percentages, areas in ㎡ with a 建物/土地 prefix, floor counts as
// N階建, and dates as either YYYY/M/D or YYYY年M月. These parsers turn those
// forms into canonical values; each returns nil on anything unparseable.

var (
	listingIDRe = regexp.MustCompile(`id(\d+)`)
	priceRe     = regexp.MustCompile(`([0-9,]+)万円`)
	grossRe     = regexp.MustCompile(`([0-9.]+)%`)
	floorsRe    = regexp.MustCompile(`(\d+)階建`)
	buildingRe  = regexp.MustCompile(`建物([0-9.]+)㎡`)
	landRe      = regexp.MustCompile(`土地\s*([0-9.]+)㎡`)
	slashDateRe = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})`)
	kanjiDateRe = regexp.MustCompile(`^(\d{4})年(\d{1,2})月`)
)

// parseListingID pulls the numeric id out of a detail URL
// (".../detail/id123456/"). Zero means not found.
func parseListingID(detailURL string) int64 {
	m := listingIDRe.FindStringSubmatch(detailURL)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parsePrice converts "5,000万円" to 5000. Negative means not found.
func parsePrice(s string) int64 {
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// parseGross converts "8.5%" to 8.50 (two-decimal percentage).
func parseGross(s string) *float64 {
	m := grossRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	f = float64(int64(f*100+0.5)) / 100
	return &f
}

func parseFloors(s string) *int {
	m := floorsRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// parseAreas splits "建物120.5㎡ 土地 200㎡" into (building, land) square
// meters, truncated to whole units the way the schema stores them.
func parseAreas(s string) (building, land *int) {
	if m := buildingRe.FindStringSubmatch(s); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			n := int(f)
			building = &n
		}
	}
	if m := landRe.FindStringSubmatch(s); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			n := int(f)
			land = &n
		}
	}
	return building, land
}

// parseDate accepts "2025/5/10" and "2010年3月" (day defaults to 1).
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	if m := kanjiDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if mo >= 1 && mo <= 12 {
			t := time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

func trimmedOrNil(s string) *string {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	return &t
}
