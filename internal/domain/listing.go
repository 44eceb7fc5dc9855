package domain

import "time"

// Listing is one property as tracked on the source site, keyed by the
// listing id embedded in its detail URL. Descriptive fields are overwritten
// on re-scrape; ScrapedAt records the first observation and is never updated.
type Listing struct {
	ID           int64
	ListingID    int64
	Address      *string
	PubDate      *time.Time
	Access       *string
	Structure    *string
	LandArea     *int
	BuildingArea *int
	BuildAt      *time.Time
	Floors       *int
	DetailURL    string
	ScrapedAt    time.Time
	ClosedAt     *time.Time
}

// PriceObservation is one (price, gross yield) snapshot for a listing.
// Price is integer man-yen, as printed on the site. Gross is a percentage
// with two decimal places; nil when the site omits it.
type PriceObservation struct {
	ID         int64
	PropertyID int64
	Price      int64
	Gross      *float64
	ScrapedAt  time.Time
}

// ObservedListing is the extractor's output for a single property block:
// parsed fields before any comparison with stored state. ListingID and
// Price are mandatory; everything else may be nil.
type ObservedListing struct {
	ListingID    int64
	Price        int64
	Gross        *float64
	Address      *string
	PubDate      *time.Time
	Access       *string
	Structure    *string
	LandArea     *int
	BuildingArea *int
	BuildAt      *time.Time
	Floors       *int
	DetailURL    string
}

// PropertyState is what the reconciler reads before writing: the stored
// listing plus its latest price observation (nil when none exists yet).
type PropertyState struct {
	Listing Listing
	Latest  *PriceObservation
}

// SameGross reports whether two gross yields are equal at two-decimal
// precision. DECIMAL(5,2) round trips must never look like a price change.
func SameGross(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return int64(*a*100+0.5) == int64(*b*100+0.5)
}
