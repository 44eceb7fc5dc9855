package app

import (
	"time"

	"rent_search/internal/domain"
)

// Outcome is the mutation plan for one observed listing: the listing row to
// upsert and, for NEW and PRICE_CHANGED, the observation to append.
type Outcome struct {
	Action      domain.Action
	Listing     domain.Listing
	Observation *domain.PriceObservation
}

// Reconcile classifies one observation against prior stored state. It is
// pure: all reads happen before the call, all writes after. CLOSED is not
// decided here — absence is only knowable once the whole run has been seen,
// so the coordinator owns that post-pass.
//
// A reappearing listing keeps its identity: closed_at is cleared and the
// price history continues.
func Reconcile(obs domain.ObservedListing, prior *domain.PropertyState, now time.Time) Outcome {
	l := domain.Listing{
		ListingID:    obs.ListingID,
		Address:      obs.Address,
		PubDate:      obs.PubDate,
		Access:       obs.Access,
		Structure:    obs.Structure,
		LandArea:     obs.LandArea,
		BuildingArea: obs.BuildingArea,
		BuildAt:      obs.BuildAt,
		Floors:       obs.Floors,
		DetailURL:    obs.DetailURL,
		ScrapedAt:    now,
	}

	if prior == nil {
		return Outcome{
			Action:  domain.ActionNew,
			Listing: l,
			Observation: &domain.PriceObservation{
				Price:     obs.Price,
				Gross:     obs.Gross,
				ScrapedAt: now,
			},
		}
	}

	// Keep the stored identity and first-seen timestamp; closed_at stays nil
	// in the upsert, which clears it if the listing had been closed.
	l.ID = prior.Listing.ID
	l.ScrapedAt = prior.Listing.ScrapedAt

	if priceChanged(obs, prior.Latest) {
		return Outcome{
			Action:  domain.ActionPriceChanged,
			Listing: l,
			Observation: &domain.PriceObservation{
				PropertyID: prior.Listing.ID,
				Price:      obs.Price,
				Gross:      obs.Gross,
				ScrapedAt:  now,
			},
		}
	}
	return Outcome{Action: domain.ActionUnchanged, Listing: l}
}

func priceChanged(obs domain.ObservedListing, latest *domain.PriceObservation) bool {
	if latest == nil {
		return true // no history yet, seed it
	}
	return obs.Price != latest.Price || !domain.SameGross(obs.Gross, latest.Gross)
}
