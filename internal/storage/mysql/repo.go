package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"rent_search/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valDate(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Format("2006-01-02")
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// SaveObserved upserts the listing and, when obs is non-nil, appends its
// price observation in the same transaction. The append must be strictly
// later than the property's latest observation; anything else fails with
// domain.ErrOutOfOrderObservation and nothing is written.
func (r *Repo) SaveObserved(ctx context.Context, l domain.Listing, obs *domain.PriceObservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertPropertySQL,
		l.ListingID,
		valStr(l.Address),
		valDate(l.PubDate),
		valStr(l.Access),
		valStr(l.Structure),
		valInt(l.LandArea),
		valInt(l.BuildingArea),
		valDate(l.BuildAt),
		valInt(l.Floors),
		l.DetailURL,
		l.ScrapedAt.Format("2006-01-02"),
	); err != nil {
		return err
	}

	if obs != nil {
		var propertyID int64
		if err := tx.QueryRowContext(ctx, selectPropertyIDSQL, l.ListingID).Scan(&propertyID); err != nil {
			return err
		}

		var latest sql.NullTime
		if err := tx.QueryRowContext(ctx, selectLatestObservedAtSQL, propertyID).Scan(&latest); err != nil {
			return err
		}
		if latest.Valid && !obs.ScrapedAt.After(latest.Time) {
			return fmt.Errorf("listing %d at %s: %w", l.ListingID, obs.ScrapedAt.Format(time.RFC3339), domain.ErrOutOfOrderObservation)
		}

		if _, err := tx.ExecContext(ctx, insertObservationSQL,
			propertyID, obs.Price, valF64(obs.Gross), obs.ScrapedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MarkClosed stamps closed_at on every still-active row in ids. Returns the
// number of rows actually closed.
func (r *Repo) MarkClosed(ctx context.Context, ids []int64, closedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, closedAt.Format("2006-01-02"))
	for _, id := range ids {
		args = append(args, id)
	}
	q := markClosedPrefix + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) PropertyState(ctx context.Context, listingID int64) (domain.PropertyState, error) {
	row := r.db.QueryRowContext(ctx, selectPropertyStateSQL, listingID)

	var st domain.PropertyState
	var (
		address, access, structure   sql.NullString
		pubDate, buildAt, closedAt   sql.NullTime
		landArea, bldgArea, floors   sql.NullInt64
		detailURL                    sql.NullString
		obsID, obsPrice              sql.NullInt64
		obsGross                     sql.NullFloat64
		obsAt                        sql.NullTime
	)
	if err := row.Scan(
		&st.Listing.ID, &st.Listing.ListingID,
		&address, &pubDate, &access, &structure,
		&landArea, &bldgArea, &buildAt, &floors, &detailURL,
		&st.Listing.ScrapedAt, &closedAt,
		&obsID, &obsPrice, &obsGross, &obsAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.PropertyState{}, domain.ErrNotFound
		}
		return domain.PropertyState{}, err
	}

	st.Listing.Address = nullStr(address)
	st.Listing.Access = nullStr(access)
	st.Listing.Structure = nullStr(structure)
	st.Listing.PubDate = nullTime(pubDate)
	st.Listing.BuildAt = nullTime(buildAt)
	st.Listing.ClosedAt = nullTime(closedAt)
	st.Listing.LandArea = nullInt(landArea)
	st.Listing.BuildingArea = nullInt(bldgArea)
	st.Listing.Floors = nullInt(floors)
	if detailURL.Valid {
		st.Listing.DetailURL = detailURL.String
	}

	if obsID.Valid {
		st.Latest = &domain.PriceObservation{
			ID:         obsID.Int64,
			PropertyID: st.Listing.ID,
			Price:      obsPrice.Int64,
			ScrapedAt:  obsAt.Time,
		}
		if obsGross.Valid {
			g := obsGross.Float64
			st.Latest.Gross = &g
		}
	}
	return st, nil
}

func (r *Repo) ActiveListingIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, selectActiveListingIDsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repo) PriceTrends(ctx context.Context, since time.Time) ([]domain.PriceTrend, error) {
	rows, err := r.db.QueryContext(ctx, priceTrendsSQL, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceTrend
	for rows.Next() {
		var t domain.PriceTrend
		if err := rows.Scan(&t.Date, &t.AvgPrice, &t.MinPrice, &t.MaxPrice, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) ListProperties(ctx context.Context) ([]domain.PropertyView, error) {
	rows, err := r.db.QueryContext(ctx, listPropertiesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PropertyView
	for rows.Next() {
		var v domain.PropertyView
		var (
			address, access, structure sql.NullString
			pubDate, buildAt, closedAt sql.NullTime
			landArea, bldgArea, floors sql.NullInt64
			detailURL                  sql.NullString
			price                      sql.NullInt64
			gross                      sql.NullFloat64
			priceAt                    sql.NullTime
		)
		if err := rows.Scan(
			&v.ID, &v.ListingID,
			&address, &pubDate, &access, &structure,
			&landArea, &bldgArea, &buildAt, &floors, &detailURL,
			&v.ScrapedAt, &closedAt,
			&price, &gross, &priceAt,
		); err != nil {
			return nil, err
		}
		v.Address = nullStr(address)
		v.Access = nullStr(access)
		v.Structure = nullStr(structure)
		v.PubDate = nullTime(pubDate)
		v.BuildAt = nullTime(buildAt)
		v.ClosedAt = nullTime(closedAt)
		v.LandArea = nullInt(landArea)
		v.BuildingArea = nullInt(bldgArea)
		v.Floors = nullInt(floors)
		if detailURL.Valid {
			v.DetailURL = detailURL.String
		}
		if price.Valid {
			p := price.Int64
			v.Price = &p
		}
		if gross.Valid {
			g := gross.Float64
			v.Gross = &g
		}
		v.PriceUpdatedAt = nullTime(priceAt)
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
