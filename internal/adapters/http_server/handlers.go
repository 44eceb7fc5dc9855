package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"rent_search/internal/app"
)

type Handlers struct{ Q *app.QueryService }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/price-trends", h.priceTrends)
	s.mux.Get("/v1/properties", h.listProperties)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON body failed")
	}
}

type trendDTO struct {
	Date     string  `json:"date"`
	AvgPrice float64 `json:"avg_price"`
	MinPrice int64   `json:"min_price"`
	MaxPrice int64   `json:"max_price"`
	Count    int     `json:"count"`
}

func (h *Handlers) priceTrends(w http.ResponseWriter, r *http.Request) {
	days := 30
	if ds := r.URL.Query().Get("days"); ds != "" {
		d, err := strconv.Atoi(ds)
		if err != nil || !supportedWindow(d) {
			writeProblem(w, http.StatusBadRequest, "Invalid days", "days must be one of 7, 30, 180 or 365")
			return
		}
		days = d
	}

	trends, err := h.Q.PriceTrends(r.Context(), days)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Query failed", "could not compute price trends")
		return
	}

	out := make([]trendDTO, 0, len(trends))
	for _, t := range trends {
		out = append(out, trendDTO{
			Date:     t.Date.Format("2006-01-02"),
			AvgPrice: t.AvgPrice,
			MinPrice: t.MinPrice,
			MaxPrice: t.MaxPrice,
			Count:    t.Count,
		})
	}
	writeJSON(w, out)
}

// supportedWindow mirrors the query side's trend windows so callers get a
// 400 instead of a silently substituted window.
func supportedWindow(d int) bool {
	switch d {
	case 7, 30, 180, 365:
		return true
	}
	return false
}

type propertyDTO struct {
	ID             int64    `json:"id"`
	ListingID      int64    `json:"listing_id"`
	Address        *string  `json:"address"`
	PubDate        *string  `json:"pub_date"`
	Access         *string  `json:"access"`
	Structure      *string  `json:"structure"`
	LandArea       *int     `json:"land_area"`
	BuildingArea   *int     `json:"building_area"`
	BuildAt        *string  `json:"build_at"`
	Floors         *int     `json:"floors"`
	DetailURL      string   `json:"detail_url"`
	ScrapedAt      string   `json:"scraped_at"`
	ClosedAt       *string  `json:"closed_at"`
	Price          *int64   `json:"price,omitempty"`
	Gross          *float64 `json:"gross,omitempty"`
	PriceUpdatedAt *string  `json:"price_updated_at,omitempty"`
}

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	views, err := h.Q.ListProperties(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Query failed", "could not list properties")
		return
	}

	out := make([]propertyDTO, 0, len(views))
	for _, v := range views {
		out = append(out, propertyDTO{
			ID:             v.ID,
			ListingID:      v.ListingID,
			Address:        v.Address,
			PubDate:        dateStr(v.PubDate),
			Access:         v.Access,
			Structure:      v.Structure,
			LandArea:       v.LandArea,
			BuildingArea:   v.BuildingArea,
			BuildAt:        dateStr(v.BuildAt),
			Floors:         v.Floors,
			DetailURL:      v.DetailURL,
			ScrapedAt:      v.ScrapedAt.Format("2006-01-02"),
			ClosedAt:       dateStr(v.ClosedAt),
			Price:          v.Price,
			Gross:          v.Gross,
			PriceUpdatedAt: timeStr(v.PriceUpdatedAt),
		})
	}
	writeJSON(w, out)
}

func dateStr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func timeStr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
