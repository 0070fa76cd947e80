package exchange

import (
	"context"
	"fmt"
	"sort"

	"github.com/ccash-market/marketd/internal/app/domain/market"
)

// SortKey selects the ordering of an offer listing.
type SortKey string

const (
	DateDescending      SortKey = "date_descending"
	DateAscending       SortKey = "date_ascending"
	TotalCostDescending SortKey = "total_cost_descending"
	TotalCostAscending  SortKey = "total_cost_ascending"
)

// ParseSortKey validates a caller-supplied sort key, defaulting to
// DateDescending for the empty string.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "":
		return DateDescending, nil
	case DateDescending, DateAscending, TotalCostDescending, TotalCostAscending:
		return SortKey(s), nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

const (
	// DefaultLimit applies when a listing request carries no limit.
	DefaultLimit = 100
	// MaxLimit bounds the response size; it also substitutes for a
	// requested limit of zero.
	MaxLimit = 1000
)

// OfferQuery describes a filtered, ordered, bounded offer listing.
type OfferQuery struct {
	// Kind restricts the listing to asks or bids when non-nil.
	Kind *market.OfferKind
	// Username restricts the listing to one user's offers. An unknown
	// username fails the query with storage.ErrNotFound.
	Username string
	SortBy   SortKey
	Limit    int
}

// ListOffers answers a listing query. The result is never longer than the
// clamped limit; ties under the sort key may appear in any order.
func (s *Service) ListOffers(ctx context.Context, q OfferQuery) ([]market.Offer, error) {
	candidates, err := s.collect(ctx, q)
	if err != nil {
		return nil, err
	}

	offers := make([]market.Offer, 0, len(candidates))
	for _, offer := range candidates {
		if q.Kind != nil && offer.Kind != *q.Kind {
			continue
		}
		offers = append(offers, offer)
	}

	sortOffers(offers, q.SortBy)

	limit := clampLimit(q.Limit)
	if len(offers) > limit {
		offers = offers[:limit]
	}
	return offers, nil
}

// collect gathers candidate offers: all of them, or only those referenced
// by the filtered user's offer set.
func (s *Service) collect(ctx context.Context, q OfferQuery) ([]market.Offer, error) {
	if q.Username == "" {
		all := s.store.Offers(ctx)
		out := make([]market.Offer, 0, len(all))
		for _, offer := range all {
			out = append(out, offer)
		}
		return out, nil
	}

	user, err := s.store.GetUserByName(ctx, q.Username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", q.Username, err)
	}

	out := make([]market.Offer, 0, len(user.OfferIDs))
	for _, id := range user.OfferIDs {
		offer, err := s.store.GetOffer(ctx, id)
		if err != nil {
			// Offers are never retracted, so a dangling reference
			// indicates a restore from an older snapshot; skip it.
			s.log.WithField("offer_id", id.String()).Warn("user references unknown offer")
			continue
		}
		out = append(out, offer)
	}
	return out, nil
}

func sortOffers(offers []market.Offer, key SortKey) {
	switch key {
	case DateAscending:
		sort.Slice(offers, func(i, j int) bool {
			return offers[i].CreatedAt.Before(offers[j].CreatedAt)
		})
	case TotalCostDescending:
		sort.Slice(offers, func(i, j int) bool {
			return offers[i].TotalCost() > offers[j].TotalCost()
		})
	case TotalCostAscending:
		sort.Slice(offers, func(i, j int) bool {
			return offers[i].TotalCost() < offers[j].TotalCost()
		})
	default: // DateDescending
		sort.Slice(offers, func(i, j int) bool {
			return offers[i].CreatedAt.After(offers[j].CreatedAt)
		})
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
