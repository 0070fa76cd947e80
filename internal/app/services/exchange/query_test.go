package exchange

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccash-market/marketd/internal/app/domain/market"
	"github.com/ccash-market/marketd/internal/app/storage"
)

func seedOffers(t *testing.T, svc *Service) {
	t.Helper()
	// Resulting total costs (item amount * price per item): 100, 50, 200.
	for _, in := range []CreateOfferInput{
		{Username: "alice", CommodityName: "Iron", TotalCost: 100, PricePerItem: 10},
		{Username: "alice", CommodityName: "Coal", TotalCost: 50, PricePerItem: 25},
		{Username: "bob", CommodityName: "Gold", TotalCost: 200, PricePerItem: 100},
	} {
		if _, err := svc.CreateAsk(context.Background(), in); err != nil {
			t.Fatalf("seed offer: %v", err)
		}
	}
}

func totalCosts(offers []market.Offer) []uint64 {
	out := make([]uint64, len(offers))
	for i, o := range offers {
		out[i] = o.TotalCost()
	}
	return out
}

func TestListOffersSortsByTotalCost(t *testing.T) {
	svc, _ := newTestService()
	seedOffers(t, svc)

	offers, err := svc.ListOffers(context.Background(), OfferQuery{SortBy: TotalCostDescending})
	require.NoError(t, err)
	require.Equal(t, []uint64{200, 100, 50}, totalCosts(offers))

	offers, err = svc.ListOffers(context.Background(), OfferQuery{SortBy: TotalCostAscending})
	require.NoError(t, err)
	require.Equal(t, []uint64{50, 100, 200}, totalCosts(offers))
}

func TestListOffersSortsByDate(t *testing.T) {
	svc, _ := newTestService()
	seedOffers(t, svc)

	offers, err := svc.ListOffers(context.Background(), OfferQuery{SortBy: DateAscending})
	require.NoError(t, err)
	require.Len(t, offers, 3)
	for i := 1; i < len(offers); i++ {
		require.False(t, offers[i].CreatedAt.Before(offers[i-1].CreatedAt),
			"ascending order violated at %d", i)
	}

	offers, err = svc.ListOffers(context.Background(), OfferQuery{}) // default: date descending
	require.NoError(t, err)
	for i := 1; i < len(offers); i++ {
		require.False(t, offers[i].CreatedAt.After(offers[i-1].CreatedAt),
			"descending order violated at %d", i)
	}
}

func TestListOffersFiltersByKind(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateAsk(ctx, CreateOfferInput{Username: "alice", CommodityName: "Iron", TotalCost: 10, PricePerItem: 1})
	require.NoError(t, err)
	_, err = svc.CreateBid(ctx, CreateOfferInput{Username: "bob", CommodityName: "Iron", TotalCost: 10, PricePerItem: 1})
	require.NoError(t, err)

	ask := market.Ask
	offers, err := svc.ListOffers(ctx, OfferQuery{Kind: &ask})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, market.Ask, offers[0].Kind)

	bid := market.Bid
	offers, err = svc.ListOffers(ctx, OfferQuery{Kind: &bid})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, market.Bid, offers[0].Kind)
}

func TestListOffersFiltersByUsername(t *testing.T) {
	svc, _ := newTestService()
	seedOffers(t, svc)

	offers, err := svc.ListOffers(context.Background(), OfferQuery{Username: "alice"})
	require.NoError(t, err)
	require.Len(t, offers, 2)

	_, err = svc.ListOffers(context.Background(), OfferQuery{Username: "nobody"})
	require.True(t, errors.Is(err, storage.ErrNotFound), "err = %v, want ErrNotFound", err)
}

func TestListOffersClampsLimit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := svc.CreateAsk(ctx, CreateOfferInput{
			Username:      "alice",
			CommodityName: fmt.Sprintf("Item-%d", i),
			TotalCost:     10,
			PricePerItem:  1,
		})
		require.NoError(t, err)
	}

	offers, err := svc.ListOffers(ctx, OfferQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, offers, 3)

	// Zero and oversized limits both resolve to the maximum.
	offers, err = svc.ListOffers(ctx, OfferQuery{Limit: 0})
	require.NoError(t, err)
	require.Len(t, offers, 10)

	offers, err = svc.ListOffers(ctx, OfferQuery{Limit: 5000})
	require.NoError(t, err)
	require.Len(t, offers, 10)

	require.Equal(t, MaxLimit, clampLimit(0))
	require.Equal(t, MaxLimit, clampLimit(5000))
	require.Equal(t, 3, clampLimit(3))
}

func TestParseSortKey(t *testing.T) {
	key, err := ParseSortKey("")
	require.NoError(t, err)
	require.Equal(t, DateDescending, key)

	key, err = ParseSortKey("total_cost_ascending")
	require.NoError(t, err)
	require.Equal(t, TotalCostAscending, key)

	_, err = ParseSortKey("alphabetical")
	require.Error(t, err)
}
