// Package storage defines the persistence surface of the market server and
// provides the in-memory implementation that is the process-lifetime source
// of truth.
package storage

import (
	"context"
	"errors"

	"github.com/ccash-market/marketd/internal/app/domain/market"
)

// ErrNotFound is returned by lookups that reference an absent entity.
var ErrNotFound = errors.New("not found")

// UserStore holds market participants.
type UserStore interface {
	// GetOrAddUser returns the id of the user with the given username,
	// creating the user when unseen. The upsert is atomic on the
	// username key: concurrent calls for the same new name agree on one
	// identifier.
	GetOrAddUser(ctx context.Context, username string) market.ID
	GetUser(ctx context.Context, id market.ID) (market.User, error)
	GetUserByName(ctx context.Context, username string) (market.User, error)
	// AttachOfferToUser appends an offer reference to the user's offer
	// set. A missing user is a silent no-op.
	AttachOfferToUser(ctx context.Context, userID, offerID market.ID)
	Users(ctx context.Context) map[market.ID]market.User
}

// CommodityStore holds tradable item types.
type CommodityStore interface {
	// GetOrAddCommodity returns the id of the commodity with the given
	// name, creating it with the given size and initial owner when
	// unseen. The found-existing path leaves the owner set untouched;
	// ownership is attached by the caller afterwards.
	GetOrAddCommodity(ctx context.Context, name string, amount uint64, ownerID market.ID) market.ID
	GetCommodity(ctx context.Context, id market.ID) (market.Commodity, error)
	// AttachOwnerToCommodity appends an owning user to the commodity's
	// owner set. A missing commodity is a silent no-op.
	AttachOwnerToCommodity(ctx context.Context, commodityID, ownerID market.ID)
	Commodities(ctx context.Context) map[market.ID]market.Commodity
}

// OfferStore holds outstanding offers.
type OfferStore interface {
	AddAsk(ctx context.Context, commodityID, userID market.ID, amount, pricePerItem uint64) market.ID
	AddBid(ctx context.Context, commodityID, userID market.ID, amount, pricePerItem uint64) market.ID
	GetOffer(ctx context.Context, id market.ID) (market.Offer, error)
	Offers(ctx context.Context) map[market.ID]market.Offer
}

// MarketStore is the aggregate surface the market service operates on.
type MarketStore interface {
	UserStore
	CommodityStore
	OfferStore
}

// Snapshot is the value form of the whole store, used by the persistence
// layer and for wholesale restore at startup.
type Snapshot struct {
	Users       map[market.ID]market.User      `json:"users"`
	Commodities map[market.ID]market.Commodity `json:"commodities"`
	Offers      map[market.ID]market.Offer     `json:"offers"`
}

// EmptySnapshot returns a snapshot with three empty collections.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Users:       make(map[market.ID]market.User),
		Commodities: make(map[market.ID]market.Commodity),
		Offers:      make(map[market.ID]market.Offer),
	}
}

// Exporter is implemented by stores whose full contents can be captured and
// replaced, for snapshotting.
type Exporter interface {
	Export(ctx context.Context) Snapshot
	Restore(ctx context.Context, snap Snapshot)
}
