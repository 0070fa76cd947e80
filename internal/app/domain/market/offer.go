package market

import (
	"math"
	"math/bits"
	"time"
)

// OfferKind tags an offer as sell-side or buy-side.
type OfferKind string

const (
	// Ask is a sell-side offer: a user offering a commodity quantity for
	// a price.
	Ask OfferKind = "ask"
	// Bid is a buy-side offer.
	Bid OfferKind = "bid"
)

// Valid reports whether the kind is one of the two known tags.
func (k OfferKind) Valid() bool {
	return k == Ask || k == Bid
}

// Offer is an outstanding buy or sell listing. Offers are immutable once
// created; there is no edit or cancel operation. UserID and CommodityID
// refer to entities that existed when the offer was placed.
type Offer struct {
	ID           ID        `json:"id"`
	Kind         OfferKind `json:"kind"`
	UserID       ID        `json:"user_id"`
	CommodityID  ID        `json:"commodity_id"`
	CreatedAt    time.Time `json:"created_at"`
	ItemAmount   uint64    `json:"item_amount"`
	PricePerItem uint64    `json:"price_per_item"`
}

// TotalCost returns ItemAmount * PricePerItem, saturating at the maximum
// uint64 instead of wrapping.
func (o Offer) TotalCost() uint64 {
	hi, lo := bits.Mul64(o.ItemAmount, o.PricePerItem)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
