// Package exchange implements the business operations of the marketplace:
// offer creation, entity lookups and the offer listing query engine.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ccash-market/marketd/internal/app/domain/market"
	"github.com/ccash-market/marketd/internal/app/storage"
	"github.com/ccash-market/marketd/pkg/logger"
)

// ErrInvalidPrice rejects offer creation with a zero price per item before
// the store is touched.
var ErrInvalidPrice = errors.New("price per item must be greater than zero")

// Properties is the read-only summary of the server's external identity.
type Properties struct {
	LedgerHost     string `json:"ledger_host"`
	MarketUsername string `json:"market_username"`
}

// Service exposes the marketplace operations on top of the store. All store
// primitives are total; validation happens here, at the boundary.
type Service struct {
	store storage.MarketStore
	log   *logger.Logger
	props Properties
}

// New builds a market service over the given store.
func New(store storage.MarketStore, props Properties, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("market")
	}
	if props.LedgerHost == "" {
		props.LedgerHost = "Unset"
	}
	if props.MarketUsername == "" {
		props.MarketUsername = "Unknown"
	}
	return &Service{store: store, log: log, props: props}
}

// Properties returns the ledger host and market account summary.
func (s *Service) Properties() Properties {
	return s.props
}

// CreateOfferInput carries a validated ask/bid creation request.
type CreateOfferInput struct {
	Username      string
	CommodityName string
	TotalCost     uint64
	PricePerItem  uint64
}

// CreateAsk records a sell-side offer, creating the user and commodity on
// first reference.
func (s *Service) CreateAsk(ctx context.Context, in CreateOfferInput) (market.Offer, error) {
	return s.createOffer(ctx, market.Ask, in)
}

// CreateBid records a buy-side offer, creating the user and commodity on
// first reference.
func (s *Service) CreateBid(ctx context.Context, in CreateOfferInput) (market.Offer, error) {
	return s.createOffer(ctx, market.Bid, in)
}

func (s *Service) createOffer(ctx context.Context, kind market.OfferKind, in CreateOfferInput) (market.Offer, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.CommodityName = strings.TrimSpace(in.CommodityName)
	if in.Username == "" || in.CommodityName == "" {
		return market.Offer{}, errors.New("username and commodity name required")
	}
	if in.PricePerItem == 0 {
		return market.Offer{}, ErrInvalidPrice
	}

	itemAmount := in.TotalCost / in.PricePerItem

	userID := s.store.GetOrAddUser(ctx, in.Username)
	commodityID := s.store.GetOrAddCommodity(ctx, in.CommodityName, itemAmount, userID)

	var offerID market.ID
	switch kind {
	case market.Ask:
		offerID = s.store.AddAsk(ctx, commodityID, userID, itemAmount, in.PricePerItem)
	default:
		offerID = s.store.AddBid(ctx, commodityID, userID, itemAmount, in.PricePerItem)
	}

	s.store.AttachOfferToUser(ctx, userID, offerID)
	s.store.AttachOwnerToCommodity(ctx, commodityID, userID)

	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return market.Offer{}, fmt.Errorf("read back offer %s: %w", offerID, err)
	}

	s.log.WithField("offer_id", offerID.String()).
		WithField("kind", string(kind)).
		Infof("%s for %d %q item(s) at %d each by %q", kind, itemAmount, in.CommodityName, in.PricePerItem, in.Username)

	return offer, nil
}

// LookupUser returns the user with the given id.
func (s *Service) LookupUser(ctx context.Context, id market.ID) (market.User, error) {
	return s.store.GetUser(ctx, id)
}

// LookupCommodity returns the commodity with the given id.
func (s *Service) LookupCommodity(ctx context.Context, id market.ID) (market.Commodity, error) {
	return s.store.GetCommodity(ctx, id)
}

// ListUsers returns every known user.
func (s *Service) ListUsers(ctx context.Context) []market.User {
	users := s.store.Users(ctx)
	out := make([]market.User, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	return out
}
