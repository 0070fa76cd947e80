package storage

import (
	"context"
	"sync"
	"time"

	"github.com/ccash-market/marketd/internal/app/domain/market"
)

// Memory is the in-process store. The three collections are independently
// locked, and each user and commodity lives in its own locked cell, so
// mutating one entity never blocks reads or writes of unrelated entities.
// Offers are immutable once inserted and are stored by value.
//
// Natural-key indexes (username, commodity name) are maintained under the
// collection write lock, making get-or-add a single atomic upsert rather
// than a racy read-then-insert.
type Memory struct {
	usersMu    sync.RWMutex
	users      map[market.ID]*userEntry
	byUsername map[string]market.ID

	commoditiesMu sync.RWMutex
	commodities   map[market.ID]*commodityEntry
	byCommodity   map[string]market.ID

	offersMu sync.RWMutex
	offers   map[market.ID]market.Offer

	// now is swappable for deterministic offer timestamps in tests.
	now func() time.Time
}

type userEntry struct {
	mu   sync.RWMutex
	user market.User
}

type commodityEntry struct {
	mu        sync.RWMutex
	commodity market.Commodity
}

var _ MarketStore = (*Memory)(nil)
var _ Exporter = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[market.ID]*userEntry),
		byUsername:  make(map[string]market.ID),
		commodities: make(map[market.ID]*commodityEntry),
		byCommodity: make(map[string]market.ID),
		offers:      make(map[market.ID]market.Offer),
		now:         time.Now,
	}
}

// Users -----------------------------------------------------------------

func (m *Memory) GetOrAddUser(_ context.Context, username string) market.ID {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()

	if id, ok := m.byUsername[username]; ok {
		return id
	}

	id := market.NewID()
	m.users[id] = &userEntry{user: market.NewUser(id, username)}
	m.byUsername[username] = id
	return id
}

func (m *Memory) GetUser(_ context.Context, id market.ID) (market.User, error) {
	m.usersMu.RLock()
	entry, ok := m.users[id]
	m.usersMu.RUnlock()
	if !ok {
		return market.User{}, ErrNotFound
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.user.Clone(), nil
}

func (m *Memory) GetUserByName(ctx context.Context, username string) (market.User, error) {
	m.usersMu.RLock()
	id, ok := m.byUsername[username]
	m.usersMu.RUnlock()
	if !ok {
		return market.User{}, ErrNotFound
	}
	return m.GetUser(ctx, id)
}

func (m *Memory) AttachOfferToUser(_ context.Context, userID, offerID market.ID) {
	m.usersMu.RLock()
	entry, ok := m.users[userID]
	m.usersMu.RUnlock()
	if !ok {
		// Should not happen in the normal flow; callers resolve the
		// user id immediately before attaching.
		return
	}

	entry.mu.Lock()
	entry.user.AddOfferID(offerID)
	entry.mu.Unlock()
}

func (m *Memory) Users(_ context.Context) map[market.ID]market.User {
	m.usersMu.RLock()
	entries := make([]*userEntry, 0, len(m.users))
	for _, entry := range m.users {
		entries = append(entries, entry)
	}
	m.usersMu.RUnlock()

	out := make(map[market.ID]market.User, len(entries))
	for _, entry := range entries {
		entry.mu.RLock()
		out[entry.user.ID] = entry.user.Clone()
		entry.mu.RUnlock()
	}
	return out
}

// Commodities -----------------------------------------------------------

func (m *Memory) GetOrAddCommodity(_ context.Context, name string, amount uint64, ownerID market.ID) market.ID {
	m.commoditiesMu.Lock()
	defer m.commoditiesMu.Unlock()

	if id, ok := m.byCommodity[name]; ok {
		return id
	}

	id := market.NewID()
	m.commodities[id] = &commodityEntry{commodity: market.NewCommodity(id, name, amount, ownerID)}
	m.byCommodity[name] = id
	return id
}

func (m *Memory) GetCommodity(_ context.Context, id market.ID) (market.Commodity, error) {
	m.commoditiesMu.RLock()
	entry, ok := m.commodities[id]
	m.commoditiesMu.RUnlock()
	if !ok {
		return market.Commodity{}, ErrNotFound
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.commodity.Clone(), nil
}

func (m *Memory) AttachOwnerToCommodity(_ context.Context, commodityID, ownerID market.ID) {
	m.commoditiesMu.RLock()
	entry, ok := m.commodities[commodityID]
	m.commoditiesMu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.commodity.AddOwner(ownerID)
	entry.mu.Unlock()
}

func (m *Memory) Commodities(_ context.Context) map[market.ID]market.Commodity {
	m.commoditiesMu.RLock()
	entries := make([]*commodityEntry, 0, len(m.commodities))
	for _, entry := range m.commodities {
		entries = append(entries, entry)
	}
	m.commoditiesMu.RUnlock()

	out := make(map[market.ID]market.Commodity, len(entries))
	for _, entry := range entries {
		entry.mu.RLock()
		out[entry.commodity.ID] = entry.commodity.Clone()
		entry.mu.RUnlock()
	}
	return out
}

// Offers ----------------------------------------------------------------

func (m *Memory) AddAsk(ctx context.Context, commodityID, userID market.ID, amount, pricePerItem uint64) market.ID {
	return m.addOffer(ctx, market.Ask, commodityID, userID, amount, pricePerItem)
}

func (m *Memory) AddBid(ctx context.Context, commodityID, userID market.ID, amount, pricePerItem uint64) market.ID {
	return m.addOffer(ctx, market.Bid, commodityID, userID, amount, pricePerItem)
}

func (m *Memory) addOffer(_ context.Context, kind market.OfferKind, commodityID, userID market.ID, amount, pricePerItem uint64) market.ID {
	offer := market.Offer{
		ID:           market.NewID(),
		Kind:         kind,
		UserID:       userID,
		CommodityID:  commodityID,
		CreatedAt:    m.now().UTC(),
		ItemAmount:   amount,
		PricePerItem: pricePerItem,
	}

	m.offersMu.Lock()
	m.offers[offer.ID] = offer
	m.offersMu.Unlock()

	return offer.ID
}

func (m *Memory) GetOffer(_ context.Context, id market.ID) (market.Offer, error) {
	m.offersMu.RLock()
	defer m.offersMu.RUnlock()

	offer, ok := m.offers[id]
	if !ok {
		return market.Offer{}, ErrNotFound
	}
	return offer, nil
}

func (m *Memory) Offers(_ context.Context) map[market.ID]market.Offer {
	m.offersMu.RLock()
	defer m.offersMu.RUnlock()

	out := make(map[market.ID]market.Offer, len(m.offers))
	for id, offer := range m.offers {
		out[id] = offer
	}
	return out
}

// Snapshotting ----------------------------------------------------------

// Export captures the full store contents as plain values.
func (m *Memory) Export(ctx context.Context) Snapshot {
	return Snapshot{
		Users:       m.Users(ctx),
		Commodities: m.Commodities(ctx),
		Offers:      m.Offers(ctx),
	}
}

// Restore replaces the full store contents. Intended for startup, before
// the store is shared with request handlers.
func (m *Memory) Restore(_ context.Context, snap Snapshot) {
	m.usersMu.Lock()
	m.users = make(map[market.ID]*userEntry, len(snap.Users))
	m.byUsername = make(map[string]market.ID, len(snap.Users))
	for id, user := range snap.Users {
		m.users[id] = &userEntry{user: user.Clone()}
		m.byUsername[user.Username] = id
	}
	m.usersMu.Unlock()

	m.commoditiesMu.Lock()
	m.commodities = make(map[market.ID]*commodityEntry, len(snap.Commodities))
	m.byCommodity = make(map[string]market.ID, len(snap.Commodities))
	for id, commodity := range snap.Commodities {
		m.commodities[id] = &commodityEntry{commodity: commodity.Clone()}
		m.byCommodity[commodity.Name] = id
	}
	m.commoditiesMu.Unlock()

	m.offersMu.Lock()
	m.offers = make(map[market.ID]market.Offer, len(snap.Offers))
	for id, offer := range snap.Offers {
		m.offers[id] = offer
	}
	m.offersMu.Unlock()
}
