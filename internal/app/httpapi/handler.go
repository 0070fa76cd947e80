// Package httpapi exposes the market store over a REST API. Handlers only
// validate and translate; every store interaction goes through the exchange
// service.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ccash-market/marketd/internal/app/domain/market"
	"github.com/ccash-market/marketd/internal/app/metrics"
	"github.com/ccash-market/marketd/internal/app/services/exchange"
	"github.com/ccash-market/marketd/internal/app/storage"
	"github.com/ccash-market/marketd/internal/httputil"
	"github.com/ccash-market/marketd/internal/ledger"
	"github.com/ccash-market/marketd/pkg/logger"
)

// Handler bundles the HTTP endpoints of the market server.
type Handler struct {
	exchange *exchange.Service
	ledger   *ledger.Client
	log      *logger.Logger
}

// New builds the router. The ledger client may be nil when no ledger host
// is configured; offer creation then skips credential verification.
func New(exchangeSvc *exchange.Service, ledgerClient *ledger.Client, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{exchange: exchangeSvc, ledger: ledgerClient, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/api/properties", h.handleProperties).Methods(http.MethodGet)
	r.HandleFunc("/api/users", h.handleListUsers).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{id}", h.handleGetUser).Methods(http.MethodGet)
	r.HandleFunc("/api/commodities/{id}", h.handleGetCommodity).Methods(http.MethodGet)
	r.HandleFunc("/api/offers", h.handleListOffers).Methods(http.MethodGet)
	r.HandleFunc("/api/offers/ask", h.handleCreateAsk).Methods(http.MethodPost)
	r.HandleFunc("/api/offers/bid", h.handleCreateBid).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return r
}

func (h *Handler) handleProperties(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.exchange.Properties())
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.exchange.ListUsers(r.Context()))
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := h.exchange.LookupUser(r.Context(), id)
	if err != nil {
		httputil.NotFound(w, "user "+id.String()+" not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleGetCommodity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	commodity, err := h.exchange.LookupCommodity(r.Context(), id)
	if err != nil {
		httputil.NotFound(w, "commodity "+id.String()+" not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, commodity)
}

func (h *Handler) handleListOffers(w http.ResponseWriter, r *http.Request) {
	query, ok := parseOfferQuery(w, r)
	if !ok {
		return
	}

	offers, err := h.exchange.ListOffers(r.Context(), query)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		h.log.WithError(err).Error("list offers")
		httputil.InternalError(w, "failed to list offers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, offers)
}

// createOfferRequest is the wire form of an ask/bid creation. Password is
// only forwarded to the ledger for verification, never stored.
type createOfferRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	CommodityName string `json:"commodity_name"`
	TotalCost     uint64 `json:"total_cost"`
	PricePerItem  uint64 `json:"price_per_item"`
}

func (h *Handler) handleCreateAsk(w http.ResponseWriter, r *http.Request) {
	h.createOffer(w, r, market.Ask)
}

func (h *Handler) handleCreateBid(w http.ResponseWriter, r *http.Request) {
	h.createOffer(w, r, market.Bid)
}

func (h *Handler) createOffer(w http.ResponseWriter, r *http.Request, kind market.OfferKind) {
	var req createOfferRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if h.ledger != nil && h.ledger.IsConnected() {
		ok, err := h.ledger.VerifyPassword(r.Context(), ledger.Credentials{
			Username: req.Username,
			Password: req.Password,
		})
		if err != nil {
			h.log.WithError(err).Warn("ledger password verification failed")
			httputil.InternalError(w, "could not verify credentials against ledger")
			return
		}
		if !ok {
			httputil.Unauthorized(w, "invalid ledger credentials")
			return
		}
	}

	input := exchange.CreateOfferInput{
		Username:      req.Username,
		CommodityName: req.CommodityName,
		TotalCost:     req.TotalCost,
		PricePerItem:  req.PricePerItem,
	}

	var (
		offer market.Offer
		err   error
	)
	if kind == market.Ask {
		offer, err = h.exchange.CreateAsk(r.Context(), input)
	} else {
		offer, err = h.exchange.CreateBid(r.Context(), input)
	}
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	metrics.RecordOfferCreated(string(kind))
	httputil.WriteJSON(w, http.StatusCreated, offer)
}

func pathID(w http.ResponseWriter, r *http.Request) (market.ID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := market.ParseID(raw)
	if err != nil {
		httputil.BadRequest(w, "invalid id "+strconv.Quote(raw))
		return market.NilID, false
	}
	return id, true
}

func parseOfferQuery(w http.ResponseWriter, r *http.Request) (exchange.OfferQuery, bool) {
	q := exchange.OfferQuery{
		Username: r.URL.Query().Get("username"),
		Limit:    exchange.DefaultLimit,
	}

	sortBy, err := exchange.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return exchange.OfferQuery{}, false
	}
	q.SortBy = sortBy

	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind := market.OfferKind(raw)
		if !kind.Valid() {
			httputil.BadRequest(w, "unknown offer kind "+strconv.Quote(raw))
			return exchange.OfferQuery{}, false
		}
		q.Kind = &kind
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.BadRequest(w, "invalid limit "+strconv.Quote(raw))
			return exchange.OfferQuery{}, false
		}
		q.Limit = limit
	}

	return q, true
}
