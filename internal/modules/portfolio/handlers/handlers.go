// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/optimization"
	"github.com/aristath/omegafolio/internal/modules/portfolio"
	"github.com/aristath/omegafolio/internal/modules/universe"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests.
type Handler struct {
	portfolioRepo   *portfolio.PortfolioRepository
	rebalanceRepo   *portfolio.RebalanceRepository
	universeService *universe.Service
	registry        *optimization.Registry
	defaultUniverse string
	log             zerolog.Logger
}

// NewHandler creates a new portfolio handler.
func NewHandler(
	portfolioRepo *portfolio.PortfolioRepository,
	rebalanceRepo *portfolio.RebalanceRepository,
	universeService *universe.Service,
	registry *optimization.Registry,
	defaultUniverse string,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		portfolioRepo:   portfolioRepo,
		rebalanceRepo:   rebalanceRepo,
		universeService: universeService,
		registry:        registry,
		defaultUniverse: defaultUniverse,
		log:             log.With().Str("handler", "portfolio").Logger(),
	}
}

type createRequest struct {
	InitInvestment float64  `json:"init_investment"`
	Strategy       string   `json:"strategy"`
	Universe       string   `json:"universe"`
	Tau            *float64 `json:"tau"`
	RequireReturn  *float64 `json:"require_return"`
	Delta          *float64 `json:"delta"`
}

// HandleCreate creates a portfolio with its strategy parameters.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.InitInvestment <= 0 {
		h.writeError(w, http.StatusBadRequest, "init_investment must be positive")
		return
	}
	if req.Strategy == "" {
		req.Strategy = "omega"
	}
	if _, err := h.registry.Get(req.Strategy); err != nil {
		h.writeError(w, http.StatusBadRequest, "unknown strategy: "+req.Strategy)
		return
	}
	if req.Universe == "" {
		req.Universe = h.defaultUniverse
	}
	if _, err := h.universeService.Instruments(req.Universe); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusBadRequest, "unknown universe: "+req.Universe)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params := domain.StrategyParameters{
		domain.ParamTau:           0,
		domain.ParamRequireReturn: 0,
		domain.ParamDelta:         optimization.DefaultDelta,
	}
	if req.Tau != nil {
		params[domain.ParamTau] = *req.Tau
	}
	if req.RequireReturn != nil {
		params[domain.ParamRequireReturn] = *req.RequireReturn
	}
	if req.Delta != nil {
		if *req.Delta < 0 || *req.Delta > 1 {
			h.writeError(w, http.StatusBadRequest, "delta must be in [0, 1]")
			return
		}
		params[domain.ParamDelta] = *req.Delta
	}

	p := domain.Portfolio{
		InitInvestment: req.InitInvestment,
		CreateDate:     time.Now().UTC().Format("2006-01-02"),
		Strategy:       req.Strategy,
		Universe:       req.Universe,
	}
	id, err := h.portfolioRepo.Add(p, params)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p.ID = id

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"portfolio":  p,
		"parameters": params,
	})
}

// HandleList returns all portfolios.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolioRepo.GetAll()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if portfolios == nil {
		portfolios = []domain.Portfolio{}
	}
	h.writeJSON(w, http.StatusOK, portfolios)
}

// HandleGet returns one portfolio with its parameters, latest rebalance and
// current holdings.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	p, err := h.portfolioRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params, err := h.portfolioRepo.GetParameters(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	latest, err := h.rebalanceRepo.GetLatest(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	holdings := []domain.Holding{}
	if latest != nil {
		holdings, err = h.rebalanceRepo.GetHoldings(latest.ID)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio":        p,
		"parameters":       params,
		"latest_rebalance": latest,
		"holdings":         holdings,
	})
}

// HandleGetHistory returns the full rebalance history of one portfolio.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	if _, err := h.portfolioRepo.GetByID(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, err := h.rebalanceRepo.GetHistory(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []domain.RebalanceEvent{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
