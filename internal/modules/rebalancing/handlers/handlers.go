// Package handlers provides HTTP handlers for rebalancing operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/rebalancing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Handler handles rebalancing HTTP requests.
type Handler struct {
	runs *rebalancing.RunManager
	log  zerolog.Logger
}

// NewHandler creates a new rebalancing handler.
func NewHandler(runs *rebalancing.RunManager, log zerolog.Logger) *Handler {
	return &Handler{
		runs: runs,
		log:  log.With().Str("handler", "rebalancing").Logger(),
	}
}

// HandleTrigger starts an async rebalance run for one portfolio.
// Responds 202 with the run ID, or 409 when a run is already active.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	runID, err := h.runs.Start(portfolioID)
	if err != nil {
		if errors.Is(err, domain.ErrRebalanceInProgress) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// HandleGetRun returns the current snapshot of one run for polling clients.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// HandleRunWS streams run snapshots over a websocket until the run finishes
// or the client disconnects.
func (h *Handler) HandleRunWS(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	updates, cancel, err := h.runs.Subscribe(runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Str("run_id", runID).Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case run, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}
			if err := wsjson.Write(ctx, conn, run); err != nil {
				h.log.Debug().Str("run_id", runID).Err(err).Msg("Websocket write failed")
				return
			}
		}
	}
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
