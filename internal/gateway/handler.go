package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/command"
	"github.com/drawdeck/drawdeck/internal/entrants"
	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/prizes"
	"github.com/drawdeck/drawdeck/internal/winners"
)

// Handler exposes the HTTP surface consumed by the admin console, the VIP
// button, and display clients connecting over WebSocket.
type Handler struct {
	manager  *ConnectionManager
	sessions SessionSource
	surface  *command.Surface
	entrants *entrants.App
	prizes   *prizes.App
	winners  *winners.Repository
}

func NewHandler(manager *ConnectionManager, sessions SessionSource, surface *command.Surface, entrantsApp *entrants.App, prizesApp *prizes.App, winnersRepo *winners.Repository) *Handler {
	return &Handler{
		manager:  manager,
		sessions: sessions,
		surface:  surface,
		entrants: entrantsApp,
		prizes:   prizesApp,
		winners:  winnersRepo,
	}
}

// RegisterRoutes registers all routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.handleDisplayConnection)
	mux.HandleFunc("GET /ws/stats", h.handleConnectionStats)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("GET /api/session", h.handleGetSession)
	mux.HandleFunc("POST /api/commands/select", h.handleSelectPrize)
	mux.HandleFunc("POST /api/commands/begin", h.handleBeginDraw)
	mux.HandleFunc("POST /api/commands/spin", h.handleStartSpin)
	mux.HandleFunc("POST /api/commands/stop", h.handleRequestStop)
	mux.HandleFunc("POST /api/commands/clear", h.handleClearResults)
	mux.HandleFunc("POST /api/commands/advance", h.handleAdvance)

	mux.HandleFunc("GET /api/entrants", h.handleListEntrants)
	mux.HandleFunc("POST /api/entrants", h.handleAddEntrant)
	mux.HandleFunc("POST /api/entrants/import", h.handleImportEntrants)
	mux.HandleFunc("DELETE /api/entrants/{id}", h.handleRemoveEntrant)
	mux.HandleFunc("DELETE /api/entrants", h.handleClearEntrants)

	mux.HandleFunc("GET /api/prizes", h.handleListPrizes)
	mux.HandleFunc("POST /api/prizes", h.handleCreatePrize)
	mux.HandleFunc("PATCH /api/prizes/{id}", h.handleUpdatePrize)
	mux.HandleFunc("DELETE /api/prizes/{id}", h.handleDeletePrize)

	mux.HandleFunc("GET /api/winners", h.handleListWinners)
}

func (h *Handler) handleDisplayConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.UpgradeConnection(w, r); err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

func (h *Handler) handleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"total_connections":` + strconv.Itoa(h.manager.ConnectionCount()) + `}`))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessions.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionMessage(state))
}

type prizeSelection struct {
	PrizeID uuid.UUID `json:"prize_id"`
}

func (h *Handler) handleSelectPrize(w http.ResponseWriter, r *http.Request) {
	var req prizeSelection
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.surface.SelectPrize(r.Context(), req.PrizeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "selected"})
}

func (h *Handler) handleBeginDraw(w http.ResponseWriter, r *http.Request) {
	var req prizeSelection
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.surface.BeginDraw(r.Context(), req.PrizeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleStartSpin(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.StartSpin(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "spinning"})
}

func (h *Handler) handleRequestStop(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.RequestStop(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (h *Handler) handleClearResults(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.ClearResults(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.Advance(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	_, phase, err := h.surface.Phase(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "advanced", "phase": phase})
}

func (h *Handler) handleListEntrants(w http.ResponseWriter, r *http.Request) {
	list, err := h.entrants.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleAddEntrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	entrant, err := h.entrants.Add(r.Context(), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entrant)
}

func (h *Handler) handleImportEntrants(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	added, err := h.entrants.AddBulk(r.Context(), req.Names)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (h *Handler) handleRemoveEntrant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.entrants.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearEntrants(w http.ResponseWriter, r *http.Request) {
	if err := h.entrants.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPrizes(w http.ResponseWriter, r *http.Request) {
	list, err := h.prizes.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreatePrize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Quota       int    `json:"quota"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	prize, err := h.prizes.Create(r.Context(), prizes.CreatePrizeRequest{
		Name:        req.Name,
		Description: req.Description,
		Quota:       req.Quota,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, prize)
}

func (h *Handler) handleUpdatePrize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name           *string `json:"name,omitempty"`
		Description    *string `json:"description,omitempty"`
		Quota          *int    `json:"quota,omitempty"`
		RemainingQuota *int    `json:"remaining_quota,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	prize, err := h.prizes.Update(r.Context(), id, prizes.UpdatePrizeRequest{
		Name:           req.Name,
		Description:    req.Description,
		Quota:          req.Quota,
		RemainingQuota: req.RemainingQuota,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prize)
}

func (h *Handler) handleDeletePrize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.prizes.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListWinners(w http.ResponseWriter, r *http.Request) {
	list, err := h.winners.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.WinnerRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var validationErr *command.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": validationErr.Error()})
	case errors.Is(err, prizes.ErrPrizeNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "prize not found"})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
