// internal/trade/handler.go
package trade

import (
	"encoding/json"
	"errors"
	"net/http"

	"bookswap/internal/auth"
	"bookswap/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the trade endpoints. The caller's identity must already be
// in the request context (auth middleware).
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Put("/mark-seen", h.HandleMarkSeen)
	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}", h.HandleUpdateStatus)
	r.Put("/{id}/complete", h.HandleComplete)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		BookOfferedID   uuid.UUID `json:"book_offered_id"`
		BookRequestedID uuid.UUID `json:"book_requested_id"`
		Message         string    `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BookOfferedID == uuid.Nil || req.BookRequestedID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "book_offered_id and book_requested_id are required")
		return
	}

	trade, err := h.service.Create(r.Context(), actorID, req.BookOfferedID, req.BookRequestedID, req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, trade)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	views, err := h.service.ListForUser(r.Context(), actorID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	tradeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trade ID")
		return
	}

	view, err := h.service.Get(r.Context(), tradeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if actorID != view.InitiatorID && actorID != view.ReceiverID {
		respondError(w, http.StatusForbidden, "not a participant")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	tradeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trade ID")
		return
	}

	var req struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	trade, err := h.service.UpdateStatus(r.Context(), tradeID, actorID, req.Status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trade)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	tradeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trade ID")
		return
	}

	trade, err := h.service.Complete(r.Context(), tradeID, actorID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trade)
}

func (h *Handler) HandleMarkSeen(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	if _, err := h.service.MarkSeen(r.Context(), actorID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError maps the engine's typed failures onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
