package handler

import (
	"log/slog"
	"net/http"

	"launchspace/internal/launch"

	"github.com/go-chi/chi/v5"
)

// AdminHandler serves moderation endpoints. Routes are expected behind
// auth.RequireAuth and middleware.RequireAdmin.
type AdminHandler struct {
	Svc *launch.Service
	Log *slog.Logger
}

type statusReq struct {
	Status launch.Status `json:"status"`
}

func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.Svc.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type featuredReq struct {
	Featured *bool `json:"featured"`
}

func (h *AdminHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	var req featuredReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Featured == nil {
		writeError(w, r, h.Log, &launch.ValidationError{Fields: map[string]string{"featured": "required"}})
		return
	}

	sub, err := h.Svc.SetFeatured(r.Context(), chi.URLParam(r, "id"), *req.Featured)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *AdminHandler) Recount(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Recount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) SelectWinners(w http.ResponseWriter, r *http.Request) {
	wk := chi.URLParam(r, "week")
	winners, err := h.Svc.SelectWeeklyWinners(r.Context(), wk)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingResp{LaunchWeek: wk, Items: winners})
}
