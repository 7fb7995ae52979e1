package handler

import (
	"log/slog"
	"net/http"

	"launchspace/internal/launch"

	"github.com/go-chi/chi/v5"
)

type RankingHandler struct {
	Svc *launch.Service
	Log *slog.Logger
}

type rankingResp struct {
	LaunchWeek string                    `json:"launchWeek"`
	Items      []launch.RankedSubmission `json:"items"`
}

type winnersResp struct {
	LaunchWeek string              `json:"launchWeek"`
	Winners    []launch.Submission `json:"winners"`
}

func (h *RankingHandler) Current(w http.ResponseWriter, r *http.Request) {
	wk := h.Svc.CurrentWeek()
	items, err := h.Svc.CurrentWeekRanking(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingResp{LaunchWeek: wk, Items: items})
}

func (h *RankingHandler) Week(w http.ResponseWriter, r *http.Request) {
	wk := chi.URLParam(r, "week")
	items, err := h.Svc.WeekRanking(r.Context(), wk)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingResp{LaunchWeek: wk, Items: items})
}

func (h *RankingHandler) Winners(w http.ResponseWriter, r *http.Request) {
	wk := chi.URLParam(r, "week")
	subs, err := h.Svc.Winners(r.Context(), wk)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, winnersResp{LaunchWeek: wk, Winners: subs})
}
