package handler

import (
	"log/slog"
	"net/http"

	"launchspace/internal/auth"
	"launchspace/internal/launch"
)

type MeHandler struct {
	Accounts *auth.Accounts
	Svc      *launch.Service
	Log      *slog.Logger
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	u, err := h.Accounts.Me(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Apps lists the caller's own submissions in every status.
func (h *MeHandler) Apps(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	p, ok := parsePage(w, r)
	if !ok {
		return
	}
	page, err := h.Svc.ListSubmissions(r.Context(), launch.Filter{SubmittedBy: uid}, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
