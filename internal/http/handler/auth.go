package handler

import (
	"log/slog"
	"net/http"

	"launchspace/internal/auth"
)

type AuthHandler struct {
	Accounts *auth.Accounts
	Log      *slog.Logger
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if !decodeJSON(w, r, &req) {
		return
	}

	token, u, err := h.Accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResp{Token: token, User: u})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if !decodeJSON(w, r, &req) {
		return
	}

	token, u, err := h.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResp{Token: token, User: u})
}
