package http

import (
	"log/slog"
	"net/http"

	"launchspace/internal/auth"
	"launchspace/internal/config"
	"launchspace/internal/http/handler"
	mw "launchspace/internal/http/middleware"
	"launchspace/internal/launch"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Config   config.Config
	JWT      *auth.JWT
	Accounts *auth.Accounts
	Svc      *launch.Service
	Log      *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(log))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	requireAuth := auth.RequireAuth(d.JWT)
	optionalAuth := auth.OptionalAuth(d.JWT)

	ah := &handler.AuthHandler{Accounts: d.Accounts, Log: log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{Accounts: d.Accounts, Svc: d.Svc, Log: log}
	r.Route("/me", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", me.Me)
		r.Get("/apps", me.Apps)
	})

	apps := &handler.AppsHandler{Svc: d.Svc, IsAdmin: cfg.IsAdmin, Log: log}
	r.Route("/apps", func(r chi.Router) {
		r.Get("/", apps.List)
		r.With(requireAuth).Post("/", apps.Create)

		// {key} is the slug on reads and votes, the id on owner edits.
		r.With(optionalAuth).Get("/{key}", apps.Get)
		r.With(optionalAuth).Post("/{key}", apps.Action)
		r.With(requireAuth).Put("/{key}", apps.Update)
		r.With(requireAuth).Delete("/{key}", apps.Delete)
		r.With(requireAuth).Delete("/{key}/vote", apps.RetractVote)
	})

	rank := &handler.RankingHandler{Svc: d.Svc, Log: log}
	r.Get("/ranking/current", rank.Current)
	r.Get("/weeks/{week}/ranking", rank.Week)
	r.Get("/weeks/{week}/winners", rank.Winners)

	admin := &handler.AdminHandler{Svc: d.Svc, Log: log}
	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(mw.RequireAdmin(cfg.IsAdmin))

		r.Post("/apps/{id}/status", admin.SetStatus)
		r.Post("/apps/{id}/featured", admin.SetFeatured)
		r.Post("/apps/{id}/recount", admin.Recount)
		r.Post("/weeks/{week}/winners", admin.SelectWinners)
	})

	return r
}
