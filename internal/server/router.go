// Package server assembles the HTTP API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/auth"
	"github.com/unclebandit/campaign-panel/internal/controller"
	"github.com/unclebandit/campaign-panel/internal/handler"
	"github.com/unclebandit/campaign-panel/internal/middleware"
	"github.com/unclebandit/campaign-panel/internal/respond"
)

type Deps struct {
	Auth         *controller.AuthController
	Campaigns    *controller.CampaignController
	Progress     *handler.ProgressHandler
	Tokens       *auth.Tokens
	WorkerToken  string
	CORSOrigins  []string
	MaxBodyBytes int64 // request body cap under /api, 1 MiB when zero
	Log          zerolog.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.WorkerTokenHeader},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.RequestSize(d.MaxBodyBytes))
		r.Post("/auth/login", d.Auth.Login)

		// worker callback
		r.With(middleware.Worker(d.WorkerToken, d.Log)).Post("/progress", d.Progress.ReportProgress)

		// token checked by the handler, from the query string
		r.Get("/progress/stream", d.Progress.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Operator(d.Tokens, d.Log))
			r.Post("/leads", d.Campaigns.StartCampaign)
			r.Get("/progress", d.Campaigns.GetProgress)
			r.Post("/stop", d.Campaigns.StopCampaign)
			r.Post("/reset", d.Campaigns.ResetCampaign)
			r.Get("/campaigns/history", d.Campaigns.ListHistory)
		})
	})
	return r
}
