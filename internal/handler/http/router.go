package http

import (
	"log/slog"

	"github.com/codetrial/broker-backend-go/internal/handler/http/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// Handlers bundles the route handlers the router mounts.
type Handlers struct {
	Candidate  CandidateHandler
	Credential CredentialHandler
	Seed       SeedHandler
	Assessment AssessmentHandler
	Invitation InvitationHandler
}

func NewRouter(logger *slog.Logger, ja *jwtauth.JWTAuth, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	r.Route("/api/v1", func(r chi.Router) {

		// Candidate flow, keyed by start-link token
		r.Route("/start/{token}", func(r chi.Router) {
			r.Get("/", h.Candidate.StartInfo)
			r.Post("/", h.Candidate.Start)
		})
		r.Post("/submit/{token}", h.Candidate.Submit)

		// Git credential helper endpoint
		r.Post("/credentials/exchange", h.Credential.Exchange)

		// Admin API
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(ja))
			r.Use(middleware.AuthRequired(ja))
			r.Use(middleware.AdminOnly)

			r.Route("/seeds", func(r chi.Router) {
				r.Get("/", h.Seed.List)
				r.Post("/", h.Seed.Create)
				r.Get("/{id}", h.Seed.GetByID)
				r.Post("/{id}/refresh-sha", h.Seed.RefreshSHA)
			})

			r.Route("/assessments", func(r chi.Router) {
				r.Get("/", h.Assessment.List)
				r.Post("/", h.Assessment.Create)
				r.Get("/{id}", h.Assessment.GetByID)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Post("/", h.Invitation.Create)
				r.Get("/{id}", h.Invitation.GetByID)
				r.Post("/{id}/revoke", h.Invitation.Revoke)
			})
		})
	})

	return r
}
