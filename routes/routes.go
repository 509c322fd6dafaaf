package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/adilp/bhmhockey/handlers"
	"github.com/adilp/bhmhockey/middleware"
	"github.com/adilp/bhmhockey/models"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Tournament   *handlers.TournamentHandler
	Bracket      *handlers.BracketHandler
	Match        *handlers.MatchHandler
	Event        *handlers.EventHandler
	Registration *handlers.RegistrationHandler
	Notification *handlers.NotificationHandler
	WebSocket    *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticator(jwtSecret)
	organizerOnly := middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin)

	router.Post("/auth/signup", h.Auth.SignUpHandler)
	router.Post("/auth/signin", h.Auth.SignInHandler)
	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/auth/me", h.Auth.MeHandler)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.ListHandler)
		r.Get("/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/{tournamentID}/bracket", h.Bracket.GetHandler)
		r.Get("/{tournamentID}/matches", h.Match.ListByTournamentHandler)
		r.Get("/{tournamentID}/standings", h.Tournament.StandingsHandler)
		r.Get("/{tournamentID}/registrations", h.Registration.TournamentQueueHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{tournamentID}/registrations", h.Registration.RegisterForTournamentHandler)

			r.Group(func(r chi.Router) {
				r.Use(organizerOnly)

				r.Post("/", h.Tournament.CreateHandler)
				r.Patch("/{tournamentID}", h.Tournament.UpdateHandler)
				r.Delete("/{tournamentID}", h.Tournament.DeleteHandler)
				r.Post("/{tournamentID}/actions/{action}", h.Tournament.ActionHandler)
				r.Put("/{tournamentID}/logo", h.Tournament.UploadLogoHandler)
				r.Get("/{tournamentID}/audit-log", h.Tournament.AuditLogHandler)
				r.Post("/{tournamentID}/bracket", h.Bracket.GenerateHandler)
			})
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", h.Match.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)
			r.Post("/{matchID}/result", h.Match.ReportResultHandler)
		})
	})

	router.Route("/events", func(r chi.Router) {
		r.Get("/", h.Event.ListHandler)
		r.Get("/{eventID}", h.Event.GetByIDHandler)
		r.Get("/{eventID}/registrations", h.Registration.EventQueueHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{eventID}/registrations", h.Registration.RegisterForEventHandler)

			r.Group(func(r chi.Router) {
				r.Use(organizerOnly)

				r.Post("/", h.Event.CreateHandler)
				r.Patch("/{eventID}", h.Event.UpdateHandler)
				r.Post("/{eventID}/cancel", h.Event.CancelHandler)
				r.Delete("/{eventID}", h.Event.DeleteHandler)
			})
		})
	})

	router.Route("/registrations", func(r chi.Router) {
		r.Use(authenticate)

		r.Delete("/{registrationID}", h.Registration.CancelHandler)
		r.Post("/{registrationID}/payment", h.Registration.MarkPaidHandler)
	})

	router.Route("/notifications", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", h.Notification.InboxHandler)
		r.Post("/{notificationID}/read", h.Notification.MarkReadHandler)
		r.Post("/push-tokens", h.Notification.RegisterPushTokenHandler)
		r.Delete("/push-tokens", h.Notification.UnregisterPushTokenHandler)
	})

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.SubscribeTournamentHandler)

	return router
}
