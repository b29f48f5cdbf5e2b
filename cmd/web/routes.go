package main

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/AdamBeresnev/courtside/internal/httputil"
	"github.com/AdamBeresnev/courtside/internal/middleware"
	"github.com/AdamBeresnev/courtside/internal/service"
	"github.com/AdamBeresnev/courtside/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth/gothic"
)

type application struct {
	db             *sqlx.DB
	sessionManager *scs.SessionManager
	jwtSecret      []byte
	logger         *slog.Logger

	users         *service.UserService
	tournaments   *service.TournamentService
	entries       *service.EntryService
	checkin       *service.CheckinService
	matches       *service.MatchService
	scoring       *service.ScoringService
	permissions   *service.PermissionService
	notifications *service.NotificationService
}

func newApplication(database *sqlx.DB, sessionManager *scs.SessionManager, jwtSecret []byte, logger *slog.Logger) *application {
	tournamentStore := store.NewTournamentStore(database)
	matchStore := store.NewMatchStore(database)
	pointStore := store.NewPointStore(database)
	permissionStore := store.NewPermissionStore(database)
	entryStore := store.NewEntryStore(database)
	notificationStore := store.NewNotificationStore(database)

	userStore := store.NewUserStore(database)

	permissions := service.NewPermissionService(database, permissionStore, matchStore, userStore)
	propagator := service.NewPropagator(database, matchStore, tournamentStore, permissionStore, notificationStore, logger)

	return &application{
		db:             database,
		sessionManager: sessionManager,
		jwtSecret:      jwtSecret,
		logger:         logger,

		users:         service.NewUserService(database, userStore),
		tournaments:   service.NewTournamentService(database, tournamentStore, matchStore, permissionStore, permissions),
		entries:       service.NewEntryService(database, entryStore, tournamentStore, permissions),
		checkin:       service.NewCheckinService(database, entryStore, tournamentStore, permissions),
		matches:       service.NewMatchService(database, matchStore, pointStore, permissions, permissionStore, notificationStore, propagator, logger),
		scoring:       service.NewScoringService(database, matchStore, pointStore, permissions),
		permissions:   permissions,
		notifications: service.NewNotificationService(notificationStore),
	}
}

func (app *application) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(corsOptions(allowedOrigins)))
	r.Use(app.sessionManager.LoadAndSave)
	r.Use(middleware.Authenticate(app.sessionManager, app.jwtSecret))

	r.Get("/healthz", app.health)

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		gothic.BeginAuthHandler(w, withProvider(r))
	})
	r.Get("/auth/{provider}/callback", app.authCallback)
	r.Post("/logout", app.logout)

	r.Get("/tournaments/{id}", app.getTournament)
	r.Get("/matches/{id}", app.getMatch)
	r.Get("/matches/{id}/points", app.listPoints)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/me", app.me)
		r.Post("/auth/token", app.issueToken)

		r.Post("/teams", app.createTeam)

		r.Get("/tournaments", app.listTournaments)
		r.Post("/tournaments", app.createTournament)
		r.Post("/tournaments/{id}/publish", app.publishTournament)
		r.Post("/tournaments/{id}/finish", app.finishTournament)
		r.Post("/tournaments/{id}/entries/{entryID}/checkin", app.checkIn)
		r.Put("/tournaments/{id}/entries/{entryID}/active", app.setEntryActive)

		r.Post("/matches/{id}/status", app.updateMatchStatus)
		r.Post("/matches/{id}/points", app.submitPoint)
		r.Post("/matches/{id}/points/undo", app.undoPoint)
		r.Put("/matches/{id}/score", app.overrideScore)
		r.Get("/matches/{id}/audits", app.listAudits)
		r.Post("/matches/{id}/finish", app.finishMatch)
		r.Post("/matches/{id}/confirm", app.confirmMatch)
		r.Post("/matches/{id}/revert", app.revertMatch)
		r.Post("/matches/{id}/umpire", app.assignUmpire)
		r.Post("/matches/{id}/court", app.assignCourt)
		r.Post("/matches/{id}/order", app.submitOrder)

		r.Get("/permissions", app.listPermissions)
		r.Post("/permissions", app.grantPermission)
		r.Delete("/permissions/{id}", app.revokePermission)

		r.Get("/notifications", app.listNotifications)
		r.Post("/notifications/{id}/read", app.markNotificationRead)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "route not found", nil)
	})

	return r
}

// corsOptions sends session cookies cross-origin only to origins listed by
// name. A wildcard, or no list at all, allows any origin without credentials.
func corsOptions(allowedOrigins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return opts
}

// withProvider copies the chi route parameter into the query string, where
// gothic looks for the provider name first.
func withProvider(r *http.Request) *http.Request {
	q := r.URL.Query()
	q.Set("provider", chi.URLParam(r, "provider"))
	r.URL.RawQuery = q.Encode()
	return r
}
