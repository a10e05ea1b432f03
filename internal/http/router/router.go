package router

import (
	"net/http"

	"phatsurf/internal/http/handlers"
	"phatsurf/internal/http/middleware"
	"phatsurf/internal/http/respond"
	"phatsurf/internal/logging"
	"phatsurf/internal/security"

	"github.com/gorilla/mux"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Users    handlers.UserStore
	Sessions *security.SessionStore
	Verifier handlers.PasswordVerifier
	Pages    handlers.Renderer
	Log      logging.Logger
	// CSRF guards the HTML form routes; nil leaves them unguarded.
	CSRF func(http.Handler) http.Handler
}

func Setup(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recover(d.Log, d.Sessions), middleware.Logger(d.Log))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(d.Users, d.Sessions, d.Verifier, d.Pages, d.Log)
	userHandler := handlers.NewUserHandler(d.Users, d.Log)
	pageHandler := handlers.NewPageHandler(d.Sessions, d.Pages, d.Log)
	auth := middleware.NewAuth(d.Sessions, d.Users, d.Log)

	r.HandleFunc("/", pageHandler.Home).Methods(http.MethodGet)
	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	forms := r.NewRoute().Subrouter()
	if d.CSRF != nil {
		forms.Use(d.CSRF)
	}
	forms.HandleFunc("/register", authHandler.ShowRegister).Methods(http.MethodGet)
	forms.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	forms.HandleFunc("/login", authHandler.ShowLogin).Methods(http.MethodGet)
	forms.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	// the legacy profile endpoint predates authentication
	r.HandleFunc("/users", userHandler.CreateUser).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(auth.RequireAuth)
	protected.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodGet, http.MethodPost)
	protected.HandleFunc("/dashboard", pageHandler.Dashboard).Methods(http.MethodGet)
	protected.HandleFunc("/profile", userHandler.Profile).Methods(http.MethodGet)
	protected.HandleFunc("/users", userHandler.ListUsers).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", userHandler.GetUser).Methods(http.MethodGet)

	return r
}
