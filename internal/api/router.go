package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/accountsvc/internal/api/handler"
	"github.com/mcoot/accountsvc/internal/api/middleware"
	"github.com/mcoot/accountsvc/internal/metrics"
	httpmw "github.com/mcoot/accountsvc/internal/middleware"
	"github.com/mcoot/accountsvc/internal/services/identity"
	"github.com/mcoot/accountsvc/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	IdentityService *identity.Service
	Storage         storage.Accounts
	// Metrics is optional; when nil no /metrics route is mounted
	Metrics *metrics.Metrics
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	accountHandler := handler.NewAccountHandler(cfg.IdentityService)
	healthHandler := handler.NewHealthHandler(cfg.Storage, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.IdentityService, cfg.Logger)

	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(httpmw.Logging(cfg.Logger))

	// Public account routes
	api.HandleFunc("/users", accountHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/login", accountHandler.Login).Methods(http.MethodPost)

	// Routes acting on the caller's own account
	protected := api.PathPrefix("/users").Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/current", accountHandler.Current).Methods(http.MethodGet)
	protected.HandleFunc("/current", accountHandler.Update).Methods(http.MethodPatch)
	protected.HandleFunc("/logout", accountHandler.Logout).Methods(http.MethodDelete)

	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/ready", healthHandler.Ready).Methods(http.MethodGet)

	return r
}
