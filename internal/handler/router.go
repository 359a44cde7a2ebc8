package handler

import (
	"net/http"

	"vaultx/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type Routes struct {
	Auth  *AuthHandler
	Users *UserHandler
	Blobs *BlobHandler

	JWTSecret string
	Logger    zerolog.Logger
	// AuthLimiter throttles the unauthenticated auth endpoints. Nil disables it.
	AuthLimiter *middleware.RateLimiter
	CORS        func(http.Handler) http.Handler
}

func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(rt.Logger))
	if rt.CORS != nil {
		r.Use(rt.CORS)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	public := api.PathPrefix("/auth").Subrouter()
	if rt.AuthLimiter != nil {
		public.Use(rt.AuthLimiter.Middleware())
	}
	public.HandleFunc("/register", rt.Auth.Register).Methods("POST", "OPTIONS")
	public.HandleFunc("/login", rt.Auth.Login).Methods("POST", "OPTIONS")
	public.HandleFunc("/refresh", rt.Auth.Refresh).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(rt.JWTSecret))

	protected.HandleFunc("/auth/logout", rt.Auth.Logout).Methods("POST", "OPTIONS")
	protected.HandleFunc("/users/me", rt.Users.GetMe).Methods("GET", "OPTIONS")

	protected.HandleFunc("/blobs/delete", rt.Blobs.Delete).Methods("POST", "OPTIONS")
	protected.HandleFunc("/blobs/{user}/{shard}", rt.Blobs.Put).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/blobs/{user}/{shard}", rt.Blobs.Get).Methods("GET", "OPTIONS")

	r.HandleFunc("/health", healthHandler).Methods("GET")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"vaultx-server"}`))
}
