package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sarthak03dot/Chat-App/internal/blob"
	"github.com/sarthak03dot/Chat-App/internal/security"
	"github.com/sarthak03dot/Chat-App/internal/service"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the components the router exposes.
type Deps struct {
	AppName     string
	CORSOrigins []string
	Log         *slog.Logger

	Store      Pinger
	Identities *security.IdentityResolver
	Users      *service.UserService
	Groups     *service.GroupService
	Messages   *service.MessageService
	Blobs      *blob.LocalStore

	// WS serves the websocket upgrade; Metrics the prometheus scrape.
	WS      http.Handler
	Metrics http.Handler
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": d.AppName, "websocket": "/ws"})
	})
	r.Get("/health", handleHealth(d.Store))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(AuthMiddleware(d.Identities, d.Log))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", handleListUsers(d.Users, d.Log))
			r.Get("/me", handleMe())
			r.Get("/{userID}", handleGetUser(d.Users, d.Log))
			r.Post("/{userID}/block", handleBlock(d.Users, d.Log))
			r.Delete("/{userID}/block", handleUnblock(d.Users, d.Log))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", handleCreateGroup(d.Groups, d.Log))
			r.Get("/", handleListMyGroups(d.Groups, d.Log))
			r.Get("/all", handleListAllGroups(d.Groups, d.Log))
			r.Get("/{groupID}", handleGetGroup(d.Groups, d.Log))
			r.Delete("/{groupID}", handleDeleteGroup(d.Groups, d.Log))
			r.Post("/{groupID}/members", handleAddMember(d.Groups, d.Log))
			r.Get("/{groupID}/messages", handleGroupHistory(d.Messages, d.Log))
			r.Delete("/{groupID}/messages", handleClearGroup(d.Messages, d.Log))
		})

		r.Get("/messages/recent", handleRecent(d.Messages, d.Log))

		r.Route("/messages/direct/{userID}", func(r chi.Router) {
			r.Get("/", handleDirectHistory(d.Messages, d.Log))
			r.Delete("/", handleClearDirect(d.Messages, d.Log))
		})

		if d.Blobs != nil {
			r.Post("/uploads", handleUpload(d.Blobs, d.Log))
		}
	})

	if d.Blobs != nil {
		r.Get("/uploads/{filename}", handleServeUpload(d.Blobs))
	}

	// No timeout here: the connection outlives any request deadline.
	if d.WS != nil {
		r.Method(http.MethodGet, "/ws", d.WS)
	}

	return r
}

func handleHealth(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
