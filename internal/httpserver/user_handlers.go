package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sarthak03dot/Chat-App/internal/service"
)

func handleListUsers(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := userSvc.List(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		for _, u := range users {
			// Block-lists are private to their owner.
			u.BlockedUsers = nil
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CurrentUser(r))
	}
}

func handleGetUser(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := userSvc.GetByID(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if user.ID != CurrentUser(r).ID {
			user.BlockedUsers = nil
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func handleBlock(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentUser(r)
		target := chi.URLParam(r, "userID")
		if err := userSvc.Block(r.Context(), current.ID, target); err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("user_blocked", "user", current.ID, "blocked", target)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUnblock(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentUser(r)
		target := chi.URLParam(r, "userID")
		if err := userSvc.Unblock(r.Context(), current.ID, target); err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("user_unblocked", "user", current.ID, "blocked", target)
		w.WriteHeader(http.StatusNoContent)
	}
}
