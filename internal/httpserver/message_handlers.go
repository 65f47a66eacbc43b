package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sarthak03dot/Chat-App/internal/service"
)

// handleDirectHistory returns the conversation with {userID}, oldest first.
func handleDirectHistory(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		msgs, err := msgSvc.DirectHistory(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "userID"), limit)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleGroupHistory(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		msgs, err := msgSvc.GroupHistory(r.Context(), chi.URLParam(r, "groupID"), CurrentUser(r).ID, limit)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// handleClearDirect deletes the whole conversation for both participants.
func handleClearDirect(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentUser(r)
		other := chi.URLParam(r, "userID")
		n, err := msgSvc.ClearDirect(r.Context(), current.ID, other)
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("conversation_cleared", "user", current.ID, "other", other, "deleted", n)
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}

// handleRecent lists the caller's conversations with their latest message.
func handleRecent(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		chats, err := msgSvc.Recent(r.Context(), CurrentUser(r).ID, limit)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, chats)
	}
}

func handleClearGroup(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentUser(r)
		groupID := chi.URLParam(r, "groupID")
		n, err := msgSvc.ClearGroup(r.Context(), groupID, current.ID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("group_messages_cleared", "user", current.ID, "group", groupID, "deleted", n)
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}
