package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/service"
)

type groupCreateRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type memberAddRequest struct {
	UserID string `json:"user_id"`
}

func handleCreateGroup(groupSvc *service.GroupService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req groupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, log, domain.Invalid("invalid JSON body"))
			return
		}
		g, err := groupSvc.Create(r.Context(), CurrentUser(r).ID, req.Name, req.Members)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

func handleListMyGroups(groupSvc *service.GroupService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := groupSvc.ListForUser(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleListAllGroups(groupSvc *service.GroupService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := groupSvc.ListAll(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleGetGroup(groupSvc *service.GroupService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := groupSvc.Get(r.Context(), chi.URLParam(r, "groupID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if !g.HasMember(CurrentUser(r).ID) {
			writeError(w, log, domain.Forbidden("not a member of this group"))
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func handleAddMember(groupSvc *service.GroupService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberAddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, log, domain.Invalid("invalid JSON body"))
			return
		}
		g, err := groupSvc.AddMember(r.Context(), chi.URLParam(r, "groupID"), CurrentUser(r).ID, req.UserID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func handleDeleteGroup(groupSvc *service.GroupService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := chi.URLParam(r, "groupID")
		if err := groupSvc.Delete(r.Context(), groupID, CurrentUser(r).ID); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
