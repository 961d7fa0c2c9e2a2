package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatr/internal/app/state"
	"chatr/internal/pkg/errs"
	"chatr/internal/pkg/resp"
)

// HandleListChats returns {"chats": {<id>: Chat}}.
func HandleListChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chats, err := deps.Store.ListChats(r.Context())
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, err))
			return
		}
		resp.RespondJSON(w, r, http.StatusOK, map[string]any{"chats": chats})
	}
}

// HandleGetChat returns a single chat.
func HandleGetChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chat, err := deps.Store.GetChat(r.Context(), chi.URLParam(r, "chatId"))
		switch {
		case errors.Is(err, state.ErrNotFound):
			resp.RespondError(w, r, errs.NewError(errs.ErrChatNotFound))
			return
		case err != nil:
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, err))
			return
		}
		resp.RespondJSON(w, r, http.StatusOK, chat)
	}
}

// HandleListUsers returns {"users": {<id>: User}}.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := deps.Store.ListUsers(r.Context())
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, err))
			return
		}
		resp.RespondJSON(w, r, http.StatusOK, map[string]any{"users": users})
	}
}

// HandleGetUser returns the presence record of one online user.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		user, err := deps.Store.GetUser(r.Context(), userID)
		switch {
		case errors.Is(err, state.ErrNotFound):
			resp.RespondError(w, r, errs.NewError(errs.ErrUserOffline, userID))
			return
		case err != nil:
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, err))
			return
		}
		resp.RespondJSON(w, r, http.StatusOK, user)
	}
}
