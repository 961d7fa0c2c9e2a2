package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatr/internal/pkg/auth/jwt"
	"chatr/internal/pkg/errs"
	"chatr/internal/pkg/logx"
	"chatr/internal/pkg/resp"
)

// HandleWebSocket upgrades an authenticated request and serves the connection until it closes.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			tokenString = jwt.BearerToken(r)
		}
		if tokenString == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseScoped(tokenString, deps.Config.JWTSecret, jwt.ScopeClient)
		if err != nil {
			logx.Warn("WebSocket request rejected: invalid token", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "user_id", payload.UserID)
			return
		}

		logx.Info("WebSocket connection established", "user_id", payload.UserID)

		deps.Hub.Serve(conn, payload.UserID, time.Unix(payload.ExpiresAt, 0))
	}
}
