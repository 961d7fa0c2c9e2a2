package handler

import (
	"net/http"
	"net/url"

	"chatr/internal/pkg/auth/jwt"
	"chatr/internal/pkg/errs"
	"chatr/internal/pkg/logx"
	"chatr/internal/pkg/resp"
)

// HandleGetToken issues a client token for ?userId= and the socket URL to use it with.
// Identity is asserted upstream by the identity provider in front of this service.
func HandleGetToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMissingUserID))
			return
		}

		token, err := jwt.GenerateToken(&jwt.Payload{UserID: userID, Scope: jwt.ScopeClient}, deps.Config.JWTSecret, jwt.ClientAccessExpiration)
		if err != nil {
			logx.Error(err, "Failed to sign client token", "user_id", userID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondJSON(w, r, http.StatusOK, map[string]string{
			"url":   socketURL(r, token),
			"token": token,
		})
	}
}

// socketURL builds the /ws address on the host the caller reached.
func socketURL(r *http.Request, token string) string {
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     "/ws",
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	return u.String()
}
