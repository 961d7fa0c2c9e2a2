package handler

import (
	"net/http"

	"chatr/internal/app/events"
	"chatr/internal/pkg/errs"
	"chatr/internal/pkg/logx"
	"chatr/internal/pkg/req"
	"chatr/internal/pkg/resp"
)

// Webhook delivery headers.
const (
	headerEventName     = "ce-eventname"
	headerUserID        = "ce-userid"
	headerRequestOrigin = "WebHook-Request-Origin"
	headerAllowedOrigin = "WebHook-Allowed-Origin"
)

// HandleEventValidation answers the delivery system's abuse-protection handshake by
// echoing the requesting origin back unmodified.
func HandleEventValidation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get(headerRequestOrigin)
		if origin == "" {
			logx.Warn("Webhook validation request without origin")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		w.Header().Set(headerAllowedOrigin, origin)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleEvent dispatches one webhook delivery. Every event the core can make sense of,
// and every one it cannot, is acknowledged with 200; only store failures return 500 so
// the delivery system retries them.
func HandleEvent(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, customErr := req.ReadBody(w, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		env := events.Envelope{
			EventName:    r.Header.Get(headerEventName),
			OriginUserID: r.Header.Get(headerUserID),
			Body:         body,
		}

		res, err := deps.Dispatcher.Dispatch(r.Context(), env)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, err))
			return
		}

		resp.RespondJSON(w, r, http.StatusOK, map[string]any{"status": res.Status})
	}
}
