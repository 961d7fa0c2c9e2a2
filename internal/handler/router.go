/*
Package handler provides the HTTP surface of the chatr server: the webhook event
endpoint, the REST read surface, token issuing, the WebSocket upgrade, health and metrics.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatr/internal/configs"
	"chatr/internal/pkg/auth/jwt"
	"chatr/internal/pkg/errs"
	"chatr/internal/pkg/limiter"
	"chatr/internal/pkg/logx"
	"chatr/internal/pkg/metrics"
	"chatr/internal/pkg/resp"
)

const (
	TokenRate   = 0.5
	TokenBurst  = 10
	SocketRate  = 0.2
	SocketBurst = 5
)

// Router sets up the routing table. The returned stop function releases the rate limiters.
func Router(deps *AppDeps) (http.Handler, func()) {
	tokenLimiter := limiter.NewIPRateLimiter(rate.Limit(TokenRate), TokenBurst)
	socketLimiter := limiter.NewIPRateLimiter(rate.Limit(SocketRate), SocketBurst)
	stop := func() {
		tokenLimiter.Stop()
		socketLimiter.Stop()
	}

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	r.Use(newCORS(deps.Config).Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "chatr",
			"store":   deps.Config.StoreBackend,
		})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(api chi.Router) {
		api.Options("/eventHandler", HandleEventValidation())
		api.Group(func(hook chi.Router) {
			if deps.Config.WebhookAuth {
				hook.Use(jwt.RequireScope(deps.Config.JWTSecret, jwt.ScopeWebhook))
			}
			hook.Post("/eventHandler", HandleEvent(deps))
		})

		api.Get("/chats", HandleListChats(deps))
		api.Get("/chats/{chatId}", HandleGetChat(deps))
		api.Get("/users", HandleListUsers(deps))
		api.Get("/users/{userId}", HandleGetUser(deps))

		api.With(tokenLimiter.Middleware).Get("/token", HandleGetToken(deps))
	})

	r.With(socketLimiter.Middleware).Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r, stop
}

func newCORS(cfg *configs.AppConfig) *cors.Cors {
	corsAllowedOrigins := []string{}
	if cfg.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(cfg.AllowedOrigins) > 0 {
		corsAllowedOrigins = cfg.AllowedOrigins
	}

	return cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			headerEventName, headerUserID, headerRequestOrigin,
		},
		ExposedHeaders:   []string{headerAllowedOrigin},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Unconfigured answers every request with ErrNotConfigured. It is served in place of
// Router when required settings are missing, so callers see a 500 instead of a refused port.
func Unconfigured(cause *configs.ConfigError) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logx.RequestLogger())

	notConfigured := func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errs.NewError(errs.ErrNotConfigured, cause.Key))
	}
	r.NotFound(notConfigured)
	r.MethodNotAllowed(notConfigured)

	return r
}
