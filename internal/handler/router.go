/*
Package handler provides the HTTP handlers and routing setup for the
CallBridge server.

The router applies logging, CORS, and IP rate limiting before delegating
to the REST handlers and the chat WebSocket upgrade.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"callbridge/internal/pkg/auth/jwt"
	"callbridge/internal/pkg/limiter"
	"callbridge/internal/pkg/logx"
	"callbridge/internal/pkg/resp"
)

const (
	CreateRate  = 0.05
	CreateBurst = 2
	JoinRate    = 0.2
	JoinBurst   = 5
)

// Router builds the application's routing table: IP rate limiters, CORS,
// global middleware, REST routes, and the WebSocket endpoint.
func Router(deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst)
	joinLimiter := limiter.NewIPRateLimiter(rate.Limit(JoinRate), JoinBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
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

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "CallBridge Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Post("/auth/register", HandleRegister(deps))
	r.Post("/auth/login", HandleLogin(deps))

	r.Group(func(api chi.Router) {
		api.Use(jwt.RequireAuth(deps.Config.JWTSecret))

		api.Get("/auth/ws-token", HandleWSToken(deps))

		rateLimitedCreate := createLimiter.Middleware(HandleCreateRoom(deps))
		api.Post("/create-room", rateLimitedCreate.ServeHTTP)
		api.Get("/room/{slug}", HandleGetRoom(deps))
		api.Delete("/room/{slug}", HandleDeleteRoom(deps))

		api.Get("/livekit/token", HandleLiveKitToken(deps))

		if deps.RoomService != nil {
			api.Get("/livekit/participants", HandleListParticipants(deps))
		}

		if deps.StorageService != nil {
			api.Post("/file/presign-upload", HandlePresignUpload(deps))
			api.Get("/file/presign-download", HandlePresignDownload(deps))
		}
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, joinLimiter, deps))

	return r
}
