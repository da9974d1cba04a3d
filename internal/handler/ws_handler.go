package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"callbridge/internal/app/chat"
	"callbridge/internal/pkg/auth/jwt"
	"callbridge/internal/pkg/errs"
	"callbridge/internal/pkg/limiter"
	"callbridge/internal/pkg/logx"
	"callbridge/internal/pkg/resp"
)

// HandleWebSocket authenticates the chat session token, upgrades the
// connection, and runs the read/write pumps until the client goes away.
//
// The token travels as a query parameter because browser WebSocket clients
// cannot set an Authorization header. The first server frame is the
// identity event carrying the participant id resolved from the token.
func HandleWebSocket(upgrader websocket.Upgrader, joinLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	handleConnection := func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("Rejected WebSocket with invalid session token", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if payload.Purpose != jwt.PurposeWS {
			logx.Warn("Rejected WebSocket token with wrong purpose", "purpose", payload.Purpose)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			logx.Error(err, "WebSocket upgrade failed")
			return
		}

		client := chat.NewClient(deps.Hub, conn, chat.Participant{
			ID:       payload.ID,
			Nickname: payload.Nickname,
		})

		go client.WritePump()

		// Clients wait for this frame before fetching their media token.
		if err := client.SendEvent(chat.Event{
			Type:   chat.EventIdentity,
			UserID: payload.ID,
		}); err != nil {
			logx.Error(err, "Failed to queue identity frame", "user_id", payload.ID)
		}

		logx.Info("WebSocket client connected.", "user_id", payload.ID)

		client.ReadPump()
	}

	rateLimited := joinLimiter.Middleware(http.HandlerFunc(handleConnection))

	return rateLimited.ServeHTTP
}
