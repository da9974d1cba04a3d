package jwt

import (
	"context"
	"net/http"
	"strings"

	"callbridge/internal/pkg/errs"
	"callbridge/internal/pkg/logx"
	"callbridge/internal/pkg/resp"
)

// contextKey avoids collisions with other packages' context values.
type contextKey string

const (
	// ContextAuthPayloadKey stores the parsed Payload in the request context.
	ContextAuthPayloadKey contextKey = "auth_payload"
)

// RequireAuth rejects requests without a valid access-purpose bearer token
// with 401. On success the Payload is injected into the request context.
func RequireAuth(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			payload, err := ParseToken(parts[1], secretKey)
			if err != nil {
				logx.Warn("Rejected request with invalid or expired bearer token", "error", err)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			if payload.Purpose != PurposeAccess {
				logx.Warn("Rejected bearer token with wrong purpose", "purpose", payload.Purpose)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPayloadFromContext extracts the authenticated Payload, or nil if the
// request did not pass RequireAuth.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)

	if !ok {
		return nil
	}

	return payload
}
