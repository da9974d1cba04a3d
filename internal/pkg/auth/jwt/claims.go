package jwt

import "github.com/golang-jwt/jwt"

// Token purposes. The chat WebSocket only accepts PurposeWS tokens and the
// REST API only accepts PurposeAccess tokens, so leaking one credential
// never grants the other surface.
const (
	PurposeAccess = "access"
	PurposeWS     = "ws"
)

// Payload defines the claims carried by application-issued JWTs.
type Payload struct {
	// StandardClaims embeds Exp, Iat, and Iss, used for validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the participant's unique identifier.
	ID string `json:"id"`

	// Nickname is the participant's display name.
	Nickname string `json:"nickname,omitempty"`

	// Purpose scopes the token to one surface: "access" or "ws".
	Purpose string `json:"purpose"`
}
