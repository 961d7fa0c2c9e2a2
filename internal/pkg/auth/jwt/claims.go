package jwt

import "github.com/golang-jwt/jwt"

// Token scopes.
const (
	// ScopeClient authorizes a WebSocket session for UserID.
	ScopeClient = "client"

	// ScopeWebhook authorizes a delivery to the event endpoint.
	ScopeWebhook = "webhook"
)

// Payload is the claim set of every chatr token.
type Payload struct {
	jwt.StandardClaims

	// UserID is the identity asserted by the external identity provider. Empty for webhook tokens.
	UserID string `json:"userId,omitempty"`

	// Scope limits what the token may be used for.
	Scope string `json:"scope"`
}
