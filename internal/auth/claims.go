package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// AgentID is always present; Role is carried by access tokens only.
type Claims struct {
	jwt.RegisteredClaims

	AgentID   string    `json:"agent_id"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
}
