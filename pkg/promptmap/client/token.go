package client

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserIDFromToken reads the user_id (or sub) claim without verifying the
// signature. The server verifies; the client only needs to know who it is.
func UserIDFromToken(token string) (uuid.UUID, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse token: %w", err)
	}
	raw, _ := claims["user_id"].(string)
	if raw == "" {
		raw, _ = claims["sub"].(string)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token has no user id claim")
	}
	return id, nil
}
