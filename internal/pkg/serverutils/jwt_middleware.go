package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userIDLocal = "user_id"

var (
	ErrMissingToken  = errors.New("missing token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid claims")
)

// JwtMiddleware requires a valid HMAC-signed bearer token carrying a user_id claim.
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		userID, err := authenticate(ctx, secret)
		if err != nil {
			switch {
			case errors.Is(err, ErrMissingToken):
				return NewAuthError("Missing token")
			case errors.Is(err, ErrInvalidClaims):
				return NewAuthError("Invalid claims")
			default:
				return NewAuthError("Invalid token")
			}
		}
		ctx.Locals(userIDLocal, userID.String())
		return ctx.Next()
	}
}

// OptionalJwtMiddleware sets user_id when a valid token is present and lets
// anonymous requests through. An invalid token is treated as anonymous.
func OptionalJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if userID, err := authenticate(ctx, secret); err == nil {
			ctx.Locals(userIDLocal, userID.String())
		}
		return ctx.Next()
	}
}

// UserID returns the authenticated user, if any.
func UserID(ctx *fiber.Ctx) (uuid.UUID, bool) {
	raw, ok := ctx.Locals(userIDLocal).(string)
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func authenticate(ctx *fiber.Ctx, secret string) (uuid.UUID, error) {
	tokenStr := bearerToken(ctx)
	if tokenStr == "" {
		return uuid.Nil, ErrMissingToken
	}
	return ParseToken(tokenStr, secret)
}

// bearerToken reads the Authorization header, falling back to the "token"
// query parameter for websocket upgrades.
func bearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ctx.Query("token")
}

// ParseToken validates an HS256 token and returns its user_id claim.
func ParseToken(tokenStr, secret string) (uuid.UUID, error) {
	if secret == "" {
		return uuid.Nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidClaims
	}
	raw, _ := claims["user_id"].(string)
	if raw == "" {
		raw, _ = claims["sub"].(string)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidClaims
	}
	return userID, nil
}

// SignToken issues a token for userID. Used by tests and local tooling;
// production tokens come from the external auth provider.
func SignToken(userID uuid.UUID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID.String()})
	return token.SignedString([]byte(secret))
}
