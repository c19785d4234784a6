// Package middleware provides the HTTP middleware shared by webapi routes.
// Identity is an external concern: the core only needs the authenticated
// user id as an opaque value for ownership checks and audit attribution.
package middleware

import (
	"errors"
	"strings"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/config"
)

// ErrNoIdentity is returned when the request carries no usable identity.
var ErrNoIdentity = errors.New("missing user identity")

// JwtProtected returns the auth middleware verifying bearer tokens with the
// configured secret.
func JwtProtected(cfg config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(cfg.Secret)},
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.Contains(err.Error(), "missing or malformed") ||
		strings.Contains(err.Error(), "Missing or malformed") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT"})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT"})
}

// CurrentUserID extracts the authenticated user's id from the verified
// token in the request context.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, ErrNoIdentity
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrNoIdentity
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, ErrNoIdentity
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrNoIdentity
	}
	return userID, nil
}
