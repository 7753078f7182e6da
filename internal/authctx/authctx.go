// Package authctx reads the authenticated principal that the JWT middleware
// stores in fiber locals.
package authctx

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrNoPrincipal = errors.New("no authenticated user in context")

func claims(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, ErrNoPrincipal
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return mc, nil
}

// GetUserID extracts the user UUID from the sub claim.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	mc, err := claims(c)
	if err != nil {
		return uuid.Nil, err
	}
	sub, ok := mc["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}
	return uuid.Parse(sub)
}

// GetEmail returns the email claim, or "" when absent.
func GetEmail(c *fiber.Ctx) string {
	mc, err := claims(c)
	if err != nil {
		return ""
	}
	email, _ := mc["email"].(string)
	return email
}
