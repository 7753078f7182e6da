package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/authctx"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminRequired admits a request when any of these hold:
// 1. the X-Admin-Token header matches ADMIN_TOKEN
// 2. the JWT email or subject is in ADMIN_EMAILS / ADMIN_USER_IDS
// 3. the user row has the admin role
func AdminRequired(db *gorm.DB, cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		if viaToken, _ := c.Locals(adminTokenLocal).(bool); viaToken {
			return c.Next()
		}

		userID, err := authctx.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if contains(adminEmails, authctx.GetEmail(c)) || contains(adminUserIDs, userID.String()) {
			return c.Next()
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).Select("id", "role").First(&user, "id = ?", userID).Error; err == nil && user.IsAdmin() {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

const adminTokenLocal = "admin_token"

// AdminTokenOrJWT lets dashboard scripts in with X-Admin-Token and sends
// everyone else through JWT verification.
func AdminTokenOrJWT(cfg *config.Config) fiber.Handler {
	jwtHandler := JWTProtected(cfg)
	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" && c.Get("X-Admin-Token") == cfg.AdminToken {
			c.Locals(adminTokenLocal, true)
			return c.Next()
		}
		return jwtHandler(c)
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	if val == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, val) {
			return true
		}
	}
	return false
}
