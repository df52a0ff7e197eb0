package middleware

import (
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"Plan2Tasks/Models"
)

// JWTSecret returns the session signing key.
func JWTSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("plan2tasks-dev-secret")
}

// Verify authenticates the request either from the session cookie or from an
// X-API-Key header, loads the planner, and stores it in c.Locals("planner").
func Verify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key := c.Get("X-API-Key"); key != "" {
			return verifyAPIKey(c, key)
		}

		cookie := c.Cookies("jwt")
		if cookie == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Not logged in",
			})
		}

		token, err := jwt.ParseWithClaims(cookie, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			return JWTSecret(), nil
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Invalid or expired token",
			})
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Invalid token claims",
			})
		}

		var planner Models.Planner
		result := Models.DB.Where("email = ?", claims.Subject).First(&planner)
		if result.Error != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Planner not found",
			})
		}

		c.Locals("planner", planner)
		return c.Next()
	}
}

// API keys look like p2t_<prefix><secret>; the prefix narrows the candidate
// rows, bcrypt settles it.
func verifyAPIKey(c *fiber.Ctx, key string) error {
	if !strings.HasPrefix(key, "p2t_") || len(key) < 16 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"ok":    false,
			"error": "Invalid API key",
		})
	}

	prefix := key[:16]
	var candidates []Models.APIKey
	if err := Models.DB.Where("prefix = ?", prefix).Find(&candidates).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"ok":    false,
			"error": "Invalid API key",
		})
	}

	for i := range candidates {
		if bcrypt.CompareHashAndPassword(candidates[i].Hash, []byte(key)) == nil {
			var planner Models.Planner
			if err := Models.DB.Where("email = ?", candidates[i].PlannerEmail).First(&planner).Error; err != nil {
				break
			}
			now := time.Now()
			Models.DB.Model(&candidates[i]).Update("last_used_at", now)
			c.Locals("planner", planner)
			return c.Next()
		}
	}

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"ok":    false,
		"error": "Invalid API key",
	})
}
