package Controllers

import (
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/xid"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
	"Plan2Tasks/email"
	"Plan2Tasks/middleware"
)

var validate = validator.New()

const magicLinkTTL = 15 * time.Minute
const sessionTTL = 7 * 24 * time.Hour

// AuthController owns the magic-link sign-in flow and planner sessions.
type AuthController struct {
	DB   *gorm.DB
	Mail *email.Dispatcher
}

func NewAuthController(db *gorm.DB, mail *email.Dispatcher) *AuthController {
	return &AuthController{DB: db, Mail: mail}
}

type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestMagicLink creates a one-time sign-in token and emails it. First
// sign-in creates the planner account.
func (a *AuthController) RequestMagicLink(c *fiber.Ctx) error {
	var input magicLinkRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "A valid email is required")
	}
	emailAddr := strings.ToLower(strings.TrimSpace(input.Email))

	var planner Models.Planner
	result := a.DB.Where("email = ?", emailAddr).First(&planner)
	if result.Error != nil {
		planner = Models.Planner{Email: emailAddr}
		if err := a.DB.Create(&planner).Error; err != nil {
			log.Printf("auth: failed to create planner %s: %v", emailAddr, err)
			return Responses.ServerError(c)
		}
	}

	link := Models.MagicLink{
		Email:     emailAddr,
		Token:     xid.New().String() + xid.New().String(),
		ExpiresAt: time.Now().Add(magicLinkTTL),
	}
	if err := a.DB.Create(&link).Error; err != nil {
		log.Printf("auth: failed to create magic link for %s: %v", emailAddr, err)
		return Responses.ServerError(c)
	}

	if err := a.Mail.SendMagicLink(c.Context(), emailAddr, link.Token); err != nil {
		log.Printf("auth: failed to email magic link to %s: %v", emailAddr, err)
		return Responses.Error(c, fiber.StatusInternalServerError, "Failed to send sign-in email")
	}

	return Responses.OK(c, fiber.Map{"sent": true})
}

// Verify consumes a magic link and sets the session cookie. A link is valid
// once; the consume is a guarded update so a double click cannot reuse it.
func (a *AuthController) Verify(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return Responses.BadRequest(c, "Missing token")
	}

	var link Models.MagicLink
	result := a.DB.Where("token = ? AND used_at IS NULL AND expires_at > ?", token, time.Now()).First(&link)
	if result.Error != nil {
		return Responses.Error(c, fiber.StatusUnauthorized, "Invalid or expired link")
	}

	consumed := a.DB.Model(&Models.MagicLink{}).
		Where("id = ? AND used_at IS NULL", link.ID).
		Update("used_at", time.Now())
	if consumed.Error != nil || consumed.RowsAffected == 0 {
		return Responses.Error(c, fiber.StatusUnauthorized, "Invalid or expired link")
	}

	signed, err := issueSession(link.Email)
	if err != nil {
		log.Printf("auth: failed to sign session for %s: %v", link.Email, err)
		return Responses.ServerError(c)
	}

	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    signed,
		Expires:  time.Now().Add(sessionTTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return Responses.OK(c, fiber.Map{"email": link.Email})
}

// Session returns the planner bound to the current session cookie.
func (a *AuthController) Session(c *fiber.Ctx) error {
	planner, ok := c.Locals("planner").(Models.Planner)
	if !ok {
		return Responses.Error(c, fiber.StatusUnauthorized, "Not logged in")
	}
	return Responses.OK(c, fiber.Map{"planner": planner})
}

// Logout clears the session cookie.
func (a *AuthController) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return Responses.OK(c, fiber.Map{})
}

func issueSession(email string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(middleware.JWTSecret())
}
