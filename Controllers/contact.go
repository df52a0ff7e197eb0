package Controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
)

// ContactController stores feedback form submissions. The daily sync cron
// job folds them into an ops digest.
type ContactController struct {
	DB *gorm.DB
}

func NewContactController(db *gorm.DB) *ContactController {
	return &ContactController{DB: db}
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email" validate:"omitempty,email"`
	Message string `json:"message" validate:"required"`
}

func (ct *ContactController) Submit(c *fiber.Ctx) error {
	var input contactRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "A message is required")
	}

	submission := Models.ContactSubmission{
		Name:    input.Name,
		Email:   normalizeEmail(input.Email),
		Message: input.Message,
	}
	if err := ct.DB.Create(&submission).Error; err != nil {
		log.Printf("contact: failed to store submission: %v", err)
		return Responses.ServerError(c)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
}
