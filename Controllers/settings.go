package Controllers

import (
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
)

// SettingsController manages planner API keys.
type SettingsController struct {
	DB *gorm.DB
}

func NewSettingsController(db *gorm.DB) *SettingsController {
	return &SettingsController{DB: db}
}

type createKeyRequest struct {
	PlannerEmail string `json:"plannerEmail" validate:"required,email"`
	Label        string `json:"label" validate:"required"`
}

// CreateKey mints an API key. The raw key is returned exactly once; only its
// bcrypt hash and display prefix are stored.
func (s *SettingsController) CreateKey(c *fiber.Ctx) error {
	var input createKeyRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "plannerEmail and label are required")
	}

	raw := fmt.Sprintf("p2t_%s%s", xid.New().String(), xid.New().String())
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return Responses.ServerError(c)
	}

	key := Models.APIKey{
		PlannerEmail: normalizeEmail(input.PlannerEmail),
		Label:        input.Label,
		Hash:         hash,
		Prefix:       raw[:16],
	}
	if err := s.DB.Create(&key).Error; err != nil {
		log.Printf("settings: failed to create api key for %s: %v", input.PlannerEmail, err)
		return Responses.ServerError(c)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":  true,
		"key": raw,
		"id":  key.ID,
	})
}

// ListKeys returns key metadata; never the key material.
func (s *SettingsController) ListKeys(c *fiber.Ctx) error {
	plannerEmail := normalizeEmail(c.Query("plannerEmail"))
	if plannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}

	var keys []Models.APIKey
	if err := s.DB.Where("planner_email = ?", plannerEmail).
		Order("id DESC").Find(&keys).Error; err != nil {
		return Responses.ServerError(c)
	}
	return Responses.OK(c, fiber.Map{"keys": keys})
}

// RevokeKey deletes an API key.
func (s *SettingsController) RevokeKey(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Responses.BadRequest(c, "Invalid key ID")
	}

	result := s.DB.Delete(&Models.APIKey{}, id)
	if result.Error != nil {
		return Responses.ServerError(c)
	}
	if result.RowsAffected == 0 {
		return Responses.Error(c, fiber.StatusNotFound, "Key not found")
	}
	return Responses.OK(c, fiber.Map{"revoked": true})
}
