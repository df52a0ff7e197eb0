package Controllers

import (
	"encoding/json"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
)

// TemplateController manages reusable task lists.
type TemplateController struct {
	DB *gorm.DB
}

func NewTemplateController(db *gorm.DB) *TemplateController {
	return &TemplateController{DB: db}
}

// List returns the planner's templates.
func (t *TemplateController) List(c *fiber.Ctx) error {
	plannerEmail := normalizeEmail(c.Query("plannerEmail"))
	if plannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}

	var templates []Models.Template
	if err := t.DB.Where("planner_email = ?", plannerEmail).
		Order("id DESC").Find(&templates).Error; err != nil {
		log.Printf("templates: failed to list for %s: %v", plannerEmail, err)
		return Responses.ServerError(c)
	}
	return Responses.OK(c, fiber.Map{"templates": templates})
}

type templateRequest struct {
	PlannerEmail string          `json:"plannerEmail" validate:"required,email"`
	Title        string          `json:"title" validate:"required"`
	Tasks        []planTaskInput `json:"tasks" validate:"required,min=1,dive"`
}

// Create stores a template; tasks go into a JSON column.
func (t *TemplateController) Create(c *fiber.Ctx) error {
	var input templateRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "plannerEmail, title and at least one task are required")
	}

	tasksJSON, err := json.Marshal(input.Tasks)
	if err != nil {
		return Responses.ServerError(c)
	}

	template := Models.Template{
		PlannerEmail: normalizeEmail(input.PlannerEmail),
		Title:        input.Title,
		Tasks:        datatypes.JSON(tasksJSON),
	}
	if err := t.DB.Create(&template).Error; err != nil {
		log.Printf("templates: failed to create for %s: %v", input.PlannerEmail, err)
		return Responses.ServerError(c)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "template": template})
}

// Delete removes a template.
func (t *TemplateController) Delete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Responses.BadRequest(c, "Invalid template ID")
	}

	result := t.DB.Delete(&Models.Template{}, id)
	if result.Error != nil {
		return Responses.ServerError(c)
	}
	if result.RowsAffected == 0 {
		return Responses.Error(c, fiber.StatusNotFound, "Template not found")
	}
	return Responses.OK(c, fiber.Map{"deleted": true})
}
