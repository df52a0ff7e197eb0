package Controllers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
)

// InboxController handles the capture-then-assign flow: bundles land in the
// inbox without an assigned user and become plans once assigned.
type InboxController struct {
	DB *gorm.DB
}

func NewInboxController(db *gorm.DB) *InboxController {
	return &InboxController{DB: db}
}

// List returns the planner's unassigned inbox bundles.
func (i *InboxController) List(c *fiber.Ctx) error {
	plannerEmail := normalizeEmail(c.Query("plannerEmail"))
	if plannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}

	var bundles []Models.Bundle
	if err := i.DB.Preload("Tasks").
		Where("planner_email = ? AND origin = ? AND assigned_user_email = ''",
			plannerEmail, Models.OriginInbox).
		Order("id DESC").Find(&bundles).Error; err != nil {
		log.Printf("inbox: failed to list for %s: %v", plannerEmail, err)
		return Responses.ServerError(c)
	}
	return Responses.OK(c, fiber.Map{"items": bundles})
}

type captureRequest struct {
	PlannerEmail string          `json:"plannerEmail" validate:"required,email"`
	Title        string          `json:"title" validate:"required"`
	StartDate    string          `json:"startDate"`
	Tasks        []planTaskInput `json:"tasks" validate:"required,min=1,dive"`
}

// Capture stores an unassigned bundle in the inbox.
func (i *InboxController) Capture(c *fiber.Ctx) error {
	var input captureRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "plannerEmail, title and at least one task are required")
	}

	startDate := time.Now()
	if input.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", input.StartDate)
		if err != nil {
			return Responses.BadRequest(c, "startDate must be YYYY-MM-DD")
		}
		startDate = parsed
	}

	bundle := Models.Bundle{
		PlannerEmail: normalizeEmail(input.PlannerEmail),
		Title:        input.Title,
		StartDate:    startDate,
		Origin:       Models.OriginInbox,
	}
	for _, t := range input.Tasks {
		bundle.Tasks = append(bundle.Tasks, Models.BundleTask{
			Title:     t.Title,
			Notes:     t.Notes,
			DayOffset: t.DayOffset,
		})
	}

	if err := i.DB.Create(&bundle).Error; err != nil {
		log.Printf("inbox: failed to capture for %s: %v", input.PlannerEmail, err)
		return Responses.ServerError(c)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "item": bundle})
}

type assignRequest struct {
	BundleID  uint   `json:"bundleId" validate:"required"`
	UserEmail string `json:"userEmail" validate:"required,email"`
}

// Assign turns an inbox item into a plan for a user.
func (i *InboxController) Assign(c *fiber.Ctx) error {
	var input assignRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "bundleId and userEmail are required")
	}

	result := i.DB.Model(&Models.Bundle{}).
		Where("id = ? AND origin = ? AND assigned_user_email = ''",
			input.BundleID, Models.OriginInbox).
		Updates(map[string]interface{}{
			"assigned_user_email": normalizeEmail(input.UserEmail),
			"origin":              Models.OriginPlan,
		})
	if result.Error != nil {
		return Responses.ServerError(c)
	}
	if result.RowsAffected == 0 {
		return Responses.Error(c, fiber.StatusNotFound, "Inbox item not found")
	}
	return Responses.OK(c, fiber.Map{"assigned": normalizeEmail(input.UserEmail)})
}
