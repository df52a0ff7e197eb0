package Controllers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"Plan2Tasks/GoogleTasks"
	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
)

// PlanController creates task bundles and delivers them into Google Tasks.
type PlanController struct {
	DB    *gorm.DB
	Tasks *GoogleTasks.Client
}

func NewPlanController(db *gorm.DB, tasks *GoogleTasks.Client) *PlanController {
	return &PlanController{DB: db, Tasks: tasks}
}

type planTaskInput struct {
	Title     string `json:"title" validate:"required"`
	Notes     string `json:"notes"`
	DayOffset int    `json:"dayOffset" validate:"gte=0"`
}

type createPlanRequest struct {
	PlannerEmail string          `json:"plannerEmail" validate:"required,email"`
	UserEmail    string          `json:"userEmail" validate:"required,email"`
	Title        string          `json:"title" validate:"required"`
	StartDate    string          `json:"startDate" validate:"required"`
	Tasks        []planTaskInput `json:"tasks" validate:"required,min=1,dive"`
}

// Create stores a bundle and its tasks. Delivery into Google Tasks is a
// separate, explicit push.
func (p *PlanController) Create(c *fiber.Ctx) error {
	var input createPlanRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "plannerEmail, userEmail, title, startDate and at least one task are required")
	}

	startDate, err := time.Parse("2006-01-02", input.StartDate)
	if err != nil {
		return Responses.BadRequest(c, "startDate must be YYYY-MM-DD")
	}

	bundle := Models.Bundle{
		PlannerEmail:      normalizeEmail(input.PlannerEmail),
		AssignedUserEmail: normalizeEmail(input.UserEmail),
		Title:             input.Title,
		StartDate:         startDate,
		Origin:            Models.OriginPlan,
	}
	for _, t := range input.Tasks {
		bundle.Tasks = append(bundle.Tasks, Models.BundleTask{
			Title:     t.Title,
			Notes:     t.Notes,
			DayOffset: t.DayOffset,
		})
	}

	if err := p.DB.Create(&bundle).Error; err != nil {
		log.Printf("plans: failed to create bundle for %s: %v", input.UserEmail, err)
		return Responses.ServerError(c)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "bundle": bundle})
}

// List returns the planner's bundles with their tasks, optionally filtered
// by user and optionally including archived ones.
func (p *PlanController) List(c *fiber.Ctx) error {
	plannerEmail := normalizeEmail(c.Query("plannerEmail"))
	if plannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}

	query := p.DB.Preload("Tasks").Where("planner_email = ? AND origin = ?", plannerEmail, Models.OriginPlan)
	if userEmail := normalizeEmail(c.Query("userEmail")); userEmail != "" {
		query = query.Where("assigned_user_email = ?", userEmail)
	}
	if c.Query("includeArchived") != "true" {
		query = query.Where("archived_at IS NULL")
	}

	var bundles []Models.Bundle
	if err := query.Order("id DESC").Find(&bundles).Error; err != nil {
		log.Printf("plans: failed to list bundles for %s: %v", plannerEmail, err)
		return Responses.ServerError(c)
	}
	return Responses.OK(c, fiber.Map{"bundles": bundles})
}

type bundleActionRequest struct {
	BundleID uint `json:"bundleId" validate:"required"`
}

// Push delivers a bundle into the assigned user's Google Tasks: a new list
// titled after the bundle, one task per row, due dates from startDate plus
// each task's day offset. Returned Google task IDs are persisted so the
// dashboard can match completions by ID.
func (p *PlanController) Push(c *fiber.Ctx) error {
	var input bundleActionRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "bundleId is required")
	}

	var bundle Models.Bundle
	if err := p.DB.Preload("Tasks").First(&bundle, input.BundleID).Error; err != nil {
		return Responses.Error(c, fiber.StatusNotFound, "Bundle not found")
	}
	if bundle.AssignedUserEmail == "" {
		return Responses.BadRequest(c, "Bundle has no assigned user")
	}
	if len(bundle.Tasks) == 0 {
		return Responses.BadRequest(c, "Bundle has no tasks")
	}

	ctx := c.Context()
	list, err := p.Tasks.CreateTaskList(ctx, bundle.PlannerEmail, bundle.AssignedUserEmail, bundle.Title)
	if err != nil {
		log.Printf("plans: failed to create list for bundle %d: %v", bundle.ID, err)
		return Responses.Error(c, fiber.StatusBadGateway, "Failed to reach Google Tasks")
	}

	pushed := 0
	for i := range bundle.Tasks {
		task := &bundle.Tasks[i]
		if task.GoogleTaskID != "" {
			continue
		}
		due := bundle.StartDate.AddDate(0, 0, task.DayOffset)
		created, err := p.Tasks.InsertTask(ctx, bundle.PlannerEmail, bundle.AssignedUserEmail, list.ID, GoogleTasks.Task{
			Title: task.Title,
			Notes: task.Notes,
			Due:   due.UTC().Format(time.RFC3339),
		})
		if err != nil {
			log.Printf("plans: failed to insert task %d of bundle %d: %v", task.ID, bundle.ID, err)
			return Responses.Error(c, fiber.StatusBadGateway, "Failed to push all tasks")
		}
		task.GoogleTaskID = created.ID
		if err := p.DB.Model(task).Update("google_task_id", created.ID).Error; err != nil {
			log.Printf("plans: failed to persist google task id for task %d: %v", task.ID, err)
			return Responses.ServerError(c)
		}
		pushed++
	}

	return Responses.OK(c, fiber.Map{"pushed": pushed, "listId": list.ID})
}

// Archive soft-archives a bundle. Archived bundles stop counting as active
// plans but their completion history stays visible.
func (p *PlanController) Archive(c *fiber.Ctx) error {
	return p.setArchived(c, true)
}

// Unarchive clears the archive mark.
func (p *PlanController) Unarchive(c *fiber.Ctx) error {
	return p.setArchived(c, false)
}

func (p *PlanController) setArchived(c *fiber.Ctx, archived bool) error {
	var input bundleActionRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "bundleId is required")
	}

	var value interface{}
	if archived {
		value = time.Now()
	}
	result := p.DB.Model(&Models.Bundle{}).Where("id = ?", input.BundleID).
		Update("archived_at", value)
	if result.Error != nil {
		return Responses.ServerError(c)
	}
	if result.RowsAffected == 0 {
		return Responses.Error(c, fiber.StatusNotFound, "Bundle not found")
	}
	return Responses.OK(c, fiber.Map{"archived": archived})
}

// Delete soft-deletes a bundle and its tasks.
func (p *PlanController) Delete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Responses.BadRequest(c, "Invalid bundle ID")
	}

	var bundle Models.Bundle
	if err := p.DB.First(&bundle, id).Error; err != nil {
		return Responses.Error(c, fiber.StatusNotFound, "Bundle not found")
	}

	if err := p.DB.Where("bundle_id = ?", bundle.ID).Delete(&Models.BundleTask{}).Error; err != nil {
		return Responses.ServerError(c)
	}
	if err := p.DB.Delete(&bundle).Error; err != nil {
		return Responses.ServerError(c)
	}
	return Responses.OK(c, fiber.Map{"deleted": true})
}
