package Controllers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/xid"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
	"Plan2Tasks/email"
)

const inviteTTL = 14 * 24 * time.Hour

// UserController manages the planner's user roster: connections, invites,
// and per-user notes.
type UserController struct {
	DB   *gorm.DB
	Mail *email.Dispatcher
}

func NewUserController(db *gorm.DB, mail *email.Dispatcher) *UserController {
	return &UserController{DB: db, Mail: mail}
}

type rosterEntry struct {
	UserEmail string     `json:"userEmail"`
	Status    string     `json:"status"`
	InvitedAt *time.Time `json:"invitedAt,omitempty"`
}

// List returns every user the planner knows: connections in any non-deleted
// status plus pending invites.
func (u *UserController) List(c *fiber.Ctx) error {
	plannerEmail := normalizeEmail(c.Query("plannerEmail"))
	if plannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}

	var conns []Models.Connection
	if err := u.DB.Where("planner_email = ? AND status <> ?",
		plannerEmail, Models.StatusDeleted).Order("id").Find(&conns).Error; err != nil {
		log.Printf("users: failed to list connections for %s: %v", plannerEmail, err)
		return Responses.ServerError(c)
	}

	var invites []Models.Invite
	if err := u.DB.Where("planner_email = ? AND used_at IS NULL", plannerEmail).
		Order("id").Find(&invites).Error; err != nil {
		log.Printf("users: failed to list invites for %s: %v", plannerEmail, err)
		return Responses.ServerError(c)
	}

	entries := make([]rosterEntry, 0, len(conns)+len(invites))
	seen := make(map[string]bool)
	for _, conn := range conns {
		user := normalizeEmail(conn.UserEmail)
		seen[user] = true
		entries = append(entries, rosterEntry{UserEmail: user, Status: conn.Status})
	}
	for _, invite := range invites {
		user := normalizeEmail(invite.UserEmail)
		if seen[user] {
			continue
		}
		invitedAt := invite.CreatedAt
		entries = append(entries, rosterEntry{
			UserEmail: user,
			Status:    Models.StatusInvited,
			InvitedAt: &invitedAt,
		})
	}

	return Responses.OK(c, fiber.Map{"users": entries})
}

type inviteRequest struct {
	PlannerEmail string `json:"plannerEmail" validate:"required,email"`
	UserEmail    string `json:"userEmail" validate:"required,email"`
}

// Invite creates (or refreshes) a pending invite and emails the user.
func (u *UserController) Invite(c *fiber.Ctx) error {
	var input inviteRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "plannerEmail and userEmail are required")
	}
	plannerEmail := normalizeEmail(input.PlannerEmail)
	userEmail := normalizeEmail(input.UserEmail)
	if plannerEmail == userEmail {
		return Responses.BadRequest(c, "Cannot invite yourself")
	}

	// One pending invite per pair; re-inviting rotates the token and clock.
	var invite Models.Invite
	result := u.DB.Where("planner_email = ? AND user_email = ? AND used_at IS NULL",
		plannerEmail, userEmail).First(&invite)
	if result.Error != nil {
		invite = Models.Invite{PlannerEmail: plannerEmail, UserEmail: userEmail}
	}
	invite.Token = xid.New().String() + xid.New().String()
	invite.ExpiresAt = time.Now().Add(inviteTTL)

	if err := u.DB.Save(&invite).Error; err != nil {
		log.Printf("users: failed to save invite %s -> %s: %v", plannerEmail, userEmail, err)
		return Responses.ServerError(c)
	}

	if err := u.Mail.SendInvite(c.Context(), userEmail, plannerEmail, invite.Token); err != nil {
		log.Printf("users: failed to email invite to %s: %v", userEmail, err)
		return Responses.Error(c, fiber.StatusInternalServerError, "Failed to send invite email")
	}

	return Responses.OK(c, fiber.Map{"invited": userEmail})
}

type userActionRequest struct {
	PlannerEmail string `json:"plannerEmail" validate:"required,email"`
	UserEmail    string `json:"userEmail" validate:"required,email"`
}

// Archive retires a connection without touching its tokens.
func (u *UserController) Archive(c *fiber.Ctx) error {
	return u.setStatus(c, Models.StatusArchived)
}

// Restore brings an archived connection back into rotation.
func (u *UserController) Restore(c *fiber.Ctx) error {
	return u.setStatus(c, Models.StatusActive)
}

func (u *UserController) setStatus(c *fiber.Ctx, status string) error {
	var input userActionRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "plannerEmail and userEmail are required")
	}

	result := u.DB.Model(&Models.Connection{}).
		Where("planner_email = ? AND user_email = ?",
			normalizeEmail(input.PlannerEmail), normalizeEmail(input.UserEmail)).
		Update("status", status)
	if result.Error != nil {
		return Responses.ServerError(c)
	}
	if result.RowsAffected == 0 {
		return Responses.Error(c, fiber.StatusNotFound, "Connection not found")
	}
	return Responses.OK(c, fiber.Map{"status": status})
}

// Delete marks the connection deleted and wipes its tokens.
func (u *UserController) Delete(c *fiber.Ctx) error {
	var input userActionRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "plannerEmail and userEmail are required")
	}

	result := u.DB.Model(&Models.Connection{}).
		Where("planner_email = ? AND user_email = ?",
			normalizeEmail(input.PlannerEmail), normalizeEmail(input.UserEmail)).
		Updates(map[string]interface{}{
			"status":               Models.StatusDeleted,
			"google_access_token":  "",
			"google_refresh_token": "",
		})
	if result.Error != nil {
		return Responses.ServerError(c)
	}
	if result.RowsAffected == 0 {
		return Responses.Error(c, fiber.StatusNotFound, "Connection not found")
	}
	return Responses.OK(c, fiber.Map{"deleted": true})
}

// Notes returns the planner's notes for one user, newest first.
func (u *UserController) Notes(c *fiber.Ctx) error {
	plannerEmail := normalizeEmail(c.Query("plannerEmail"))
	userEmail := normalizeEmail(c.Query("userEmail"))
	if plannerEmail == "" || userEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail or userEmail")
	}

	var notes []Models.UserNote
	if err := u.DB.Where("planner_email = ? AND user_email = ?", plannerEmail, userEmail).
		Order("id DESC").Find(&notes).Error; err != nil {
		return Responses.ServerError(c)
	}
	return Responses.OK(c, fiber.Map{"notes": notes})
}

type noteRequest struct {
	PlannerEmail string `json:"plannerEmail" validate:"required,email"`
	UserEmail    string `json:"userEmail" validate:"required,email"`
	Body         string `json:"body" validate:"required"`
}

// AddNote stores a note on a user.
func (u *UserController) AddNote(c *fiber.Ctx) error {
	var input noteRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(input); err != nil {
		return Responses.BadRequest(c, "plannerEmail, userEmail and body are required")
	}

	note := Models.UserNote{
		PlannerEmail: normalizeEmail(input.PlannerEmail),
		UserEmail:    normalizeEmail(input.UserEmail),
		Body:         input.Body,
	}
	if err := u.DB.Create(&note).Error; err != nil {
		return Responses.ServerError(c)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "note": note})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
