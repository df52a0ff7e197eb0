package Controllers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
)

// OAuthController runs the Google consent flow that links a user's Google
// Tasks account to a planner.
type OAuthController struct {
	DB     *gorm.DB
	Config *oauth2.Config
}

func NewOAuthController(db *gorm.DB, config *oauth2.Config) *OAuthController {
	return &OAuthController{DB: db, Config: config}
}

type oauthState struct {
	PlannerEmail string `json:"p"`
	UserEmail    string `json:"u"`
	InviteToken  string `json:"i,omitempty"`
}

// Start returns the Google consent URL. Callers pass either an invite token
// (the emailed flow) or an explicit plannerEmail/userEmail pair.
func (o *OAuthController) Start(c *fiber.Ctx) error {
	state := oauthState{
		PlannerEmail: strings.ToLower(c.Query("plannerEmail")),
		UserEmail:    strings.ToLower(c.Query("userEmail")),
		InviteToken:  c.Query("invite"),
	}

	if state.InviteToken != "" {
		var invite Models.Invite
		result := o.DB.Where("token = ? AND used_at IS NULL AND expires_at > ?",
			state.InviteToken, time.Now()).First(&invite)
		if result.Error != nil {
			return Responses.Error(c, fiber.StatusNotFound, "Invite not found or expired")
		}
		state.PlannerEmail = strings.ToLower(invite.PlannerEmail)
		state.UserEmail = strings.ToLower(invite.UserEmail)
	}

	if state.PlannerEmail == "" || state.UserEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail or userEmail")
	}

	encoded, err := json.Marshal(state)
	if err != nil {
		return Responses.ServerError(c)
	}
	url := o.Config.AuthCodeURL(
		base64.RawURLEncoding.EncodeToString(encoded),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	return Responses.OK(c, fiber.Map{"url": url})
}

// Callback exchanges the authorization code and stores the grant. A pending
// invite for the pair is consumed here.
func (o *OAuthController) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	rawState := c.Query("state")
	if code == "" || rawState == "" {
		return Responses.BadRequest(c, "Missing code or state")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(rawState)
	if err != nil {
		return Responses.BadRequest(c, "Invalid state")
	}
	var state oauthState
	if err := json.Unmarshal(decoded, &state); err != nil {
		return Responses.BadRequest(c, "Invalid state")
	}

	token, err := o.Config.Exchange(c.Context(), code)
	if err != nil {
		log.Printf("oauth: code exchange failed for %s: %v", state.UserEmail, err)
		return Responses.Error(c, fiber.StatusBadGateway, "Google authorization failed")
	}

	var conn Models.Connection
	result := o.DB.Where("planner_email = ? AND user_email = ?",
		state.PlannerEmail, state.UserEmail).First(&conn)
	if result.Error != nil {
		conn = Models.Connection{
			PlannerEmail: state.PlannerEmail,
			UserEmail:    state.UserEmail,
		}
	}
	conn.GoogleAccessToken = token.AccessToken
	conn.TokenExpiry = token.Expiry
	if token.RefreshToken != "" {
		conn.GoogleRefreshToken = token.RefreshToken
	}
	conn.Status = Models.StatusConnected

	if err := o.DB.Save(&conn).Error; err != nil {
		log.Printf("oauth: failed to save connection for %s: %v", state.UserEmail, err)
		return Responses.ServerError(c)
	}

	now := time.Now()
	query := o.DB.Model(&Models.Invite{}).
		Where("planner_email = ? AND user_email = ? AND used_at IS NULL",
			state.PlannerEmail, state.UserEmail)
	if state.InviteToken != "" {
		query = query.Where("token = ?", state.InviteToken)
	}
	query.Update("used_at", now)

	return Responses.OK(c, fiber.Map{"connected": state.UserEmail})
}
