package GoogleTasks

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
)

// Access tokens are refreshed a minute before their recorded expiry.
const tokenSlack = time.Minute

// OAuthConfig builds the Google OAuth config from the environment.
func OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		Scopes:       []string{"https://www.googleapis.com/auth/tasks"},
		Endpoint:     google.Endpoint,
	}
}

// TokenManager resolves a stored refresh token to a live access token for a
// planner/user pair, refreshing and persisting as needed.
type TokenManager struct {
	DB     *gorm.DB
	Config *oauth2.Config
}

func NewTokenManager(db *gorm.DB) *TokenManager {
	return &TokenManager{DB: db, Config: OAuthConfig()}
}

// Resolve returns a currently-valid bearer token for the user, or an error
// when the user has no live connection or the refresh fails. Callers treat
// any error here as "token unavailable".
func (m *TokenManager) Resolve(ctx context.Context, plannerEmail, userEmail string) (string, error) {
	var conn Models.Connection
	result := m.DB.Where("planner_email = ? AND user_email = ? AND status IN ?",
		plannerEmail, userEmail, []string{Models.StatusConnected, Models.StatusActive}).
		First(&conn)
	if result.Error != nil {
		return "", fmt.Errorf("no live connection for %s: %w", userEmail, result.Error)
	}

	if conn.GoogleAccessToken != "" && time.Now().Add(tokenSlack).Before(conn.TokenExpiry) {
		return conn.GoogleAccessToken, nil
	}

	if conn.GoogleRefreshToken == "" {
		return "", fmt.Errorf("connection for %s has no refresh token", userEmail)
	}

	source := m.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.GoogleRefreshToken})
	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("token refresh failed for %s: %w", userEmail, err)
	}

	conn.GoogleAccessToken = token.AccessToken
	conn.TokenExpiry = token.Expiry
	if token.RefreshToken != "" {
		conn.GoogleRefreshToken = token.RefreshToken
	}
	if err := m.DB.Save(&conn).Error; err != nil {
		return "", fmt.Errorf("failed to persist refreshed token for %s: %w", userEmail, err)
	}

	return token.AccessToken, nil
}

// Verify exercises the stored grant without caring about the token itself.
// Used by the connection monitor cron job.
func (m *TokenManager) Verify(ctx context.Context, plannerEmail, userEmail string) error {
	_, err := m.Resolve(ctx, plannerEmail, userEmail)
	return err
}
