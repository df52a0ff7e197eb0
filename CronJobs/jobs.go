package CronJobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"Plan2Tasks/GoogleTasks"
	"Plan2Tasks/Models"
	"Plan2Tasks/email"
)

// Monitor runs the two scheduled jobs: the hourly connection health check
// and the daily feedback sync.
type Monitor struct {
	cronScheduler  *cron.Cron
	db             *gorm.DB
	tokens         *GoogleTasks.TokenManager
	mail           *email.Dispatcher
	runImmediately bool
}

func NewMonitor(db *gorm.DB, tokens *GoogleTasks.TokenManager, mail *email.Dispatcher, runImmediately bool) *Monitor {
	return &Monitor{
		cronScheduler:  cron.New(),
		db:             db,
		tokens:         tokens,
		mail:           mail,
		runImmediately: runImmediately,
	}
}

// Start schedules both jobs and kicks off the scheduler.
func (m *Monitor) Start() error {
	if _, err := m.cronScheduler.AddFunc("0 * * * *", func() {
		log.Println("Running scheduled connection check")
		m.RunConnectionCheck()
	}); err != nil {
		return fmt.Errorf("error scheduling connection check: %w", err)
	}

	if _, err := m.cronScheduler.AddFunc("0 6 * * *", func() {
		log.Println("Running scheduled feedback sync")
		m.RunFeedbackSync()
	}); err != nil {
		return fmt.Errorf("error scheduling feedback sync: %w", err)
	}

	m.cronScheduler.Start()
	log.Println("Monitor started - connection check hourly, feedback sync daily at 6:00 AM")

	if m.runImmediately {
		m.RunConnectionCheck()
	}
	return nil
}

// Stop terminates the scheduler.
func (m *Monitor) Stop() {
	if m.cronScheduler != nil {
		m.cronScheduler.Stop()
		log.Println("Monitor stopped")
	}
}

// RunConnectionCheck verifies every live grant. A connection whose refresh
// fails is archived and its planner gets a re-auth prompt.
func (m *Monitor) RunConnectionCheck() {
	ctx := context.Background()

	var conns []Models.Connection
	if err := m.db.Where("status IN ?",
		[]string{Models.StatusConnected, Models.StatusActive}).Find(&conns).Error; err != nil {
		log.Printf("connection check: failed to list connections: %v", err)
		return
	}

	checked, failed := 0, 0
	for _, conn := range conns {
		checked++
		if err := m.tokens.Verify(ctx, conn.PlannerEmail, conn.UserEmail); err == nil {
			continue
		}
		failed++
		log.Printf("connection check: grant for %s (planner %s) is dead", conn.UserEmail, conn.PlannerEmail)

		if err := m.db.Model(&Models.Connection{}).Where("id = ?", conn.ID).
			Update("status", Models.StatusArchived).Error; err != nil {
			log.Printf("connection check: failed to archive connection %d: %v", conn.ID, err)
			continue
		}
		if err := m.mail.SendReauthPrompt(ctx, conn.PlannerEmail, conn.UserEmail); err != nil {
			log.Printf("connection check: failed to email %s: %v", conn.PlannerEmail, err)
		}
	}

	log.Printf("Connection check completed. Checked: %d, Failed: %d", checked, failed)
}

// RunFeedbackSync collects contact submissions that have not yet been
// digested, emails them to the ops inbox, and stamps them synced.
func (m *Monitor) RunFeedbackSync() {
	ctx := context.Background()

	opsEmail := os.Getenv("OPS_EMAIL")
	if opsEmail == "" {
		log.Println("feedback sync: OPS_EMAIL not set, skipping")
		return
	}

	var submissions []Models.ContactSubmission
	if err := m.db.Where("synced_at IS NULL").Order("id").Find(&submissions).Error; err != nil {
		log.Printf("feedback sync: failed to list submissions: %v", err)
		return
	}
	if len(submissions) == 0 {
		log.Println("feedback sync: nothing to sync")
		return
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%d new feedback submission(s):\n\n", len(submissions))
	ids := make([]uint, 0, len(submissions))
	for _, s := range submissions {
		fmt.Fprintf(&body, "- [%s] %s <%s>: %s\n",
			s.CreatedAt.Format("2006-01-02 15:04"), s.Name, s.Email, s.Message)
		ids = append(ids, s.ID)
	}

	if err := m.mail.SendDigest(ctx, opsEmail, body.String()); err != nil {
		log.Printf("feedback sync: failed to send digest: %v", err)
		return
	}

	now := time.Now()
	if err := m.db.Model(&Models.ContactSubmission{}).Where("id IN ?", ids).
		Update("synced_at", now).Error; err != nil {
		log.Printf("feedback sync: failed to stamp submissions: %v", err)
		return
	}

	log.Printf("Feedback sync completed. Synced: %d", len(submissions))
}
