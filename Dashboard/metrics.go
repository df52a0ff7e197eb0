package Dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"Plan2Tasks/GoogleTasks"
	"Plan2Tasks/Models"
)

// Stage-specific failures for the mandatory database reads. Anything else
// surfaces as a generic server error.
var (
	ErrFetchBundles = errors.New("Failed to fetch bundles")
	ErrFetchTasks   = errors.New("Failed to fetch tasks")
)

const activityFeedLimit = 15

// defaultFanOut bounds the concurrent per-user Google Tasks fetches.
const defaultFanOut = 4

// TaskSource is the slice of the Google Tasks client the aggregator needs.
// A call fails when the user has no live grant or the service is down; the
// aggregator treats every failure the same way.
type TaskSource interface {
	ListTaskLists(ctx context.Context, plannerEmail, userEmail string) ([]GoogleTasks.TaskList, error)
	ListTasks(ctx context.Context, plannerEmail, userEmail, listID string) ([]GoogleTasks.Task, error)
}

// UserEngagement is one user's row in the dashboard.
type UserEngagement struct {
	UserEmail      string     `json:"userEmail"`
	IsConnected    bool       `json:"isConnected"`
	Today          int        `json:"today"`
	ThisWeek       int        `json:"thisWeek"`
	Yesterday      int        `json:"yesterday"`
	LastWeek       int        `json:"lastWeek"`
	CompletionRate int        `json:"completionRate"`
	ActivePlans    int        `json:"activePlans"`
	LastActivity   *time.Time `json:"lastActivity"`
}

// Activity is one entry in the recent-completions feed.
type Activity struct {
	UserEmail   string    `json:"userEmail"`
	TaskTitle   string    `json:"taskTitle"`
	BundleTitle string    `json:"bundleTitle"`
	CompletedAt time.Time `json:"completedAt"`
}

// Aggregate holds the planner-wide sums and trends.
type Aggregate struct {
	CompletedToday    int    `json:"completedToday"`
	CompletedThisWeek int    `json:"completedThisWeek"`
	AvgCompletionRate int    `json:"avgCompletionRate"`
	MostActiveUser    string `json:"mostActiveUser"`
	TodayTrend        int    `json:"todayTrend"`
	WeekTrend         int    `json:"weekTrend"`
}

type Metrics struct {
	Aggregate      Aggregate        `json:"aggregate"`
	UserEngagement []UserEngagement `json:"userEngagement"`
	ActivityFeed   []Activity       `json:"activityFeed"`
}

// Aggregator cross-references the planner's locally-assigned tasks against
// the live completion state in Google Tasks. Pure read; no writes.
type Aggregator struct {
	DB     *gorm.DB
	Source TaskSource
	FanOut int
	// Now is the wall clock; tests pin it.
	Now func() time.Time
}

func NewAggregator(db *gorm.DB, source TaskSource) *Aggregator {
	return &Aggregator{DB: db, Source: source, FanOut: defaultFanOut, Now: time.Now}
}

type plannedTask struct {
	task   Models.BundleTask
	bundle Models.Bundle
}

// Collect produces the full metrics block for one planner.
func (a *Aggregator) Collect(ctx context.Context, plannerEmail string) (*Metrics, error) {
	plannerEmail = strings.ToLower(strings.TrimSpace(plannerEmail))
	now := a.Now()

	users, connected, err := a.resolveUsers(plannerEmail)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{
		UserEngagement: make([]UserEngagement, 0),
		ActivityFeed:   make([]Activity, 0),
	}
	if len(users) == 0 {
		return metrics, nil
	}

	var bundles []Models.Bundle
	if err := a.DB.Where("planner_email = ? AND assigned_user_email IN ?", plannerEmail, users).
		Find(&bundles).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchBundles, err)
	}

	tasksByUser, err := a.loadTasks(bundles)
	if err != nil {
		return nil, err
	}

	// Per-user fetches are independent and read-only; fan out with a bounded
	// group and assemble by index so output order never depends on timing.
	engagement := make([]UserEngagement, len(users))
	completions := make([][]Activity, len(users))

	fanOut := a.FanOut
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	var g errgroup.Group
	g.SetLimit(fanOut)

	for i, user := range users {
		i, user := i, user
		engagement[i] = UserEngagement{UserEmail: user}
		if len(tasksByUser[user]) == 0 {
			engagement[i].IsConnected = connected[user]
			continue
		}
		if !connected[user] {
			continue
		}
		g.Go(func() error {
			engagement[i], completions[i] = a.collectUser(ctx, plannerEmail, user, tasksByUser[user], now)
			return nil
		})
	}
	// Workers never return errors; a user's failure degrades that user only.
	_ = g.Wait()

	metrics.Aggregate = buildAggregate(engagement)
	metrics.ActivityFeed = buildFeed(completions)

	sort.SliceStable(engagement, func(x, y int) bool {
		return engagement[x].CompletionRate > engagement[y].CompletionRate
	})
	metrics.UserEngagement = engagement

	return metrics, nil
}

// resolveUsers returns the planner's known users in encounter order (live
// connections first, then pending invites) plus the set with a live grant.
func (a *Aggregator) resolveUsers(plannerEmail string) ([]string, map[string]bool, error) {
	var conns []Models.Connection
	if err := a.DB.Where("planner_email = ? AND status IN ?",
		plannerEmail, []string{Models.StatusConnected, Models.StatusActive}).
		Order("id").Find(&conns).Error; err != nil {
		return nil, nil, err
	}

	var invites []Models.Invite
	if err := a.DB.Where("planner_email = ? AND used_at IS NULL", plannerEmail).
		Order("id").Find(&invites).Error; err != nil {
		return nil, nil, err
	}

	var users []string
	connected := make(map[string]bool)
	seen := make(map[string]bool)

	add := func(email string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || email == plannerEmail || seen[email] {
			return
		}
		seen[email] = true
		users = append(users, email)
	}

	for _, conn := range conns {
		add(conn.UserEmail)
		connected[strings.ToLower(conn.UserEmail)] = true
	}
	for _, invite := range invites {
		add(invite.UserEmail)
	}

	return users, connected, nil
}

func (a *Aggregator) loadTasks(bundles []Models.Bundle) (map[string][]plannedTask, error) {
	tasksByUser := make(map[string][]plannedTask)
	if len(bundles) == 0 {
		return tasksByUser, nil
	}

	bundleByID := make(map[uint]Models.Bundle, len(bundles))
	ids := make([]uint, 0, len(bundles))
	for _, b := range bundles {
		bundleByID[b.ID] = b
		ids = append(ids, b.ID)
	}

	var tasks []Models.BundleTask
	if err := a.DB.Where("bundle_id IN ?", ids).Order("id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchTasks, err)
	}

	for _, task := range tasks {
		bundle := bundleByID[task.BundleID]
		user := strings.ToLower(bundle.AssignedUserEmail)
		tasksByUser[user] = append(tasksByUser[user], plannedTask{task: task, bundle: bundle})
	}
	return tasksByUser, nil
}

// collectUser fetches the user's live Google Tasks state and scores their
// local tasks against it. Any external failure degrades the whole user to
// zero metrics and disconnected; it never aborts the aggregation.
func (a *Aggregator) collectUser(ctx context.Context, plannerEmail, user string, tasks []plannedTask, now time.Time) (UserEngagement, []Activity) {
	zero := UserEngagement{UserEmail: user}

	lists, err := a.Source.ListTaskLists(ctx, plannerEmail, user)
	if err != nil {
		log.Printf("metrics: task lists unavailable for %s: %v", user, err)
		return zero, nil
	}

	byID := make(map[string]GoogleTasks.Task)
	completedByTitle := make(map[string]GoogleTasks.Task)
	for _, list := range lists {
		items, err := a.Source.ListTasks(ctx, plannerEmail, user, list.ID)
		if err != nil {
			log.Printf("metrics: tasks unavailable for %s list %s: %v", user, list.ID, err)
			return zero, nil
		}
		for _, item := range items {
			byID[item.ID] = item
			if item.IsCompleted() {
				// Legacy title fallback: first completed match wins.
				if _, ok := completedByTitle[item.Title]; !ok {
					completedByTitle[item.Title] = item
				}
			}
		}
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)
	yesterdayStart := dayStart.AddDate(0, 0, -1)
	lastWeekStart := now.AddDate(0, 0, -14)

	eng := UserEngagement{UserEmail: user, IsConnected: true}
	var feed []Activity
	var lastActivity time.Time
	completed := 0
	activeBundles := make(map[uint]bool)

	for _, pt := range tasks {
		if pt.bundle.ArchivedAt == nil {
			activeBundles[pt.bundle.ID] = true
		}

		ext, ok := matchExternal(pt.task, byID, completedByTitle)
		if !ok {
			continue
		}
		ts := ext.CompletedAt()
		if ts.IsZero() {
			continue
		}

		completed++
		if ts.After(lastActivity) {
			lastActivity = ts
		}
		if !ts.Before(dayStart) && !ts.After(now) {
			eng.Today++
		}
		if ts.After(weekStart) && !ts.After(now) {
			eng.ThisWeek++
			feed = append(feed, Activity{
				UserEmail:   user,
				TaskTitle:   pt.task.Title,
				BundleTitle: pt.bundle.Title,
				CompletedAt: ts,
			})
		}
		if !ts.Before(yesterdayStart) && ts.Before(dayStart) {
			eng.Yesterday++
		}
		if ts.After(lastWeekStart) && !ts.After(weekStart) {
			eng.LastWeek++
		}
	}

	eng.ActivePlans = len(activeBundles)
	eng.CompletionRate = rate(completed, len(tasks))
	if !lastActivity.IsZero() {
		eng.LastActivity = &lastActivity
	}
	return eng, feed
}

// matchExternal resolves a local task's completion against the live index:
// by stored Google task ID when present, otherwise by exact title against
// any completed external task.
func matchExternal(task Models.BundleTask, byID, completedByTitle map[string]GoogleTasks.Task) (GoogleTasks.Task, bool) {
	if task.GoogleTaskID != "" {
		ext, ok := byID[task.GoogleTaskID]
		if !ok || !ext.IsCompleted() {
			return GoogleTasks.Task{}, false
		}
		return ext, true
	}
	ext, ok := completedByTitle[task.Title]
	return ext, ok
}

func buildAggregate(engagement []UserEngagement) Aggregate {
	var agg Aggregate
	totalYesterday := 0
	totalLastWeek := 0
	rateSum := 0
	maxToday := 0

	for _, eng := range engagement {
		agg.CompletedToday += eng.Today
		agg.CompletedThisWeek += eng.ThisWeek
		totalYesterday += eng.Yesterday
		totalLastWeek += eng.LastWeek
		rateSum += eng.CompletionRate
		if eng.Today > maxToday {
			maxToday = eng.Today
			agg.MostActiveUser = eng.UserEmail
		}
	}

	if len(engagement) > 0 {
		agg.AvgCompletionRate = int(math.Round(float64(rateSum) / float64(len(engagement))))
	}
	agg.TodayTrend = trend(agg.CompletedToday, totalYesterday)
	agg.WeekTrend = trend(agg.CompletedThisWeek, totalLastWeek)
	return agg
}

// trend preserves the established zero-baseline behavior: any activity on an
// empty previous window reads as a flat 100% jump.
func trend(current, previous int) int {
	if previous > 0 {
		return int(math.Round(float64(current-previous) / float64(previous) * 100))
	}
	if current > 0 {
		return 100
	}
	return 0
}

func rate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

func buildFeed(completions [][]Activity) []Activity {
	feed := make([]Activity, 0)
	for _, acts := range completions {
		feed = append(feed, acts...)
	}
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CompletedAt.After(feed[j].CompletedAt)
	})
	if len(feed) > activityFeedLimit {
		feed = feed[:activityFeedLimit]
	}
	return feed
}
