package Dashboard

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Plan2Tasks/GoogleTasks"
	"Plan2Tasks/Models"
)

// testNow is the pinned wall clock for every test: 2024-01-10 10:00 UTC.
var testNow = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A second pool connection would see a different in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Models.Migrate(db))
	return db
}

// fakeSource serves canned Google Tasks responses per user.
type fakeSource struct {
	lists    map[string][]GoogleTasks.TaskList
	tasks    map[string][]GoogleTasks.Task
	failUser map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		lists:    make(map[string][]GoogleTasks.TaskList),
		tasks:    make(map[string][]GoogleTasks.Task),
		failUser: make(map[string]bool),
	}
}

func (f *fakeSource) serve(user string, tasks ...GoogleTasks.Task) {
	f.lists[user] = []GoogleTasks.TaskList{{ID: "list-" + user, Title: "My Tasks"}}
	f.tasks[user+"/list-"+user] = tasks
}

func (f *fakeSource) ListTaskLists(_ context.Context, _, userEmail string) ([]GoogleTasks.TaskList, error) {
	if f.failUser[userEmail] {
		return nil, fmt.Errorf("token unavailable for %s", userEmail)
	}
	return f.lists[userEmail], nil
}

func (f *fakeSource) ListTasks(_ context.Context, _, userEmail, listID string) ([]GoogleTasks.Task, error) {
	if f.failUser[userEmail] {
		return nil, fmt.Errorf("token unavailable for %s", userEmail)
	}
	return f.tasks[userEmail+"/"+listID], nil
}

func newTestAggregator(db *gorm.DB, source TaskSource) *Aggregator {
	agg := NewAggregator(db, source)
	agg.Now = func() time.Time { return testNow }
	return agg
}

func seedConnection(t *testing.T, db *gorm.DB, planner, user string) {
	t.Helper()
	require.NoError(t, db.Create(&Models.Connection{
		PlannerEmail: planner,
		UserEmail:    user,
		Status:       Models.StatusConnected,
	}).Error)
}

func seedBundle(t *testing.T, db *gorm.DB, planner, user, title string, tasks ...Models.BundleTask) Models.Bundle {
	t.Helper()
	bundle := Models.Bundle{
		PlannerEmail:      planner,
		AssignedUserEmail: user,
		Title:             title,
		StartDate:         testNow.AddDate(0, 0, -7),
		Origin:            Models.OriginPlan,
		Tasks:             tasks,
	}
	require.NoError(t, db.Create(&bundle).Error)
	return bundle
}

func completedTask(id, title string, at time.Time) GoogleTasks.Task {
	return GoogleTasks.Task{
		ID:        id,
		Title:     title,
		Status:    "completed",
		Completed: at.Format(time.RFC3339),
	}
}

func TestCollectNoKnownUsers(t *testing.T) {
	db := testDB(t)
	agg := newTestAggregator(db, newFakeSource())

	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	assert.Empty(t, metrics.UserEngagement)
	assert.Empty(t, metrics.ActivityFeed)
	assert.Equal(t, Aggregate{}, metrics.Aggregate)
}

func TestCollectSingleCompletedTask(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "u@x.com")
	seedBundle(t, db, "p@x.com", "u@x.com", "Week 1",
		Models.BundleTask{Title: "Morning run", GoogleTaskID: "gt1"})

	completedAt := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	source := newFakeSource()
	source.serve("u@x.com", completedTask("gt1", "Morning run", completedAt))

	agg := newTestAggregator(db, source)
	metrics, err := agg.Collect(context.Background(), "P@X.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 1)
	eng := metrics.UserEngagement[0]
	assert.Equal(t, "u@x.com", eng.UserEmail)
	assert.True(t, eng.IsConnected)
	assert.Equal(t, 1, eng.Today)
	assert.Equal(t, 1, eng.ThisWeek)
	assert.Equal(t, 0, eng.Yesterday)
	assert.Equal(t, 100, eng.CompletionRate)
	assert.Equal(t, 1, eng.ActivePlans)
	require.NotNil(t, eng.LastActivity)
	// The completion timestamp is the external one, not anything local.
	assert.True(t, eng.LastActivity.Equal(completedAt))

	assert.Equal(t, 1, metrics.Aggregate.CompletedToday)
	assert.Equal(t, 1, metrics.Aggregate.CompletedThisWeek)
	assert.Equal(t, "u@x.com", metrics.Aggregate.MostActiveUser)
	assert.Equal(t, 100, metrics.Aggregate.TodayTrend)

	require.Len(t, metrics.ActivityFeed, 1)
	assert.Equal(t, "Morning run", metrics.ActivityFeed[0].TaskTitle)
	assert.Equal(t, "Week 1", metrics.ActivityFeed[0].BundleTitle)
	assert.True(t, metrics.ActivityFeed[0].CompletedAt.Equal(completedAt))
}

func TestCollectUserWithoutConnection(t *testing.T) {
	db := testDB(t)
	// Known only through a pending invite; tasks exist but no grant.
	require.NoError(t, db.Create(&Models.Invite{
		PlannerEmail: "p@x.com",
		UserEmail:    "u@x.com",
		Token:        "tok-1",
		ExpiresAt:    testNow.AddDate(0, 0, 7),
	}).Error)
	seedBundle(t, db, "p@x.com", "u@x.com", "Week 1",
		Models.BundleTask{Title: "Task A", GoogleTaskID: "gt1"},
		Models.BundleTask{Title: "Task B", GoogleTaskID: "gt2"})

	agg := newTestAggregator(db, newFakeSource())
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 1)
	eng := metrics.UserEngagement[0]
	assert.False(t, eng.IsConnected)
	assert.Zero(t, eng.Today)
	assert.Zero(t, eng.ThisWeek)
	assert.Zero(t, eng.CompletionRate)
	assert.Zero(t, eng.ActivePlans)
	assert.Nil(t, eng.LastActivity)
}

func TestCollectExternalFailureDegradesOnlyThatUser(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "broken@x.com")
	seedConnection(t, db, "p@x.com", "fine@x.com")
	seedBundle(t, db, "p@x.com", "broken@x.com", "Plan A",
		Models.BundleTask{Title: "Task A", GoogleTaskID: "gt1"})
	seedBundle(t, db, "p@x.com", "fine@x.com", "Plan B",
		Models.BundleTask{Title: "Task B", GoogleTaskID: "gt2"})

	source := newFakeSource()
	source.failUser["broken@x.com"] = true
	source.serve("fine@x.com", completedTask("gt2", "Task B", testNow.Add(-time.Hour)))

	agg := newTestAggregator(db, source)
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 2)
	byUser := make(map[string]UserEngagement)
	for _, eng := range metrics.UserEngagement {
		byUser[eng.UserEmail] = eng
	}
	assert.False(t, byUser["broken@x.com"].IsConnected)
	assert.Zero(t, byUser["broken@x.com"].Today)
	assert.True(t, byUser["fine@x.com"].IsConnected)
	assert.Equal(t, 1, byUser["fine@x.com"].Today)
}

func TestCollectTitleFallbackForLegacyTasks(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "u@x.com")
	seedBundle(t, db, "p@x.com", "u@x.com", "Week 1",
		Models.BundleTask{Title: "Stretch"}) // no stored Google ID

	completedAt := testNow.Add(-2 * time.Hour)
	source := newFakeSource()
	source.serve("u@x.com",
		completedTask("ext-1", "Stretch", completedAt),
		completedTask("ext-2", "Stretch", completedAt.Add(-time.Hour)))

	agg := newTestAggregator(db, source)
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 1)
	eng := metrics.UserEngagement[0]
	// First completed match wins; the task counts exactly once.
	assert.Equal(t, 1, eng.Today)
	assert.Equal(t, 100, eng.CompletionRate)
	require.NotNil(t, eng.LastActivity)
	assert.True(t, eng.LastActivity.Equal(completedAt))
}

func TestCompletionRateRounding(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "u@x.com")
	seedBundle(t, db, "p@x.com", "u@x.com", "Week 1",
		Models.BundleTask{Title: "A", GoogleTaskID: "gt1"},
		Models.BundleTask{Title: "B", GoogleTaskID: "gt2"},
		Models.BundleTask{Title: "C", GoogleTaskID: "gt3"})

	source := newFakeSource()
	source.serve("u@x.com", completedTask("gt1", "A", testNow.Add(-time.Hour)))

	agg := newTestAggregator(db, source)
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 1)
	assert.Equal(t, 33, metrics.UserEngagement[0].CompletionRate)
}

func TestCollectTimeWindows(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "u@x.com")
	seedBundle(t, db, "p@x.com", "u@x.com", "Week 1",
		Models.BundleTask{Title: "Today", GoogleTaskID: "gt1"},
		Models.BundleTask{Title: "Yesterday", GoogleTaskID: "gt2"},
		Models.BundleTask{Title: "LastWeek", GoogleTaskID: "gt3"},
		Models.BundleTask{Title: "Ancient", GoogleTaskID: "gt4"})

	source := newFakeSource()
	source.serve("u@x.com",
		completedTask("gt1", "Today", time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)),
		completedTask("gt2", "Yesterday", time.Date(2024, 1, 9, 15, 0, 0, 0, time.UTC)),
		completedTask("gt3", "LastWeek", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		completedTask("gt4", "Ancient", time.Date(2023, 11, 1, 12, 0, 0, 0, time.UTC)))

	agg := newTestAggregator(db, source)
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 1)
	eng := metrics.UserEngagement[0]
	assert.Equal(t, 1, eng.Today)
	assert.Equal(t, 2, eng.ThisWeek) // today + yesterday fall in the rolling week
	assert.Equal(t, 1, eng.Yesterday)
	assert.Equal(t, 1, eng.LastWeek)
	assert.Equal(t, 100, eng.CompletionRate)

	// today 1 vs yesterday 1 -> flat; week 2 vs last week 1 -> +100.
	assert.Equal(t, 0, metrics.Aggregate.TodayTrend)
	assert.Equal(t, 100, metrics.Aggregate.WeekTrend)
}

func TestTrendZeroBaseline(t *testing.T) {
	assert.Equal(t, 0, trend(0, 0))
	assert.Equal(t, 100, trend(3, 0))
	assert.Equal(t, -50, trend(1, 2))
	assert.Equal(t, 50, trend(3, 2))
}

func TestActivityFeedCapAndOrder(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "u@x.com")

	var tasks []Models.BundleTask
	var external []GoogleTasks.Task
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("gt%d", i)
		title := fmt.Sprintf("Task %d", i)
		tasks = append(tasks, Models.BundleTask{Title: title, GoogleTaskID: id})
		external = append(external, completedTask(id, title, testNow.Add(-time.Duration(i+1)*time.Hour)))
	}
	seedBundle(t, db, "p@x.com", "u@x.com", "Big plan", tasks...)

	source := newFakeSource()
	source.serve("u@x.com", external...)

	agg := newTestAggregator(db, source)
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.ActivityFeed, 15)
	for i := 1; i < len(metrics.ActivityFeed); i++ {
		assert.False(t, metrics.ActivityFeed[i].CompletedAt.After(metrics.ActivityFeed[i-1].CompletedAt),
			"feed must be sorted by completedAt descending")
	}
	assert.Equal(t, "Task 0", metrics.ActivityFeed[0].TaskTitle)
}

func TestUsersSortedByCompletionRate(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "low@x.com")
	seedConnection(t, db, "p@x.com", "high@x.com")
	seedBundle(t, db, "p@x.com", "low@x.com", "Plan L",
		Models.BundleTask{Title: "A", GoogleTaskID: "l1"},
		Models.BundleTask{Title: "B", GoogleTaskID: "l2"})
	seedBundle(t, db, "p@x.com", "high@x.com", "Plan H",
		Models.BundleTask{Title: "C", GoogleTaskID: "h1"})

	source := newFakeSource()
	source.serve("low@x.com", completedTask("l1", "A", testNow.Add(-time.Hour)))
	source.serve("high@x.com", completedTask("h1", "C", testNow.Add(-time.Hour)))

	agg := newTestAggregator(db, source)
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 2)
	assert.Equal(t, "high@x.com", metrics.UserEngagement[0].UserEmail)
	assert.Equal(t, "low@x.com", metrics.UserEngagement[1].UserEmail)
}

func TestArchivedBundlesExcludedFromActivePlans(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "u@x.com")
	seedBundle(t, db, "p@x.com", "u@x.com", "Live plan",
		Models.BundleTask{Title: "A", GoogleTaskID: "gt1"})
	archived := seedBundle(t, db, "p@x.com", "u@x.com", "Old plan",
		Models.BundleTask{Title: "B", GoogleTaskID: "gt2"})
	archivedAt := testNow.AddDate(0, 0, -30)
	require.NoError(t, db.Model(&archived).Update("archived_at", archivedAt).Error)

	source := newFakeSource()
	source.serve("u@x.com")

	agg := newTestAggregator(db, source)
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 1)
	assert.Equal(t, 1, metrics.UserEngagement[0].ActivePlans)
}

func TestPlannerOwnEmailIsNotAUser(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "p@x.com")
	seedConnection(t, db, "p@x.com", "u@x.com")

	agg := newTestAggregator(db, newFakeSource())
	metrics, err := agg.Collect(context.Background(), "p@x.com")
	require.NoError(t, err)

	require.Len(t, metrics.UserEngagement, 1)
	assert.Equal(t, "u@x.com", metrics.UserEngagement[0].UserEmail)
}

func newMetricsApp(agg *Aggregator) *fiber.App {
	app := fiber.New()
	app.All("/api/dashboard/metrics", agg.Metrics)
	return app
}

func TestMetricsHandlerMissingPlannerEmail(t *testing.T) {
	app := newMetricsApp(newTestAggregator(testDB(t), newFakeSource()))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/dashboard/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMetricsHandlerMethodNotAllowed(t *testing.T) {
	app := newMetricsApp(newTestAggregator(testDB(t), newFakeSource()))

	resp, err := app.Test(httptest.NewRequest("POST", "/api/dashboard/metrics?plannerEmail=p@x.com", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsHandlerSuccess(t *testing.T) {
	db := testDB(t)
	seedConnection(t, db, "p@x.com", "u@x.com")
	app := newMetricsApp(newTestAggregator(db, newFakeSource()))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/dashboard/metrics?plannerEmail=p@x.com", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
