package FiberConfig

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/gorm"

	"Plan2Tasks/Assistant"
	"Plan2Tasks/Billing"
	"Plan2Tasks/Controllers"
	"Plan2Tasks/Dashboard"
	"Plan2Tasks/GoogleTasks"
	"Plan2Tasks/email"
	"Plan2Tasks/middleware"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, mail *email.Dispatcher) {
	// Initialize shared clients and handlers
	tokens := GoogleTasks.NewTokenManager(db)
	tasksClient := GoogleTasks.NewClient(tokens)

	authController := Controllers.NewAuthController(db, mail)
	oauthController := Controllers.NewOAuthController(db, GoogleTasks.OAuthConfig())
	userController := Controllers.NewUserController(db, mail)
	planController := Controllers.NewPlanController(db, tasksClient)
	inboxController := Controllers.NewInboxController(db)
	templateController := Controllers.NewTemplateController(db)
	settingsController := Controllers.NewSettingsController(db)
	contactController := Controllers.NewContactController(db)
	billingController := Billing.NewController(db)
	assistController := Assistant.NewController()
	aggregator := Dashboard.NewAggregator(db, tasksClient)

	api := app.Group("/api")

	// Auth routes
	api.Post("/auth/magic-link", authController.RequestMagicLink)
	api.Get("/auth/verify", authController.Verify)
	api.Get("/auth/session", middleware.Verify(), authController.Session)
	api.Post("/auth/logout", authController.Logout)

	// Google OAuth routes (reached from emailed links, no session required)
	api.Get("/google/start", oauthController.Start)
	api.Get("/google/callback", oauthController.Callback)

	// User roster routes
	users := api.Group("/users")
	users.Get("/", userController.List)
	users.Post("/invite", userController.Invite)
	users.Post("/archive", userController.Archive)
	users.Post("/restore", userController.Restore)
	users.Delete("/", userController.Delete)
	users.Get("/notes", userController.Notes)
	users.Post("/notes", userController.AddNote)

	// Plan routes
	plans := api.Group("/plans")
	plans.Post("/", planController.Create)
	plans.Get("/", planController.List)
	plans.Post("/push", planController.Push)
	plans.Post("/archive", planController.Archive)
	plans.Post("/unarchive", planController.Unarchive)
	plans.Delete("/:id", planController.Delete)

	// Inbox routes
	inbox := api.Group("/inbox")
	inbox.Get("/", inboxController.List)
	inbox.Post("/", inboxController.Capture)
	inbox.Post("/assign", inboxController.Assign)

	// Template routes
	templates := api.Group("/templates")
	templates.Get("/", templateController.List)
	templates.Post("/", templateController.Create)
	templates.Delete("/:id", templateController.Delete)

	// Dashboard routes. The metrics handler owns its method check so non-GET
	// calls get the JSON error envelope.
	app.All("/api/dashboard/metrics", aggregator.Metrics)
	api.Get("/dashboard/export", aggregator.Export)

	// Assistant
	api.Post("/assist/generate", assistController.Generate)

	// Billing routes; the webhook must stay outside any auth middleware
	billing := api.Group("/billing")
	billing.Post("/checkout", billingController.Checkout)
	billing.Post("/portal", billingController.Portal)
	billing.Get("/status", billingController.Status)
	billing.Post("/webhook", billingController.Webhook)

	// Settings routes
	settings := api.Group("/settings", middleware.Verify())
	settings.Post("/keys", settingsController.CreateKey)
	settings.Get("/keys", settingsController.ListKeys)
	settings.Delete("/keys/:id", settingsController.RevokeKey)

	// Contact form
	api.Post("/contact", contactController.Submit)

	// Logs API
	api.Get("/logs", middleware.Verify(), Controllers.GetLogs)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
}

func FiberConfig(db *gorm.DB, mail *email.Dispatcher) {
	fmt.Println("Server Up...")
	app := fiber.New()
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestCompression,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-API-Key",
		AllowCredentials: true,
		MaxAge:           300,
	}))

	SetupRoutes(app, db, mail)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	app.Listen(":" + port)
}
