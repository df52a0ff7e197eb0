package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"Plan2Tasks/CronJobs"
	"Plan2Tasks/FiberConfig"
	"Plan2Tasks/GoogleTasks"
	"Plan2Tasks/Models"
	"Plan2Tasks/email"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using process environment")
	}

	Models.Connect()

	mail := email.NewDispatcher(email.ConfigFromEnv(), os.Getenv("APP_URL"), 1, 5)

	monitor := CronJobs.NewMonitor(Models.DB, GoogleTasks.NewTokenManager(Models.DB), mail, false)
	if err := monitor.Start(); err != nil {
		log.Printf("Failed to start monitor: %v", err)
	}
	defer monitor.Stop()

	FiberConfig.FiberConfig(Models.DB, mail)
}
