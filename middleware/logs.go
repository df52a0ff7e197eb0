package middleware

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"Plan2Tasks/Models"
)

// LogData is one request-log line, written as JSON to the log file and
// consumed by the logs API in Controllers.
type LogData struct {
	Timestamp    time.Time     `json:"timestamp"`
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	URL          string        `json:"url"`
	Status       int           `json:"status"`
	Latency      time.Duration `json:"latency"`
	IP           string        `json:"ip"`
	UserAgent    string        `json:"user_agent"`
	Error        string        `json:"error,omitempty"`
	PlannerEmail string        `json:"planner_email,omitempty"`
}

const requestLogPath = "logs/requests.log"

var logFileMu sync.Mutex

// RequestLogger logs every request as a JSON line. Health checks are skipped.
func RequestLogger() fiber.Handler {
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Printf("Error creating logs directory: %v", err)
	}

	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		data := LogData{
			Timestamp: start,
			Method:    c.Method(),
			Path:      c.Path(),
			URL:       c.OriginalURL(),
			Status:    c.Response().StatusCode(),
			Latency:   time.Since(start),
			IP:        c.IP(),
			UserAgent: c.Get("User-Agent"),
		}
		if err != nil {
			data.Error = err.Error()
		}
		if planner, ok := c.Locals("planner").(Models.Planner); ok {
			data.PlannerEmail = planner.Email
		}

		line, marshalErr := json.Marshal(data)
		if marshalErr != nil {
			return err
		}
		log.Println(string(line))
		appendLogLine(requestLogPath, line)

		return err
	}
}

func appendLogLine(path string, line []byte) {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(append(line, '\n'))
}
