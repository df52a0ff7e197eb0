package Controllers

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"Plan2Tasks/Responses"
	"Plan2Tasks/middleware"
)

const requestLogPath = "logs/requests.log"

// LogGroup aggregates request-log lines by path and method.
type LogGroup struct {
	Path        string               `json:"path"`
	Method      string               `json:"method"`
	Count       int                  `json:"count"`
	AvgLatency  float64              `json:"avg_latency_ms"`
	SuccessRate float64              `json:"success_rate"`
	Logs        []middleware.LogData `json:"logs"`
}

// GetLogs reads the request log, filters by optional date range, path and
// method, and returns entries grouped per endpoint.
func GetLogs(c *fiber.Ctx) error {
	pathFilter := c.Query("path", "")
	methodFilter := c.Query("method", "")

	dateFrom := time.Time{}
	dateTo := time.Now()
	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Responses.BadRequest(c, "date_from must be YYYY-MM-DD")
		}
		dateFrom = parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Responses.BadRequest(c, "date_to must be YYYY-MM-DD")
		}
		dateTo = parsed.AddDate(0, 0, 1)
	}

	entries, err := readLogEntries(requestLogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Responses.OK(c, fiber.Map{"groups": []LogGroup{}, "total_logs": 0})
		}
		return Responses.ServerError(c)
	}

	groups := make(map[string]*LogGroup)
	total := 0
	for _, entry := range entries {
		if entry.Timestamp.Before(dateFrom) || entry.Timestamp.After(dateTo) {
			continue
		}
		if pathFilter != "" && entry.Path != pathFilter {
			continue
		}
		if methodFilter != "" && entry.Method != methodFilter {
			continue
		}
		total++

		key := entry.Method + " " + entry.Path
		group, ok := groups[key]
		if !ok {
			group = &LogGroup{Path: entry.Path, Method: entry.Method}
			groups[key] = group
		}
		group.Count++
		group.AvgLatency += float64(entry.Latency.Milliseconds())
		if entry.Status < 400 {
			group.SuccessRate++
		}
		group.Logs = append(group.Logs, entry)
	}

	result := make([]LogGroup, 0, len(groups))
	for _, group := range groups {
		group.AvgLatency /= float64(group.Count)
		group.SuccessRate = group.SuccessRate / float64(group.Count) * 100
		result = append(result, *group)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Count > result[j].Count })

	// Pagination over groups keeps response sizes sane on busy days.
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	start := (page - 1) * pageSize
	if start > len(result) {
		start = len(result)
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}

	return Responses.OK(c, fiber.Map{
		"groups":       result[start:end],
		"total_logs":   total,
		"total_groups": len(result),
		"page":         page,
		"page_size":    pageSize,
	})
}

func readLogEntries(path string) ([]middleware.LogData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []middleware.LogData
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry middleware.LogData
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
