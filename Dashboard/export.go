package Dashboard

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"

	"Plan2Tasks/Responses"
)

// Export handles GET /api/dashboard/export?plannerEmail=... and streams the
// engagement table as an xlsx workbook.
func (a *Aggregator) Export(c *fiber.Ctx) error {
	plannerEmail := c.Query("plannerEmail")
	if plannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}

	metrics, err := a.Collect(c.Context(), plannerEmail)
	if err != nil {
		log.Printf("dashboard export failed for %s: %v", plannerEmail, err)
		return Responses.ServerError(c)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Engagement"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"User", "Connected", "Today", "This Week", "Yesterday", "Last Week", "Completion Rate %", "Active Plans", "Last Activity"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, eng := range metrics.UserEngagement {
		lastActivity := ""
		if eng.LastActivity != nil {
			lastActivity = eng.LastActivity.Format(time.RFC3339)
		}
		values := []interface{}{
			eng.UserEmail, eng.IsConnected, eng.Today, eng.ThisWeek,
			eng.Yesterday, eng.LastWeek, eng.CompletionRate, eng.ActivePlans, lastActivity,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	filename := fmt.Sprintf("engagement_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))

	buf, err := f.WriteToBuffer()
	if err != nil {
		log.Printf("dashboard export: failed to build workbook: %v", err)
		return Responses.ServerError(c)
	}
	return c.Send(buf.Bytes())
}
