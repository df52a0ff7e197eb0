package Dashboard

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"Plan2Tasks/Responses"
)

// Metrics handles GET /api/dashboard/metrics?plannerEmail=...
// The method check lives in the handler so non-GET calls get the same JSON
// error envelope as everything else.
func (a *Aggregator) Metrics(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodGet {
		return Responses.MethodNotAllowed(c)
	}

	plannerEmail := c.Query("plannerEmail")
	if plannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}

	metrics, err := a.Collect(c.Context(), plannerEmail)
	if err != nil {
		log.Printf("dashboard metrics failed for %s: %v", plannerEmail, err)
		switch {
		case errors.Is(err, ErrFetchBundles):
			return Responses.Error(c, fiber.StatusInternalServerError, ErrFetchBundles.Error())
		case errors.Is(err, ErrFetchTasks):
			return Responses.Error(c, fiber.StatusInternalServerError, ErrFetchTasks.Error())
		default:
			return Responses.ServerError(c)
		}
	}

	return Responses.OK(c, fiber.Map{"metrics": metrics})
}
