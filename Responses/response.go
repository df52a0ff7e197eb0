package Responses

import (
	"github.com/gofiber/fiber/v2"
)

// Every endpoint answers with the same envelope: {ok: bool, error?: string}
// plus payload fields merged at the top level.

func OK(c *fiber.Ctx, payload fiber.Map) error {
	body := fiber.Map{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(body)
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"ok":    false,
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func ServerError(c *fiber.Ctx) error {
	return Error(c, fiber.StatusInternalServerError, "Server error")
}

func MethodNotAllowed(c *fiber.Ctx) error {
	return Error(c, fiber.StatusMethodNotAllowed, "Method not allowed")
}
