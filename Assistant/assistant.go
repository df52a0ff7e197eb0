package Assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	openai "github.com/sashabaranov/go-openai"

	"Plan2Tasks/Responses"
)

const systemPrompt = `You turn a coaching brief into a task plan. Respond with JSON only:
{"title": string, "tasks": [{"title": string, "dayOffset": int, "notes": string}]}
dayOffset is days from the plan start date, starting at 0. Stay within the requested number of days.`

// GeneratedPlan is the shape the model is asked to produce; it maps directly
// onto the plan-create request body.
type GeneratedPlan struct {
	Title string `json:"title"`
	Tasks []struct {
		Title     string `json:"title"`
		DayOffset int    `json:"dayOffset"`
		Notes     string `json:"notes"`
	} `json:"tasks"`
}

// completer is the slice of the OpenAI client we use; tests stub it.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Controller generates draft plans from a planner's prompt.
type Controller struct {
	Client completer
	Model  string
}

func NewController() *Controller {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Controller{
		Client: openai.NewClient(os.Getenv("OPENAI_API_KEY")),
		Model:  model,
	}
}

type generateRequest struct {
	PlannerEmail string `json:"plannerEmail"`
	Prompt       string `json:"prompt"`
	Days         int    `json:"days"`
}

// Generate asks the model for a task plan and returns it unsaved; the
// planner reviews and creates it through the normal plan endpoint.
func (a *Controller) Generate(c *fiber.Ctx) error {
	var input generateRequest
	if err := c.BodyParser(&input); err != nil {
		return Responses.BadRequest(c, "Invalid request body")
	}
	if input.Prompt == "" {
		return Responses.BadRequest(c, "Missing prompt")
	}
	days := input.Days
	if days <= 0 || days > 31 {
		days = 7
	}

	resp, err := a.Client.CreateChatCompletion(c.Context(), openai.ChatCompletionRequest{
		Model: a.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Plan length: %d days.\nBrief: %s", days, input.Prompt)},
		},
	})
	if err != nil {
		log.Printf("assistant: completion failed for %s: %v", input.PlannerEmail, err)
		return Responses.Error(c, fiber.StatusBadGateway, "Plan generation failed")
	}
	if len(resp.Choices) == 0 {
		return Responses.Error(c, fiber.StatusBadGateway, "Plan generation returned nothing")
	}

	var plan GeneratedPlan
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &plan); err != nil {
		log.Printf("assistant: unparseable completion for %s: %v", input.PlannerEmail, err)
		return Responses.Error(c, fiber.StatusBadGateway, "Plan generation returned malformed output")
	}
	if len(plan.Tasks) == 0 {
		return Responses.Error(c, fiber.StatusBadGateway, "Plan generation returned no tasks")
	}

	return Responses.OK(c, fiber.Map{"plan": plan})
}
