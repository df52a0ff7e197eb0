package Assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	content string
	err     error
	gotReq  openai.ChatCompletionRequest
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.gotReq = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func newAssistApp(stub *stubCompleter) *fiber.App {
	assist := &Controller{Client: stub, Model: openai.GPT4oMini}
	app := fiber.New()
	app.Post("/api/assist/generate", assist.Generate)
	return app
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest("POST", target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGenerateReturnsParsedPlan(t *testing.T) {
	stub := &stubCompleter{content: `{
		"title": "Couch to 5k, week 1",
		"tasks": [
			{"title": "Run 20 minutes", "dayOffset": 0, "notes": "easy pace"},
			{"title": "Rest", "dayOffset": 1, "notes": ""}
		]
	}`}
	app := newAssistApp(stub)

	resp, err := app.Test(postJSON("/api/assist/generate",
		`{"plannerEmail":"p@x.com","prompt":"beginner running week","days":7}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Plan GeneratedPlan `json:"plan"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "Couch to 5k, week 1", payload.Plan.Title)
	require.Len(t, payload.Plan.Tasks, 2)
	assert.Equal(t, 1, payload.Plan.Tasks[1].DayOffset)

	require.Len(t, stub.gotReq.Messages, 2)
	assert.Contains(t, stub.gotReq.Messages[1].Content, "7 days")
	assert.Contains(t, stub.gotReq.Messages[1].Content, "beginner running week")
}

func TestGenerateClampsDays(t *testing.T) {
	stub := &stubCompleter{content: `{"title":"x","tasks":[{"title":"t","dayOffset":0}]}`}
	app := newAssistApp(stub)

	resp, err := app.Test(postJSON("/api/assist/generate",
		`{"prompt":"anything","days":500}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, stub.gotReq.Messages[1].Content, "7 days")
}

func TestGenerateRequiresPrompt(t *testing.T) {
	app := newAssistApp(&stubCompleter{})

	resp, err := app.Test(postJSON("/api/assist/generate", `{"plannerEmail":"p@x.com"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGenerateSurfacesUpstreamFailure(t *testing.T) {
	app := newAssistApp(&stubCompleter{err: errors.New("rate limited")})

	resp, err := app.Test(postJSON("/api/assist/generate", `{"prompt":"anything"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestGenerateRejectsMalformedCompletion(t *testing.T) {
	app := newAssistApp(&stubCompleter{content: "sorry, I cannot do that"})

	resp, err := app.Test(postJSON("/api/assist/generate", `{"prompt":"anything"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestGenerateRejectsEmptyTaskList(t *testing.T) {
	app := newAssistApp(&stubCompleter{content: `{"title":"empty","tasks":[]}`})

	resp, err := app.Test(postJSON("/api/assist/generate", `{"prompt":"anything"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}
