package GoogleTasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) Resolve(context.Context, string, string) (string, error) {
	return string(s), nil
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(staticTokens("tok-123"))
	client.BaseURL = server.URL
	return client, server
}

func TestListTaskListsRequest(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{{"id": "l1", "title": "My Tasks"}},
		})
	})
	defer server.Close()

	lists, err := client.ListTaskLists(context.Background(), "p@x.com", "u@x.com")
	require.NoError(t, err)

	assert.Equal(t, "/users/@me/lists", gotPath)
	assert.Equal(t, "maxResults=100", gotQuery)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	require.Len(t, lists, 1)
	assert.Equal(t, "l1", lists[0].ID)
}

func TestListTasksIncludesCompleted(t *testing.T) {
	var gotPath, gotQuery string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"id": "t1", "title": "Run", "status": "completed", "completed": "2024-01-10T09:00:00Z"},
				{"id": "t2", "title": "Read", "status": "needsAction"},
			},
		})
	})
	defer server.Close()

	tasks, err := client.ListTasks(context.Background(), "p@x.com", "u@x.com", "l1")
	require.NoError(t, err)

	assert.Equal(t, "/lists/l1/tasks", gotPath)
	assert.Equal(t, "maxResults=100&showCompleted=true", gotQuery)
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].IsCompleted())
	assert.False(t, tasks[1].IsCompleted())
}

func TestInsertTaskPostsBody(t *testing.T) {
	var gotMethod string
	var gotBody map[string]string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "new-task"})
	})
	defer server.Close()

	created, err := client.InsertTask(context.Background(), "p@x.com", "u@x.com", "l1", Task{
		Title: "Stretch",
		Notes: "5 minutes",
		Due:   "2024-01-12T00:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Stretch", gotBody["title"])
	assert.Equal(t, "new-task", created.ID)
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
	})
	defer server.Close()

	_, err := client.ListTaskLists(context.Background(), "p@x.com", "u@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestTaskCompletedAt(t *testing.T) {
	task := Task{Status: "completed", Completed: "2024-01-10T09:00:00Z"}
	want := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	assert.True(t, task.CompletedAt().Equal(want))

	assert.True(t, Task{Status: "completed", Completed: "garbage"}.CompletedAt().IsZero())
	assert.False(t, Task{Status: "completed"}.IsCompleted())
}
