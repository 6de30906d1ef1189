package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/llm/prompts"
	"github.com/rentatutor/rentatutor/internal/model"
)

var _ live.Responder = (*Client)(nil)

func testDescriptor() model.SessionDescriptor {
	return model.SessionDescriptor{
		TutorID:         "2",
		TutorName:       "Ahmad Hassan",
		TutorRating:     4.8,
		Subject:         "Physics",
		DurationMinutes: 10,
		Price:           decimal.RequireFromString("1.50"),
	}
}

// fakeCompletions serves /chat/completions with the given content and
// records the last request.
func fakeCompletions(t *testing.T, content string, last *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if last != nil {
			if err := json.NewDecoder(r.Body).Decode(last); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	if err := prompts.Load(prompts.FS); err != nil {
		t.Fatalf("prompts.Load: %v", err)
	}
	return New(baseURL, "test-key", "test-model", prompts.VariantStandard)
}

func TestReply(t *testing.T) {
	var req map[string]any
	srv := fakeCompletions(t, `{"reply": "  Think of force pairs acting on different objects.  "}`, &req)
	c := newTestClient(t, srv.URL)

	history := []model.ChatMessage{
		{Sender: model.SenderTutor, Text: live.Greeting, Time: "0:00"},
		{Sender: model.SenderStudent, Text: "Why do things move at all?", Time: "0:05"},
	}
	got, err := c.Reply(context.Background(), testDescriptor(), history)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "Think of force pairs acting on different objects." {
		t.Errorf("Reply() = %q", got)
	}

	if req["model"] != "test-model" {
		t.Errorf("expected model test-model, got %v", req["model"])
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(msgs))
	}
	system, _ := msgs[0].(map[string]any)
	if content, _ := system["content"].(string); !strings.Contains(content, "Ahmad Hassan") {
		t.Error("system prompt should name the tutor")
	}
	user, _ := msgs[1].(map[string]any)
	if content, _ := user["content"].(string); !strings.Contains(content, "Why do things move at all?") {
		t.Errorf("user message should carry the latest student line, got %q", content)
	}
}

func TestReplyErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "plain text answer"},
		{"empty reply", `{"reply": "   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeCompletions(t, tt.content, nil)
			c := newTestClient(t, srv.URL)
			_, err := c.Reply(context.Background(), testDescriptor(), []model.ChatMessage{
				{Sender: model.SenderStudent, Text: "hello", Time: "0:01"},
			})
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReplyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)

	_, err := c.Reply(context.Background(), testDescriptor(), nil)
	if err == nil {
		t.Fatal("expected API error")
	}
	if !strings.Contains(err.Error(), "LLM API call") {
		t.Errorf("expected wrapped API error, got %v", err)
	}
}
