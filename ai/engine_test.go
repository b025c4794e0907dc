package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vdm-lab/contract"
	"vdm-lab/domain"
	"vdm-lab/mocks"
)

func testEngine(baseURL string, memory contract.MemoryStore) *Engine {
	return NewEngine(slog.Default(), Config{
		BaseURL:         baseURL,
		Model:           "test-model",
		ContextMessages: 20,
		RecallMemories:  3,
	}, memory)
}

func TestEngine_Generate(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/api/chat", r.URL.Path)

		var in chatRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&in))
		req.Equal("test-model", in.Model)
		req.False(in.Stream)
		req.NotEmpty(in.Messages)
		req.Equal("system", in.Messages[0].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Message: message{Role: "assistant", Content: "  The door opens.  "},
			Done:    true,
		})
	}))
	defer server.Close()

	engine := testEngine(server.URL, nil)

	text, err := engine.Generate(context.Background(), contract.TurnRequest{
		RoomID:  "tavern",
		Actions: map[string]string{"Alice": "open the door"},
	})
	req.NoError(err)
	req.Equal("The door opens.", text)
}

func TestEngine_Generate_BackendFailure(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	engine := testEngine(server.URL, nil)

	_, err := engine.Generate(context.Background(), contract.TurnRequest{RoomID: "tavern"})
	req.Error(err)
}

func TestEngine_GenerateStream(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in chatRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&in))
		req.True(in.Stream)

		enc := json.NewEncoder(w)
		enc.Encode(chatResponse{Message: message{Content: "The door "}})
		enc.Encode(chatResponse{Message: message{Content: "creaks open."}})
		enc.Encode(chatResponse{Done: true})
		// Anything after done must never reach the caller.
		enc.Encode(chatResponse{Message: message{Content: "ignored"}})
	}))
	defer server.Close()

	engine := testEngine(server.URL, nil)

	var fragments []string
	err := engine.GenerateStream(context.Background(), contract.TurnRequest{RoomID: "tavern"},
		func(fragment string) error {
			fragments = append(fragments, fragment)
			return nil
		})
	req.NoError(err)
	req.Equal([]string{"The door ", "creaks open."}, fragments)
}

func TestEngine_GenerateStream_EmitErrorStopsTheStream(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(chatResponse{Message: message{Content: "first"}})
		enc.Encode(chatResponse{Message: message{Content: "second"}})
		enc.Encode(chatResponse{Done: true})
	}))
	defer server.Close()

	engine := testEngine(server.URL, nil)

	calls := 0
	err := engine.GenerateStream(context.Background(), contract.TurnRequest{RoomID: "tavern"},
		func(string) error {
			calls++
			return fmt.Errorf("subscriber gone")
		})
	req.Error(err)
	req.Equal(1, calls)
}

func TestEngine_BuildMessages(t *testing.T) {
	t.Run("should pick the setup prompt for an empty room", func(t *testing.T) {
		req := require.New(t)
		engine := testEngine("http://unused", nil)

		messages := engine.buildMessages(context.Background(), contract.TurnRequest{RoomID: "tavern"})

		req.Len(messages, 1)
		req.Equal("system", messages[0].Role)
		req.Equal(setupPrompt, messages[0].Content)
	})

	t.Run("should pick the resume prompt and append the resume request", func(t *testing.T) {
		req := require.New(t)
		engine := testEngine("http://unused", nil)

		messages := engine.buildMessages(context.Background(), contract.TurnRequest{
			RoomID: "tavern",
			Resume: true,
		})

		req.Equal(resumePrompt, messages[0].Content)
		last := messages[len(messages)-1]
		req.Equal("user", last.Role)
		req.Contains(last.Content, "Summarize where we left off")
	})

	t.Run("should map history to roles and skip OOC chatter", func(t *testing.T) {
		req := require.New(t)
		engine := testEngine("http://unused", nil)

		history := []domain.LogEntry{
			{AuthorID: "conn-1", AuthorName: "Alice", Content: "I open the door"},
			{AuthorID: "conn-1", AuthorName: "Alice", Content: "// brb", OOC: true},
			{AuthorID: domain.NarratorID, AuthorName: domain.NarratorName, Content: "It creaks."},
		}
		messages := engine.buildMessages(context.Background(), contract.TurnRequest{
			RoomID:  "tavern",
			History: history,
			Actions: map[string]string{"Alice": "step through"},
		})

		req.Equal(gameplayPrompt, messages[0].Content)
		req.Equal("user", messages[1].Role)
		req.Equal("Alice: I open the door", messages[1].Content)
		req.Equal("assistant", messages[2].Role)
		req.Equal("It creaks.", messages[2].Content)
		for _, m := range messages {
			req.NotContains(m.Content, "brb")
		}
	})

	t.Run("should render the action block sorted by name", func(t *testing.T) {
		req := require.New(t)
		engine := testEngine("http://unused", nil)

		messages := engine.buildMessages(context.Background(), contract.TurnRequest{
			RoomID:  "tavern",
			History: []domain.LogEntry{{AuthorID: domain.NarratorID, Content: "Scene."}},
			Actions: map[string]string{"Charlie": "run", "Alice": "hide", "Bob": "fight"},
		})

		last := messages[len(messages)-1]
		req.Equal("user", last.Role)
		req.Contains(last.Content, "[Alice]: hide\n[Bob]: fight\n[Charlie]: run")
	})

	t.Run("should keep only the most recent history entries", func(t *testing.T) {
		req := require.New(t)
		engine := NewEngine(slog.Default(), Config{
			BaseURL:         "http://unused",
			Model:           "test-model",
			ContextMessages: 2,
		}, nil)

		var history []domain.LogEntry
		for i := 0; i < 10; i++ {
			history = append(history, domain.LogEntry{
				AuthorID:   "conn-1",
				AuthorName: "Alice",
				Content:    fmt.Sprintf("line %d", i),
			})
		}
		messages := engine.buildMessages(context.Background(), contract.TurnRequest{
			RoomID:  "tavern",
			History: history,
		})

		transcript := ""
		for _, m := range messages {
			transcript += m.Content + "\n"
		}
		req.NotContains(transcript, "line 7")
		req.Contains(transcript, "line 8")
		req.Contains(transcript, "line 9")
	})

	t.Run("should inject recalled memories as a system block", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		memory := mocks.NewMockMemoryStore(ctrl)
		memory.EXPECT().
			Recall(gomock.Any(), domain.RoomID("tavern"), "open the door", 3).
			Return([]string{"The innkeeper owes the party gold"}, nil).
			Times(1)

		engine := testEngine("http://unused", memory)

		messages := engine.buildMessages(context.Background(), contract.TurnRequest{
			RoomID:  "tavern",
			History: []domain.LogEntry{{AuthorID: domain.NarratorID, Content: "Scene."}},
			Actions: map[string]string{"Alice": "open the door"},
		})

		req.Contains(messages[0].Content, "Relevant memories from earlier sessions:")
		req.Contains(messages[0].Content, "The innkeeper owes the party gold")
	})

	t.Run("should prompt without memories when recall fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		memory := mocks.NewMockMemoryStore(ctrl)
		memory.EXPECT().
			Recall(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("index closed")).
			Times(1)

		engine := testEngine("http://unused", memory)

		messages := engine.buildMessages(context.Background(), contract.TurnRequest{
			RoomID:  "tavern",
			History: []domain.LogEntry{{AuthorID: domain.NarratorID, Content: "Scene."}},
			Actions: map[string]string{"Alice": "look"},
		})

		for _, m := range messages {
			req.NotContains(m.Content, "Relevant memories")
		}
	})
}

func TestCoalesceSameRole(t *testing.T) {
	req := require.New(t)

	merged := coalesceSameRole([]message{
		{Role: "system", Content: "prompt"},
		{Role: "system", Content: "memories"},
		{Role: "user", Content: "Alice: hi"},
		{Role: "user", Content: "Bob: hello"},
		{Role: "assistant", Content: "Greetings."},
	})

	req.Len(merged, 3)
	req.Equal("system", merged[0].Role)
	req.Equal("prompt\n\nmemories", merged[0].Content)
	req.Equal("Alice: hi\n\nBob: hello", merged[1].Content)
	req.Equal("assistant", merged[2].Role)
}
