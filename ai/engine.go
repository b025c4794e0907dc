// Package ai implements the turn-generation collaborator on top of an
// Ollama-compatible chat endpoint.
package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"vdm-lab/contract"
	"vdm-lab/domain"
)

// Config selects the backend endpoint and how much context each prompt gets.
type Config struct {
	BaseURL         string
	Model           string
	ContextMessages int
	RecallMemories  int
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

// Engine talks to the generation backend over HTTP. It recalls room memories
// through the annotation store before each prompt when one is configured.
type Engine struct {
	log    *slog.Logger
	client *http.Client
	cfg    Config
	memory contract.MemoryStore
}

func NewEngine(log *slog.Logger, cfg Config, memory contract.MemoryStore) *Engine {
	return &Engine{
		log:    log,
		client: &http.Client{},
		cfg:    cfg,
		memory: memory,
	}
}

// Generate returns the whole narrator turn as one value.
func (e *Engine) Generate(ctx context.Context, req contract.TurnRequest) (string, error) {
	resp, err := e.post(ctx, chatRequest{
		Model:    e.cfg.Model,
		Messages: e.buildMessages(ctx, req),
		Stream:   false,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding generation response: %w", err)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

// GenerateStream yields the narrator turn as ordered text fragments. The
// producer is not restartable: an error mid-stream ends the turn with
// whatever the caller accumulated so far.
func (e *Engine) GenerateStream(ctx context.Context, req contract.TurnRequest,
	emit func(fragment string) error) error {
	resp, err := e.post(ctx, chatRequest{
		Model:    e.cfg.Model,
		Messages: e.buildMessages(ctx, req),
		Stream:   true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("decoding stream chunk: %w", err)
		}
		if chunk.Message.Content != "" {
			if err := emit(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading generation stream: %w", err)
	}
	return nil
}

func (e *Engine) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling generation backend: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("generation backend returned %s", resp.Status)
	}
	return resp, nil
}

// buildMessages shapes the system prompt, recalled memories, recent history,
// and the current action block into a chat transcript.
func (e *Engine) buildMessages(ctx context.Context, req contract.TurnRequest) []message {
	messages := []message{{Role: "system", Content: e.systemPrompt(req)}}

	if recalled := e.recall(ctx, req); len(recalled) > 0 {
		messages = append(messages, message{
			Role:    "system",
			Content: "Relevant memories from earlier sessions:\n- " + strings.Join(recalled, "\n- "),
		})
	}

	for _, entry := range tail(req.History, e.cfg.ContextMessages) {
		if entry.OOC {
			continue
		}
		if entry.AuthorID == domain.NarratorID {
			messages = append(messages, message{Role: "assistant", Content: entry.Content})
			continue
		}
		messages = append(messages, message{
			Role:    "user",
			Content: fmt.Sprintf("%s: %s", entry.AuthorName, entry.Content),
		})
	}

	if len(req.Actions) > 0 {
		messages = append(messages, actionsBlock(req.Actions))
	} else if req.Resume {
		messages = append(messages, message{
			Role:    "user",
			Content: "Summarize where we left off and continue the story.",
		})
	}
	return coalesceSameRole(messages)
}

func (e *Engine) systemPrompt(req contract.TurnRequest) string {
	switch {
	case req.Resume:
		return resumePrompt
	case len(req.History) == 0 && len(req.Actions) == 0:
		return setupPrompt
	default:
		return gameplayPrompt
	}
}

func (e *Engine) recall(ctx context.Context, req contract.TurnRequest) []string {
	if e.memory == nil || e.cfg.RecallMemories <= 0 {
		return nil
	}
	query := queryFromActions(req.Actions)
	recalled, err := e.memory.Recall(ctx, req.RoomID, query, e.cfg.RecallMemories)
	if err != nil {
		e.log.Warn("Memory recall failed, prompting without memories",
			"room_id", req.RoomID, "error", err)
		return nil
	}
	return recalled
}

func queryFromActions(actions map[string]string) string {
	parts := make([]string, 0, len(actions))
	for _, text := range actions {
		parts = append(parts, text)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func actionsBlock(actions map[string]string) message {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("[%s]: %s", name, actions[name]))
	}
	return message{
		Role: "user",
		Content: "Here are the actions for the current turn:\n" +
			strings.Join(lines, "\n") + "\n\n" + actionsInstruction,
	}
}

func tail(entries []domain.LogEntry, n int) []domain.LogEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// coalesceSameRole merges consecutive messages of the same role; some
// backends reject transcripts with repeated roles.
func coalesceSameRole(messages []message) []message {
	out := make([]message, 0, len(messages))
	for _, m := range messages {
		if len(out) > 0 && out[len(out)-1].Role == m.Role {
			out[len(out)-1].Content = strings.TrimSpace(
				out[len(out)-1].Content + "\n\n" + m.Content)
			continue
		}
		out = append(out, m)
	}
	return out
}
