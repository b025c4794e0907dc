// Package audio implements the audio-synthesis collaborator on top of an
// HTTP text-to-speech service and a local file store served over HTTP.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const streamChunkSize = 8 * 1024

// Config points at the TTS backend and the directory audio files are served
// from under /audio/.
type Config struct {
	BaseURL   string
	Voice     string
	OutputDir string
	Voices    []string
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Engine turns narrator text into audio, either one encoded file referenced
// by URL or a stream of raw chunks.
type Engine struct {
	log    *slog.Logger
	client *http.Client
	cfg    Config
}

func NewEngine(log *slog.Logger, cfg Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio output dir: %w", err)
	}
	return &Engine{log: log, client: &http.Client{}, cfg: cfg}, nil
}

// Voices lists the voice names offered to clients.
func (e *Engine) Voices() []string {
	return e.cfg.Voices
}

// Synthesize renders the whole text into one file in the output directory and
// returns its serving URL. The file extension follows the detected payload
// type, since backends differ on the codec they emit.
func (e *Engine) Synthesize(ctx context.Context, text string) (string, error) {
	body, err := e.post(ctx, "/synthesize", text)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("reading synthesized audio: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}

	name := uuid.NewString() + mimetype.Detect(data).Extension()
	if err := os.WriteFile(filepath.Join(e.cfg.OutputDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing audio file: %w", err)
	}
	return "/audio/" + name, nil
}

// SynthesizeStream forwards raw audio chunks as the backend produces them.
func (e *Engine) SynthesizeStream(ctx context.Context, text string,
	emit func(chunk []byte) error) error {
	body, err := e.post(ctx, "/stream", text)
	if err != nil {
		return err
	}
	defer body.Close()

	buf := make([]byte, streamChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if emitErr := emit(chunk); emitErr != nil {
				return emitErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading audio stream: %w", err)
		}
	}
}

func (e *Engine) post(ctx context.Context, endpoint, text string) (io.ReadCloser, error) {
	text = sanitizeForTTS(text)
	if text == "" {
		return io.NopCloser(strings.NewReader("")), nil
	}

	payload, err := json.Marshal(synthesizeRequest{Text: text, Voice: e.cfg.Voice})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(e.cfg.BaseURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling TTS backend: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("TTS backend returned %s", resp.Status)
	}
	return resp.Body, nil
}

var (
	markdownMarks = regexp.MustCompile(`[\*_]`)
	bracketed     = regexp.MustCompile(`\[.*?\]|\(.*?\)`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// sanitizeForTTS strips markdown and stage directions before synthesis.
func sanitizeForTTS(text string) string {
	text = markdownMarks.ReplaceAllString(text, "")
	text = bracketed.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
