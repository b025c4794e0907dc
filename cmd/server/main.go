package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"vdm-lab/ai"
	"vdm-lab/audio"
	"vdm-lab/auth"
	"vdm-lab/contract"
	"vdm-lab/game"
	"vdm-lab/infrastructure/ws"
	"vdm-lab/internal"
	"vdm-lab/memory"
	"vdm-lab/moderation"
	"vdm-lab/repositories"
	"vdm-lab/runtime"
	"vdm-lab/runtime/workers"
	"vdm-lab/services"
)

// Exit codes to provide meaningful status to the operating system or service
// manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only responsibility is to
	// call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so deferred cleanup always executes before the
// process exits.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := internal.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + bluge memory index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	memories, err := memory.Open(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open memory index: %w", err)
	}
	defer func() {
		logger.Info("Closing memory index...")
		_ = memories.Close()
	}()

	roomRepository := repositories.NewRoomRepository(db, logger)
	userRepository := repositories.NewUserRepository(db, logger)

	// 3. Collaborators
	accounts := auth.NewManager(logger, userRepository,
		auth.NewTokenIssuer(config.TokenSecret, config.AuthTokenDuration))

	story := ai.NewEngine(logger, ai.Config{
		BaseURL:         config.StoryBaseURL,
		Model:           config.StoryModel,
		ContextMessages: config.ContextMessages,
		RecallMemories:  config.RecallMemories,
	}, memories)

	var audioEngine contract.AudioEngine
	var voices ws.VoiceLister
	if config.EnableAudio {
		engine, err := audio.NewEngine(logger, audio.Config{
			BaseURL:   config.TTSBaseURL,
			Voice:     config.TTSVoice,
			OutputDir: config.AudioOutDir,
			Voices:    splitVoices(config.TTSVoices),
		})
		if err != nil {
			return exitRuntime, err
		}
		audioEngine = engine
		voices = engine
	}

	moderator, err := moderation.FromFile(config.CensoredWordsFile,
		internal.CharacterRune(config.CharReplacement))
	if err != nil {
		return exitConfig, fmt.Errorf("loading censored words: %w", err)
	}

	// 4. Runtime
	rooms := runtime.NewRooms(logger, roomRepository)
	registry := runtime.NewRegistry(logger)
	orchestrator := runtime.NewOrchestrator(logger, rooms, registry,
		story, audioEngine, config.EnableStream, config.TurnTimeout)
	dispatcher := runtime.NewDispatcher(logger, rooms, registry, orchestrator,
		memories, game.NewRoller(), moderator)
	gameService := services.NewGameService(logger, accounts, rooms, registry,
		orchestrator, dispatcher)

	// 5. Background workers under supervision
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(
		workers.NewStorageGC(db, config.StorageGCPeriod, logger),
		workers.NewAutosave(rooms, roomRepository, config.AutosaveInterval, logger),
	)
	go supervisor.Run(ctx)

	// 6. HTTP + websocket surface
	server := ws.NewServer(logger, accounts, gameService, voices,
		config.AudioOutDir, config.ConnectionBufferSize, config.WriteTimeout)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: server.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, err
		}
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	supervisor.Stop()
	return exitOK, nil
}

func splitVoices(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	voices := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			voices = append(voices, v)
		}
	}
	return voices
}
