package internal

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromString builds a text slog logger from a level name, defaulting
// to INFO on anything unrecognized.
func GetLoggerFromString(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// CharacterRune enforces that a replacement setting is one single character.
func CharacterRune(str string) rune {
	r := []rune(str)
	if len(r) != 1 {
		return '*'
	}
	return r[0]
}
