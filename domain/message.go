// Package domain contains core concepts of the game session system.
// This file defines log entries and related rules.
// Entries are immutable once appended; the log is append-only.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reserved authors for entries that no participant wrote.
const (
	NarratorID   = "gm"
	NarratorName = "GM"
	PartyID      = "party"
	PartyName    = "Party Actions"
)

// LogEntry represents one immutable entry of a room's event log.
type LogEntry struct {
	ID         uuid.UUID `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	AudioURL   string    `json:"audio_url,omitempty"`
	OOC        bool      `json:"is_ooc"`
	Roll       bool      `json:"is_roll"`
	At         time.Time `json:"created_at"`
}
