// Package event defines the outbound events a room emits toward its
// subscribers. Each event maps to one wire message kind.
package event

import (
	"encoding/base64"

	"vdm-lab/domain"
)

type Outbound interface {
	Kind() string
	Payload() any
}

// SystemNotice is a server-authored informational message.
type SystemNotice struct {
	Message string `json:"message"`
}

func (e SystemNotice) Kind() string { return "system" }
func (e SystemNotice) Payload() any { return e }

// ChatEntry carries one appended log entry.
type ChatEntry struct {
	Entry domain.LogEntry
}

func (e ChatEntry) Kind() string { return "chat" }
func (e ChatEntry) Payload() any { return e.Entry }

// AudioRef points at a non-streamed audio resource served over HTTP.
type AudioRef struct {
	URL string `json:"url"`
}

func (e AudioRef) Kind() string { return "audio" }
func (e AudioRef) Payload() any { return e }

// StateUpdate carries a full room snapshot so every client converges on a
// consistent view after each mutation.
type StateUpdate struct {
	State domain.Snapshot
}

func (e StateUpdate) Kind() string { return "state_update" }
func (e StateUpdate) Payload() any { return e.State }

// StreamStart marks the beginning of a streamed narrator turn.
type StreamStart struct{}

func (e StreamStart) Kind() string { return "stream_start" }
func (e StreamStart) Payload() any { return struct{}{} }

// ChatChunk is one incremental text fragment of a streamed turn.
type ChatChunk struct {
	Content string `json:"content"`
}

func (e ChatChunk) Kind() string { return "chat_chunk" }
func (e ChatChunk) Payload() any { return e }

// AudioChunk is one incremental audio fragment, base64-encoded for the wire.
type AudioChunk struct {
	Chunk string `json:"chunk"`
}

func NewAudioChunk(raw []byte) AudioChunk {
	return AudioChunk{Chunk: base64.StdEncoding.EncodeToString(raw)}
}

func (e AudioChunk) Kind() string { return "audio_chunk" }
func (e AudioChunk) Payload() any { return e }

// StreamEnd closes a streamed turn and carries the final narrator entry.
type StreamEnd struct {
	Final domain.LogEntry `json:"final_message"`
}

func (e StreamEnd) Kind() string { return "stream_end" }
func (e StreamEnd) Payload() any { return e }
