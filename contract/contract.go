//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"vdm-lab/domain"
	"vdm-lab/domain/event"
)

// Profile is the stable identity resolved from a session token.
type Profile struct {
	Name        string
	AvatarStyle string
}

// Directory validates opaque session tokens against the identity collaborator.
// Any invalid, expired, or unknown token yields errors.ErrUnauthorized; the
// caller must refuse the connection and mutate nothing.
type Directory interface {
	Authenticate(token string) (Profile, error)
}

// RoomStore persists room snapshots between process lifetimes.
type RoomStore interface {
	Save(snapshot domain.Snapshot) error
	Load(roomID domain.RoomID) (domain.Snapshot, bool, error)
}

// UserAccount is a registered player as stored on disk.
type UserAccount struct {
	Name         string
	AvatarStyle  string
	PasswordHash string
}

// UserStore persists registered player accounts.
type UserStore interface {
	Put(account UserAccount) error
	Get(name string) (UserAccount, bool, error)
}

// TurnRequest is everything the generation collaborator needs for one turn:
// the room history plus either the collected actions keyed by display name,
// or a resume request when Resume is set and Actions is empty.
type TurnRequest struct {
	RoomID  domain.RoomID
	History []domain.LogEntry
	Actions map[string]string
	Resume  bool
}

// StoryEngine is the turn-generation collaborator. GenerateStream yields
// ordered text fragments through emit; the producer is not assumed to be
// resumable after an error.
type StoryEngine interface {
	Generate(ctx context.Context, req TurnRequest) (string, error)
	GenerateStream(ctx context.Context, req TurnRequest, emit func(fragment string) error) error
}

// AudioEngine is the audio-synthesis collaborator. Synthesize returns the URL
// of an externally served resource; SynthesizeStream yields raw audio chunks.
type AudioEngine interface {
	Synthesize(ctx context.Context, text string) (string, error)
	SynthesizeStream(ctx context.Context, text string, emit func(chunk []byte) error) error
}

// MemoryStore accepts free-text annotations tied to a room, fire-and-forget
// from the core's perspective, and recalls the most relevant ones for prompts.
type MemoryStore interface {
	Remember(ctx context.Context, roomID domain.RoomID, text string) error
	Recall(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]string, error)
}

// Broadcaster fans an outbound event out to every live subscriber of a room.
// Within one room, events reach each subscriber in the order they were issued.
type Broadcaster interface {
	Broadcast(roomID domain.RoomID, evt event.Outbound)
}

// Subscriber is one live transport endpoint registered under a room. Deliver
// enqueues an already-serialized frame; it must not block, and a failure
// concerns this subscriber only.
type Subscriber interface {
	Deliver(frame []byte) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; the supervisor recovers its panics.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
