package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"vdm-lab/contract"
	"vdm-lab/domain"
	"vdm-lab/domain/event"
)

// Orchestrator drives one turn-resolution cycle per room at a time. The
// mutual-exclusion guard lives in the room's turn state; the orchestrator
// never holds a room lock while waiting on the generation or audio
// collaborators, so joins and chat keep flowing while the narrator thinks.
type Orchestrator struct {
	log         *slog.Logger
	rooms       *Rooms
	broadcaster contract.Broadcaster
	story       contract.StoryEngine
	audio       contract.AudioEngine
	streaming   bool
	turnTimeout time.Duration
}

func NewOrchestrator(log *slog.Logger, rooms *Rooms, broadcaster contract.Broadcaster,
	story contract.StoryEngine, audio contract.AudioEngine,
	streaming bool, turnTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		rooms:       rooms,
		broadcaster: broadcaster,
		story:       story,
		audio:       audio,
		streaming:   streaming,
		turnTimeout: turnTimeout,
	}
}

// SubmitTurn runs the two-phase turn cycle: collect the pending actions into
// one aggregate party entry, invoke the generation collaborator, stream its
// output back, and return the room to WaitingForActions. A submit while a
// resolution is in flight, or with nothing pending, is a silent no-op.
func (o *Orchestrator) SubmitTurn(ctx context.Context, room *domain.Room, submitter domain.Participant) {
	actions, ok := room.BeginTurn()
	if !ok {
		return
	}

	roomID := room.ID()
	o.broadcaster.Broadcast(roomID, event.SystemNotice{
		Message: fmt.Sprintf("%s submitted the turn. The GM ponders...", submitter.Name),
	})
	o.broadcaster.Broadcast(roomID, event.StateUpdate{State: room.Snapshot()})

	history := room.History()
	room.Append(domain.PartyID, domain.PartyName, consolidateActions(actions))

	o.resolve(ctx, room, contract.TurnRequest{
		RoomID:  roomID,
		History: history,
		Actions: actions,
	})
}

// Resume runs a host-only resolution against a synthesized "summarize and
// continue" request instead of aggregated actions. Non-hosts and inactive
// rooms are ignored.
func (o *Orchestrator) Resume(ctx context.Context, room *domain.Room, caller domain.Participant) {
	if !room.BeginResume(caller.ID) {
		return
	}

	roomID := room.ID()
	o.broadcaster.Broadcast(roomID, event.SystemNotice{
		Message: fmt.Sprintf("%s is resuming the game...", caller.Name),
	})
	o.broadcaster.Broadcast(roomID, event.StateUpdate{State: room.Snapshot()})

	o.resolve(ctx, room, contract.TurnRequest{
		RoomID:  roomID,
		History: room.History(),
		Resume:  true,
	})
}

// SetupTurn runs the very first narrator turn right after the host starts the
// game: no history, no actions, just the opening scene prompt.
func (o *Orchestrator) SetupTurn(ctx context.Context, room *domain.Room) {
	if !room.BeginSetup() {
		return
	}
	o.broadcaster.Broadcast(room.ID(), event.StateUpdate{State: room.Snapshot()})
	o.resolve(ctx, room, contract.TurnRequest{RoomID: room.ID()})
}

// resolve performs the generation phase and always runs the cleanup phase,
// success or failure: pending actions cleared, turn state back to waiting,
// final snapshot broadcast. A room is never left stuck in ResolvingTurn.
func (o *Orchestrator) resolve(ctx context.Context, room *domain.Room, req contract.TurnRequest) {
	roomID := room.ID()
	defer func() {
		room.FinishTurn()
		o.broadcaster.Broadcast(roomID, event.StateUpdate{State: room.Snapshot()})
	}()

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	if o.streaming {
		o.resolveStreaming(ctx, room, req)
		return
	}
	o.resolveBlocking(ctx, room, req)
}

// resolveStreaming interleaves text and audio fragments. Audio for a fragment
// is synthesized and broadcast before the next text fragment is requested, so
// no text fragment can trail audio derived from a later one.
func (o *Orchestrator) resolveStreaming(ctx context.Context, room *domain.Room, req contract.TurnRequest) {
	roomID := room.ID()
	o.broadcaster.Broadcast(roomID, event.StreamStart{})

	var accumulated strings.Builder
	err := o.story.GenerateStream(ctx, req, func(fragment string) error {
		if fragment == "" {
			return nil
		}
		accumulated.WriteString(fragment)
		o.broadcaster.Broadcast(roomID, event.ChatChunk{Content: fragment})

		if o.audio == nil {
			return nil
		}
		return o.audio.SynthesizeStream(ctx, fragment, func(chunk []byte) error {
			o.broadcaster.Broadcast(roomID, event.NewAudioChunk(chunk))
			return nil
		})
	})
	if err != nil {
		o.log.Error("Turn resolution failed mid-stream, keeping partial result",
			"room_id", roomID, "error", err)
	}

	entry := room.Append(domain.NarratorID, domain.NarratorName,
		strings.TrimSpace(accumulated.String()))
	o.broadcaster.Broadcast(roomID, event.StreamEnd{Final: entry})
}

func (o *Orchestrator) resolveBlocking(ctx context.Context, room *domain.Room, req contract.TurnRequest) {
	roomID := room.ID()

	text, err := o.story.Generate(ctx, req)
	if err != nil {
		o.log.Error("Turn generation failed", "room_id", roomID, "error", err)
		return
	}

	var audioURL string
	if o.audio != nil {
		if audioURL, err = o.audio.Synthesize(ctx, text); err != nil {
			o.log.Warn("Audio synthesis failed, continuing without audio",
				"room_id", roomID, "error", err)
			audioURL = ""
		}
	}

	var opts []domain.EntryOption
	if audioURL != "" {
		opts = append(opts, domain.WithAudio(audioURL))
	}
	entry := room.Append(domain.NarratorID, domain.NarratorName, text, opts...)
	o.broadcaster.Broadcast(roomID, event.ChatEntry{Entry: entry})
	if audioURL != "" {
		o.broadcaster.Broadcast(roomID, event.AudioRef{URL: audioURL})
	}
}

// consolidateActions turns the per-participant inputs into one aggregate
// entry, sorted by name so the rendering is stable.
func consolidateActions(actions map[string]string) string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("[%s] %s", name, actions[name]))
	}
	return strings.Join(lines, "\n")
}
