package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vdm-lab/contract"
	"vdm-lab/domain"
	"vdm-lab/domain/event"
	"vdm-lab/game"
	"vdm-lab/moderation"
)

const memoryPreviewLen = 50

// Dispatcher classifies chat-shaped input: slash-prefixed text routes to one
// of a closed set of table commands, everything else becomes the sender's
// pending action for the current turn.
type Dispatcher struct {
	log          *slog.Logger
	rooms        *Rooms
	registry     *Registry
	orchestrator *Orchestrator
	memory       contract.MemoryStore
	roller       *game.Roller
	moderator    *moderation.Moderator
}

func NewDispatcher(log *slog.Logger, rooms *Rooms, registry *Registry,
	orchestrator *Orchestrator, memory contract.MemoryStore,
	roller *game.Roller, moderator *moderation.Moderator) *Dispatcher {
	return &Dispatcher{
		log:          log,
		rooms:        rooms,
		registry:     registry,
		orchestrator: orchestrator,
		memory:       memory,
		roller:       roller,
		moderator:    moderator,
	}
}

// HandleSay processes one chat-shaped input from a participant. Unrecognized
// commands answer the sender privately; nothing is broadcast and no state
// changes.
func (d *Dispatcher) HandleSay(ctx context.Context, room *domain.Room,
	sender domain.Participant, sub contract.Subscriber, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if !strings.HasPrefix(text, "/") {
		d.recordAction(room, sender, text)
		return
	}

	parts := strings.Fields(text)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/roll":
		d.roll(room, sender, sub, args)
	case "/save":
		d.save(room, sender)
	case "/remember":
		d.remember(ctx, room, sender, args)
	case "/next":
		d.orchestrator.SubmitTurn(ctx, room, sender)
	case "/ooc":
		d.outOfCharacter(room, sender, args)
	default:
		d.registry.SendTo(sub, event.SystemNotice{
			Message: fmt.Sprintf("Unknown command: %s", command),
		})
	}
}

// recordAction stores ordinary input as the sender's pending action for the
// turn, overwriting any earlier one, and echoes it to the room. Input during
// turn resolution is discarded.
func (d *Dispatcher) recordAction(room *domain.Room, sender domain.Participant, text string) {
	text = d.censor(text)
	if !room.SetPending(sender.ID, text) {
		return
	}
	entry := room.Append(sender.ID, sender.Name, text)
	d.registry.Broadcast(room.ID(), event.ChatEntry{Entry: entry})
	d.registry.Broadcast(room.ID(), event.StateUpdate{State: room.Snapshot()})
}

func (d *Dispatcher) roll(room *domain.Room, sender domain.Participant,
	sub contract.Subscriber, args []string) {
	notation := "1d20"
	if len(args) > 0 {
		notation = args[0]
	}
	result, ok := d.roller.Roll(notation)
	if !ok {
		return
	}
	entry := room.Append(sender.ID, sender.Name,
		fmt.Sprintf("rolls %s", result.Format(notation)), domain.AsRoll())
	d.registry.Broadcast(room.ID(), event.ChatEntry{Entry: entry})
}

func (d *Dispatcher) save(room *domain.Room, sender domain.Participant) {
	if err := d.rooms.Save(room.ID()); err != nil {
		d.log.Error("Explicit save failed", "room_id", room.ID(), "error", err)
		return
	}
	d.registry.Broadcast(room.ID(), event.SystemNotice{
		Message: fmt.Sprintf("Game progress saved by %s.", sender.Name),
	})
}

func (d *Dispatcher) remember(ctx context.Context, room *domain.Room,
	sender domain.Participant, args []string) {
	text := strings.Join(args, " ")
	if text == "" {
		return
	}
	if err := d.memory.Remember(ctx, room.ID(), text); err != nil {
		// Fire-and-forget from the room's perspective.
		d.log.Error("Failed to store memory annotation", "room_id", room.ID(), "error", err)
		return
	}
	preview := text
	if len(preview) > memoryPreviewLen {
		preview = preview[:memoryPreviewLen] + "..."
	}
	d.registry.Broadcast(room.ID(), event.SystemNotice{
		Message: fmt.Sprintf("%s added a memory: '%s'", sender.Name, preview),
	})
}

func (d *Dispatcher) outOfCharacter(room *domain.Room, sender domain.Participant, args []string) {
	text := strings.Join(args, " ")
	if text == "" {
		return
	}
	entry := room.Append(sender.ID, sender.Name,
		fmt.Sprintf("// %s", d.censor(text)), domain.AsOOC())
	d.registry.Broadcast(room.ID(), event.ChatEntry{Entry: entry})
}

func (d *Dispatcher) censor(text string) string {
	if d.moderator == nil {
		return text
	}
	return d.moderator.Censor(text)
}
