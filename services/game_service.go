// Package services bridges the transport layer and the runtime: it owns the
// join/leave lifecycle and routes decoded inbound messages.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"vdm-lab/contract"
	"vdm-lab/domain"
	"vdm-lab/domain/event"
	vdmerrors "vdm-lab/errors"
	"vdm-lab/runtime"
)

// Inbound is the decoded shape of one client message.
type Inbound struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type sayPayload struct {
	Message string `json:"message"`
}

type GameService struct {
	log          *slog.Logger
	directory    contract.Directory
	rooms        *runtime.Rooms
	registry     *runtime.Registry
	orchestrator *runtime.Orchestrator
	dispatcher   *runtime.Dispatcher
}

func NewGameService(log *slog.Logger, directory contract.Directory,
	rooms *runtime.Rooms, registry *runtime.Registry,
	orchestrator *runtime.Orchestrator, dispatcher *runtime.Dispatcher) *GameService {
	return &GameService{
		log:          log,
		directory:    directory,
		rooms:        rooms,
		registry:     registry,
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
	}
}

// Join authenticates the session token, admits or reactivates the participant
// in the room, subscribes the transport, and announces the arrival. An invalid
// token performs no room mutation.
func (s *GameService) Join(roomID domain.RoomID, connID, token string,
	sub contract.Subscriber) (domain.Participant, error) {
	profile, err := s.directory.Authenticate(token)
	if err != nil {
		s.log.Warn("Rejected join with invalid token", "room_id", roomID)
		return domain.Participant{}, vdmerrors.ErrUnauthorized
	}

	room := s.rooms.GetOrCreate(roomID)
	participant, rejoined := room.Join(connID, profile.Name, profile.AvatarStyle)
	if rejoined {
		s.log.Info(fmt.Sprintf("Player '%s' is reconnecting to room '%s'", participant.Name, roomID))
	}
	if room.HostID() == participant.ID {
		s.log.Info(fmt.Sprintf("Player '%s' is the host of room '%s'", participant.Name, roomID))
	}

	s.registry.Subscribe(roomID, sub)
	s.registry.Broadcast(roomID, event.SystemNotice{
		Message: fmt.Sprintf("%s has joined the game!", participant.Name),
	})
	s.registry.Broadcast(roomID, event.StateUpdate{State: room.Snapshot()})
	return participant, nil
}

// Leave deactivates the participant, reassigns the host when needed, and
// persists the room once its last active member is gone.
func (s *GameService) Leave(roomID domain.RoomID, connID string, sub contract.Subscriber) {
	s.registry.Unsubscribe(roomID, sub)

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	left, newHost, lastActive, ok := room.Leave(connID)
	if !ok {
		return
	}

	if newHost != nil {
		s.registry.Broadcast(roomID, event.SystemNotice{
			Message: fmt.Sprintf("The host has left. %s is the new host.", newHost.Name),
		})
	}
	s.registry.Broadcast(roomID, event.SystemNotice{
		Message: fmt.Sprintf("%s has left the game.", left.Name),
	})
	s.registry.Broadcast(roomID, event.StateUpdate{State: room.Snapshot()})

	if lastActive {
		s.log.Info(fmt.Sprintf("Last active player left room '%s'. Saving state.", roomID))
		if err := s.rooms.Save(roomID); err != nil {
			s.log.Error("Failed to persist room after last disconnect", "room_id", roomID, "error", err)
		}
	}
}

// Handle routes one decoded inbound message. Malformed messages are logged
// and dropped; the connection stays alive.
func (s *GameService) Handle(ctx context.Context, roomID domain.RoomID, connID string,
	sub contract.Subscriber, msg Inbound) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	sender, ok := room.Participant(connID)
	if !ok {
		return
	}

	switch msg.Kind {
	case "say":
		var payload sayPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			s.log.Warn("Dropping malformed say payload", "room_id", roomID, "error", err)
			return
		}
		s.dispatcher.HandleSay(ctx, room, sender, sub, payload.Message)
	case "start_game":
		s.startGame(ctx, room, sender)
	case "submit_turn":
		s.orchestrator.SubmitTurn(ctx, room, sender)
	case "resume_game":
		s.orchestrator.Resume(ctx, room, sender)
	default:
		s.log.Warn("Dropping inbound message of unknown kind",
			"room_id", roomID, "kind", msg.Kind)
	}
}

// startGame flips the room to Active (host only, once) and runs the opening
// narrator turn through the normal resolution pipeline.
func (s *GameService) startGame(ctx context.Context, room *domain.Room, sender domain.Participant) {
	if !room.StartGame(sender.ID) {
		return
	}
	roomID := room.ID()
	s.registry.Broadcast(roomID, event.SystemNotice{Message: "The game is starting..."})
	s.orchestrator.SetupTurn(ctx, room)
	s.registry.Broadcast(roomID, event.StateUpdate{State: room.Snapshot()})
}
