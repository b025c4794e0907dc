package domain

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type RoomID string

// TurnState tells whether a room is collecting inputs or resolving a turn.
type TurnState string

const (
	WaitingForActions TurnState = "WAITING_FOR_ACTIONS"
	ResolvingTurn     TurnState = "GM_PROCESSING"
)

// GameState is the one-way lobby/active switch of a room.
type GameState string

const (
	Lobby  GameState = "LOBBY"
	Active GameState = "PLAYING"
)

// Room is the authoritative in-memory state of one session: membership, the
// append-only log, the turn cycle, and the per-participant pending actions.
//
// Every read-modify-write of room fields goes through the methods below, each
// guarded by the room's own mutex. The lock is never held across collaborator
// calls; callers take a Snapshot and release.
type Room struct {
	mu      sync.Mutex
	id      RoomID
	players map[string]*Participant
	log     []LogEntry
	turn    TurnState
	game    GameState
	pending map[string]string
	hostID  string
}

func NewRoom(id RoomID) *Room {
	return &Room{
		id:      id,
		players: make(map[string]*Participant),
		turn:    WaitingForActions,
		game:    Lobby,
		pending: make(map[string]string),
	}
}

func (r *Room) ID() RoomID { return r.id }

// Join adds or reactivates a participant. Reconnection matches by
// case-insensitive display name: the existing identity is rebound to the new
// connection id and marked active, so no duplicate identity is ever created.
// The first participant of a hostless room becomes host.
func (r *Room) Join(connID, name, avatarStyle string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *Participant
	var oldID string
	for id, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			existing, oldID = p, id
			break
		}
	}

	var joined *Participant
	rejoined := existing != nil
	if rejoined {
		if oldID != connID {
			delete(r.players, oldID)
			if r.hostID == oldID {
				r.hostID = connID
			}
		}
		existing.ID = connID
		existing.Active = true
		existing.AvatarStyle = avatarStyle
		r.players[connID] = existing
		joined = existing
	} else {
		joined = &Participant{ID: connID, Name: name, AvatarStyle: avatarStyle, Active: true}
		r.players[connID] = joined
	}

	if r.hostID == "" {
		r.hostID = connID
	}
	return *joined, rejoined
}

// Leave deactivates a participant and removes its contribution to the
// in-flight turn. If the host left, the first remaining active participant
// (by name, for a deterministic pick) is promoted. The lastActive result tells
// the caller the room just lost its last live member and should be persisted.
func (r *Room) Leave(connID string) (left Participant, newHost *Participant, lastActive, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, found := r.players[connID]
	if !found {
		return Participant{}, nil, false, false
	}
	p.Active = false
	delete(r.pending, connID)

	if r.hostID == connID {
		r.hostID = ""
		if candidate := r.firstActive(); candidate != nil {
			r.hostID = candidate.ID
			host := *candidate
			newHost = &host
		}
	}

	lastActive = r.firstActive() == nil
	return *p, newHost, lastActive, true
}

func (r *Room) firstActive() *Participant {
	ids := make([]string, 0, len(r.players))
	for id, p := range r.players {
		if p.Active {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.players[ids[i]].Name < r.players[ids[j]].Name
	})
	return r.players[ids[0]]
}

// StartGame flips the room from Lobby to Active. Only the host may start, and
// only once; anything else is a no-op.
func (r *Room) StartGame(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connID != r.hostID || r.game != Lobby {
		return false
	}
	r.game = Active
	return true
}

// Append adds an entry to the log and returns it. Ordering of the log is its
// only guarantee; entries are never reordered or mutated after append.
func (r *Room) Append(authorID, authorName, content string, opts ...EntryOption) LogEntry {
	entry := LogEntry{
		ID:         uuid.New(),
		AuthorID:   authorID,
		AuthorName: authorName,
		Content:    content,
		At:         time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&entry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, entry)
	return entry
}

type EntryOption func(*LogEntry)

func AsOOC() EntryOption             { return func(e *LogEntry) { e.OOC = true } }
func AsRoll() EntryOption            { return func(e *LogEntry) { e.Roll = true } }
func WithAudio(url string) EntryOption {
	return func(e *LogEntry) { e.AudioURL = url }
}

// SetPending records a participant's action for the current turn, overwriting
// any prior action from the same participant. Input is refused while a turn is
// resolving.
func (r *Room) SetPending(connID, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.turn != WaitingForActions {
		return false
	}
	if _, found := r.players[connID]; !found {
		return false
	}
	r.pending[connID] = text
	return true
}

// BeginTurn is the mutual-exclusion guard of the turn cycle: it transitions to
// ResolvingTurn only when the room is waiting and at least one action is
// pending, and hands back the actions keyed by display name. A second submit
// while resolving fails the guard and has no effect.
func (r *Room) BeginTurn() (map[string]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.turn != WaitingForActions || len(r.pending) == 0 {
		return nil, false
	}
	r.turn = ResolvingTurn
	actions := make(map[string]string, len(r.pending))
	for connID, text := range r.pending {
		if p, found := r.players[connID]; found {
			actions[p.Name] = text
		}
	}
	return actions, true
}

// BeginResume starts a host-only resolution with no pending actions, used when
// a host re-enters an active room and asks the narrator to summarize and
// continue. The same at-most-one-resolution guard applies.
func (r *Room) BeginResume(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connID != r.hostID || r.game != Active || r.turn != WaitingForActions {
		return false
	}
	r.turn = ResolvingTurn
	return true
}

// BeginSetup starts the very first narrator turn right after the game starts.
func (r *Room) BeginSetup() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.turn != WaitingForActions {
		return false
	}
	r.turn = ResolvingTurn
	return true
}

// FinishTurn unconditionally returns the room to WaitingForActions and clears
// pending actions. It runs on both the success and the failure path of a
// resolution, so a room can never stay stuck in ResolvingTurn.
func (r *Room) FinishTurn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = make(map[string]string)
	r.turn = WaitingForActions
}

func (r *Room) TurnState() TurnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn
}

func (r *Room) GameState() GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game
}

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// Participant returns a copy of the participant bound to a connection id.
func (r *Room) Participant(connID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, found := r.players[connID]
	if !found {
		return Participant{}, false
	}
	return *p, true
}

// History returns a copy of the log for prompt building.
func (r *Room) History() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.log))
	copy(out, r.log)
	return out
}

// DeactivateAll marks every participant inactive. The registry applies it to
// freshly loaded rooms: a restarted process has no live connections.
func (r *Room) DeactivateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		p.Active = false
	}
}

// Snapshot is the serializable view of a room, used both for state_update
// broadcasts and for persistence.
type Snapshot struct {
	RoomID       string                 `json:"room_id"`
	Players      map[string]Participant `json:"players"`
	Messages     []LogEntry             `json:"messages"`
	TurnState    TurnState              `json:"turn_state"`
	Pending      map[string]string      `json:"current_turn_actions"`
	GameState    GameState              `json:"game_state"`
	HostPlayerID string                 `json:"host_player_id,omitempty"`
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	players := make(map[string]Participant, len(r.players))
	for id, p := range r.players {
		players[id] = *p
	}
	messages := make([]LogEntry, len(r.log))
	copy(messages, r.log)
	pending := make(map[string]string, len(r.pending))
	for id, text := range r.pending {
		pending[id] = text
	}
	return Snapshot{
		RoomID:       string(r.id),
		Players:      players,
		Messages:     messages,
		TurnState:    r.turn,
		Pending:      pending,
		GameState:    r.game,
		HostPlayerID: r.hostID,
	}
}

// FromSnapshot rebuilds a room from a persisted snapshot.
func FromSnapshot(s Snapshot) *Room {
	r := NewRoom(RoomID(s.RoomID))
	for id, p := range s.Players {
		participant := p
		r.players[id] = &participant
	}
	r.log = append(r.log, s.Messages...)
	// A rebuilt room has no resolution in flight, whatever the snapshot
	// captured; pending actions survive for the next turn.
	r.turn = WaitingForActions
	if s.GameState != "" {
		r.game = s.GameState
	}
	for id, text := range s.Pending {
		r.pending[id] = text
	}
	r.hostID = s.HostPlayerID
	return r
}
