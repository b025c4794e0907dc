package runtime_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vdm-lab/domain"
	"vdm-lab/errors"
	"vdm-lab/mocks"
	"vdm-lab/runtime"
)

func TestRooms_GetOrCreate(t *testing.T) {
	t.Run("should create a fresh lobby when nothing is persisted", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mocks.NewMockRoomStore(ctrl)
		store.EXPECT().Load(domain.RoomID("tavern")).Return(domain.Snapshot{}, false, nil).Times(1)

		rooms := runtime.NewRooms(slog.Default(), store)
		room := rooms.GetOrCreate("tavern")

		req.Equal(domain.RoomID("tavern"), room.ID())
		req.Equal(domain.Lobby, room.GameState())

		// The second reference hits the in-memory map, not the store.
		req.Same(room, rooms.GetOrCreate("tavern"))
	})

	t.Run("should restore a persisted room with every participant inactive", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		snapshot := domain.Snapshot{
			RoomID: "tavern",
			Players: map[string]domain.Participant{
				"conn-1": {ID: "conn-1", Name: "Alice", Active: true},
			},
			Messages:     []domain.LogEntry{{AuthorName: "Alice", Content: "hello"}},
			TurnState:    domain.WaitingForActions,
			GameState:    domain.Active,
			HostPlayerID: "conn-1",
		}
		store := mocks.NewMockRoomStore(ctrl)
		store.EXPECT().Load(domain.RoomID("tavern")).Return(snapshot, true, nil).Times(1)

		rooms := runtime.NewRooms(slog.Default(), store)
		room := rooms.GetOrCreate("tavern")

		req.Equal(domain.Active, room.GameState())
		req.Len(room.History(), 1)
		alice, found := room.Participant("conn-1")
		req.True(found)
		req.False(alice.Active, "a restarted process has no live connections")
	})

	t.Run("should start fresh when the store fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mocks.NewMockRoomStore(ctrl)
		store.EXPECT().Load(gomock.Any()).Return(domain.Snapshot{}, false, errors.ErrRoomNotLoaded).Times(1)

		rooms := runtime.NewRooms(slog.Default(), store)
		room := rooms.GetOrCreate("tavern")

		req.Equal(domain.Lobby, room.GameState())
		req.Empty(room.History())
	})
}

func TestRooms_Save(t *testing.T) {
	t.Run("should persist the snapshot of a loaded room", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mocks.NewMockRoomStore(ctrl)
		store.EXPECT().Load(gomock.Any()).Return(domain.Snapshot{}, false, nil).Times(1)

		rooms := runtime.NewRooms(slog.Default(), store)
		room := rooms.GetOrCreate("tavern")
		room.Join("conn-1", "Alice", "wizard")

		store.EXPECT().
			Save(gomock.Any()).
			DoAndReturn(func(s domain.Snapshot) error {
				req.Equal("tavern", s.RoomID)
				req.Len(s.Players, 1)
				return nil
			}).
			Times(1)

		req.NoError(rooms.Save("tavern"))
	})

	t.Run("should refuse to save a room that is not in memory", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mocks.NewMockRoomStore(ctrl)
		store.EXPECT().Save(gomock.Any()).Times(0)

		rooms := runtime.NewRooms(slog.Default(), store)

		req.ErrorIs(rooms.Save("ghost"), errors.ErrRoomNotLoaded)
	})
}

func TestRooms_All(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockRoomStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(domain.Snapshot{}, false, nil).Times(2)

	rooms := runtime.NewRooms(slog.Default(), store)
	rooms.GetOrCreate("tavern")
	rooms.GetOrCreate("dungeon")

	req.Len(rooms.All(), 2)
}
