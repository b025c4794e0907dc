package runtime_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"vdm-lab/domain/event"
	"vdm-lab/runtime"
)

type recordingSubscriber struct {
	frames [][]byte
}

func (s *recordingSubscriber) Deliver(frame []byte) error {
	s.frames = append(s.frames, frame)
	return nil
}

type brokenSubscriber struct {
	calls int
}

func (s *brokenSubscriber) Deliver([]byte) error {
	s.calls++
	return fmt.Errorf("outbound queue full")
}

func decodeEnvelope(t *testing.T, frame []byte) event.Envelope {
	t.Helper()
	var env event.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestRegistry_Broadcast_PreservesIssueOrder(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry(slog.Default())
	first := &recordingSubscriber{}
	second := &recordingSubscriber{}
	registry.Subscribe("tavern", first)
	registry.Subscribe("tavern", second)

	for i := 0; i < 5; i++ {
		registry.Broadcast("tavern", event.SystemNotice{Message: fmt.Sprintf("notice-%d", i)})
	}

	for _, sub := range []*recordingSubscriber{first, second} {
		req.Len(sub.frames, 5)
		for i, frame := range sub.frames {
			env := decodeEnvelope(t, frame)
			req.Equal("system", env.Kind)
			payload := env.Payload.(map[string]any)
			req.Equal(fmt.Sprintf("notice-%d", i), payload["message"])
		}
	}
}

func TestRegistry_Broadcast_IsScopedToTheRoom(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry(slog.Default())
	tavern := &recordingSubscriber{}
	dungeon := &recordingSubscriber{}
	registry.Subscribe("tavern", tavern)
	registry.Subscribe("dungeon", dungeon)

	registry.Broadcast("tavern", event.SystemNotice{Message: "hello"})

	req.Len(tavern.frames, 1)
	req.Empty(dungeon.frames)
}

func TestRegistry_Broadcast_DropsUnresponsiveSubscriber(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry(slog.Default())
	healthy := &recordingSubscriber{}
	broken := &brokenSubscriber{}
	registry.Subscribe("tavern", healthy)
	registry.Subscribe("tavern", broken)

	registry.Broadcast("tavern", event.SystemNotice{Message: "one"})
	registry.Broadcast("tavern", event.SystemNotice{Message: "two"})

	// The broken subscriber was dropped after its first failed delivery; the
	// healthy one received everything.
	req.Equal(1, broken.calls)
	req.Len(healthy.frames, 2)
	req.Equal(1, registry.Count("tavern"))
}

func TestRegistry_Unsubscribe_IsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry(slog.Default())
	sub := &recordingSubscriber{}
	registry.Subscribe("tavern", sub)

	registry.Unsubscribe("tavern", sub)
	registry.Unsubscribe("tavern", sub)
	registry.Unsubscribe("dungeon", sub)

	req.Zero(registry.Count("tavern"))
}

func TestRegistry_SendTo_DeliversToOneSubscriberOnly(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry(slog.Default())
	target := &recordingSubscriber{}
	bystander := &recordingSubscriber{}
	registry.Subscribe("tavern", target)
	registry.Subscribe("tavern", bystander)

	registry.SendTo(target, event.SystemNotice{Message: "Unknown command: /dance"})

	req.Len(target.frames, 1)
	req.Empty(bystander.frames)
	env := decodeEnvelope(t, target.frames[0])
	req.Equal("system", env.Kind)
}
