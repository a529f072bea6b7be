package eventbus

import (
	"context"
	"errors"
	"testing"
)

func TestBusPublishBroadcast(t *testing.T) {
	bus := NewChatEventBus()
	calledA := false
	calledB := false

	bus.Subscribe(ChatEventTurnCompleted, func(ctx context.Context, event ChatEvent) error {
		calledA = true
		return nil
	})
	bus.Subscribe(ChatEventTurnCompleted, func(ctx context.Context, event ChatEvent) error {
		calledB = true
		return nil
	})

	if err := bus.Publish(context.Background(), ChatEventTurnCompleted, ChatEvent{Type: ChatEventTurnCompleted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !calledA || !calledB {
		t.Fatalf("expected handlers to be called")
	}
}

func TestBusDispatchByType(t *testing.T) {
	bus := NewChatEventBus()
	var got []ChatEventType
	bus.Subscribe(ChatEventTurnFailed, func(ctx context.Context, event ChatEvent) error {
		got = append(got, event.Type)
		return nil
	})

	_ = bus.Publish(context.Background(), ChatEventTurnCompleted, ChatEvent{Type: ChatEventTurnCompleted})
	_ = bus.Publish(context.Background(), ChatEventTurnFailed, ChatEvent{Type: ChatEventTurnFailed, SessionID: "s1"})

	if len(got) != 1 || got[0] != ChatEventTurnFailed {
		t.Fatalf("expected only failed event, got %v", got)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewChatEventBus()
	called := false
	unsubscribe := bus.Subscribe(ChatEventSessionReset, func(ctx context.Context, event ChatEvent) error {
		called = true
		return nil
	})
	unsubscribe()

	if err := bus.Publish(context.Background(), ChatEventSessionReset, ChatEvent{Type: ChatEventSessionReset}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected handler to be unsubscribed")
	}
}

func TestBusPublishJoinErrors(t *testing.T) {
	bus := NewChatEventBus()
	errA := errors.New("err-a")
	bus.Subscribe(ChatEventTurnCompleted, func(ctx context.Context, event ChatEvent) error {
		return errA
	})
	bus.Subscribe(ChatEventTurnCompleted, func(ctx context.Context, event ChatEvent) error {
		return errors.New("err-b")
	})

	err := bus.Publish(context.Background(), ChatEventTurnCompleted, ChatEvent{Type: ChatEventTurnCompleted})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, errA) {
		t.Fatalf("expected joined error to contain err-a, got %v", err)
	}
}

func TestBusNilHandler(t *testing.T) {
	bus := NewChatEventBus()
	unsubscribe := bus.Subscribe(ChatEventTurnCompleted, nil)
	unsubscribe()
	if err := bus.Publish(context.Background(), ChatEventTurnCompleted, ChatEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
