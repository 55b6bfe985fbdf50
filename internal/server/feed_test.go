package server

import (
	"testing"

	"github.com/peezy/hyperfy-eliza-client/internal/decision"
	"github.com/peezy/hyperfy-eliza-client/internal/observe"
)

func TestFeedSubscribePublish(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	ch, cancel := f.Subscribe("agent-1")
	defer cancel()

	say := "hi"
	f.Publish("agent-1", observe.OutcomeAct, &decision.Decision{Say: &say})

	select {
	case payload := <-ch:
		if len(payload) == 0 {
			t.Error("empty feed payload")
		}
	default:
		t.Fatal("no event delivered to subscriber")
	}
}

func TestFeedIsolatesAgents(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	ch, cancel := f.Subscribe("agent-1")
	defer cancel()

	f.Publish("agent-2", observe.OutcomeAct, &decision.Decision{})

	select {
	case <-ch:
		t.Fatal("subscriber received another agent's event")
	default:
	}
}

func TestFeedDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	ch, cancel := f.Subscribe("agent-1")
	defer cancel()

	// Publish must never block, even past the buffer depth.
	for i := 0; i < feedBuffer*2; i++ {
		f.Publish("agent-1", observe.OutcomeSilent, &decision.Decision{})
	}
	if got := len(ch); got != feedBuffer {
		t.Errorf("queued events = %d, want capped at %d", got, feedBuffer)
	}
}

func TestFeedCancelRemovesSubscriber(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	_, cancel := f.Subscribe("agent-1")
	if f.Subscribers("agent-1") != 1 {
		t.Fatal("subscriber not registered")
	}
	cancel()
	if f.Subscribers("agent-1") != 0 {
		t.Error("subscriber not removed on cancel")
	}
	cancel() // second call is a no-op
}
