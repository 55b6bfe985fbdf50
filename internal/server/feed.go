package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/peezy/hyperfy-eliza-client/internal/decision"
)

// feedBuffer is the per-subscriber queue depth. A subscriber that falls this
// far behind is disconnected rather than allowed to stall publishers.
const feedBuffer = 16

// writeTimeout bounds a single websocket write to a feed subscriber.
const writeTimeout = 5 * time.Second

// DecisionEvent is one entry on an agent's decision feed.
type DecisionEvent struct {
	AgentID   string    `json:"agentId"`
	Outcome   string    `json:"outcome"`
	LookAt    *string   `json:"lookAt"`
	Emote     *string   `json:"emote"`
	Say       *string   `json:"say"`
	Actions   []string  `json:"actions"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed fans committed decisions out to websocket subscribers, keyed by agent
// ID. Publishing never blocks: a subscriber with a full queue is dropped.
type Feed struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a subscriber for agentID. The returned cancel function
// must be called exactly once; it closes the channel.
func (f *Feed) Subscribe(agentID string) (<-chan []byte, func()) {
	ch := make(chan []byte, feedBuffer)

	f.mu.Lock()
	set, ok := f.subs[agentID]
	if !ok {
		set = make(map[chan []byte]struct{})
		f.subs[agentID] = set
	}
	set[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[agentID]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(f.subs, agentID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish broadcasts a decision to every subscriber of agentID. Subscribers
// whose queues are full miss the event; the feed is best-effort telemetry,
// not a durable stream.
func (f *Feed) Publish(agentID, outcome string, d *decision.Decision) {
	event := DecisionEvent{
		AgentID:   agentID,
		Outcome:   outcome,
		LookAt:    d.LookAt,
		Emote:     d.Emote,
		Say:       d.Say,
		Actions:   d.Actions,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[agentID] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribers returns the current subscriber count for agentID.
func (f *Feed) Subscribers(agentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[agentID])
}

// serveFeed pumps feed events for one websocket connection until the client
// disconnects or the server shuts down.
func serveFeed(ctx context.Context, conn *websocket.Conn, events <-chan []byte) error {
	// Discard inbound frames while still answering pings and close frames.
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return conn.Close(websocket.StatusNormalClosure, "feed closed")
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
