// ABOUTME: In-memory fan-out broadcaster for session updates
// ABOUTME: Publishes message/status updates to all subscribers of a session id

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// UpdateKind discriminates session updates.
type UpdateKind int

const (
	// UpdateMessage carries a newly appended message.
	UpdateMessage UpdateKind = iota
	// UpdateStatus carries a processing-flag change.
	UpdateStatus
	// UpdateEnded marks that the session's run reached a terminal state.
	UpdateEnded
)

// Update is one item on a subscriber's channel.
type Update struct {
	Kind       UpdateKind
	SessionID  string
	Message    *Message // set for UpdateMessage
	Processing bool     // set for UpdateStatus
}

// Broadcaster provides in-memory pub/sub for session updates. Subscribers
// register for a session id and receive updates as the driver and manager
// publish them. This enables SSE streaming without polling the session.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Update // sessionID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *Update),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for updates on the given session id.
// Returns a channel that receives updates and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) (<-chan *Update, string) {
	subID := uuid.New().String()
	ch := make(chan *Update, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[sessionID]; !ok {
		b.subscribers[sessionID] = make(map[string]chan *Update)
	}
	b.subscribers[sessionID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "session_id", sessionID, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(sessionID, subID)
	}()

	return ch, subID
}

// Publish sends an update to all subscribers of the given session id.
// Non-blocking: updates are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(sessionID string, update *Update) {
	b.mu.RLock()
	subs, ok := b.subscribers[sessionID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy subscriber channels under read lock to avoid holding lock during sends
	targets := make([]chan *Update, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- update:
			// Sent
		default:
			// Subscriber channel full — drop update for this subscriber
			b.logger.Debug("dropped update for slow subscriber", "session_id", sessionID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(sessionID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[sessionID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, sessionID)
	}

	b.logger.Debug("subscriber removed", "session_id", sessionID, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sessionID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, sessionID)
	}

	b.logger.Debug("broadcaster closed")
}
