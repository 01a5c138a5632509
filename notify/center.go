package notify

import (
	"sort"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/types"
)

const (
	// DefaultTTL bounds how long an unacknowledged message stays listable.
	DefaultTTL = 300 * time.Second

	// NoProgress marks messages without a progress bar.
	NoProgress = -1
)

// Broadcaster pushes notifications to host-UI subscribers, e.g. the
// websocket hub.
type Broadcaster interface {
	Broadcast(notification *types.Notification)
}

// Center is the outbound message surface of the integration: errors,
// confirmations and progress shown to the user, each optionally carrying
// actions the user can trigger. The core never touches a UI toolkit; the
// host observes the center instead.
type Center struct {
	mu        sync.Mutex
	messages  *ttlworker.Cache[string, types.UIMessage]
	actions   map[string]func()
	observers []func(types.Notification)
	hub       Broadcaster
}

func NewCenter() *Center {
	return &Center{
		messages: ttlworker.NewCache[string, types.UIMessage](DefaultTTL),
		actions:  make(map[string]func()),
	}
}

// SetBroadcaster attaches a push channel; nil detaches it.
func (c *Center) SetBroadcaster(hub Broadcaster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hub = hub
}

// Subscribe registers an observer for every notification the center emits.
func (c *Center) Subscribe(fn func(types.Notification)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Center) publish(event string, msg types.UIMessage) {
	c.Announce(types.Notification{Event: event, Message: msg})
}

// Announce fans a notification out to observers and the push channel. Used
// for events that are not tied to a stored message, e.g. connection-state
// changes or open-URL requests.
func (c *Center) Announce(notification types.Notification) {
	c.mu.Lock()
	observers := make([]func(types.Notification), len(c.observers))
	copy(observers, c.observers)
	hub := c.hub
	c.mu.Unlock()

	for _, fn := range observers {
		fn(notification)
	}
	if hub != nil {
		hub.Broadcast(&notification)
	}
}

// Show stores and publishes a message. handlers maps action IDs to the
// callbacks run when the user triggers them. Returns the message ID.
func (c *Center) Show(msg types.UIMessage, handlers map[string]func()) string {
	if msg.ID == "" {
		msg.ID = tool.GenerateRandomUUID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	c.messages.Set(msg.ID, msg)
	c.mu.Lock()
	for actionID, fn := range handlers {
		if fn != nil {
			c.actions[msg.ID+"/"+actionID] = fn
		}
	}
	c.mu.Unlock()
	c.publish("show", msg)
	return msg.ID
}

// Hide removes a message and its action handlers. Hiding an unknown or
// already hidden message is a no-op.
func (c *Center) Hide(id string) {
	if id == "" {
		return
	}
	msg := c.messages.Get(id)
	if msg.ID == "" {
		return
	}
	c.messages.Delete(id)
	c.mu.Lock()
	for _, action := range msg.Actions {
		delete(c.actions, id+"/"+action.ID)
	}
	c.mu.Unlock()
	c.publish("hide", msg)
}

// SetProgress updates the progress percentage of a visible message. Progress
// never moves backwards.
func (c *Center) SetProgress(id string, progress float64) {
	msg := c.messages.Get(id)
	if msg.ID == "" {
		return
	}
	if progress < msg.Progress {
		return
	}
	msg.Progress = progress
	c.messages.Set(id, msg)
	c.publish("update", msg)
}

// Trigger runs the handler registered for an action on a message. Returns
// false when the message or action is unknown (e.g. already expired).
func (c *Center) Trigger(id, actionID string) bool {
	c.mu.Lock()
	fn, ok := c.actions[id+"/"+actionID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	fn()
	return true
}

// Get returns a message by ID.
func (c *Center) Get(id string) (types.UIMessage, bool) {
	msg := c.messages.Get(id)
	return msg, msg.ID != ""
}

// List returns the visible messages, oldest first.
func (c *Center) List() []types.UIMessage {
	var result []types.UIMessage
	err := c.messages.Range(func(k string, v types.UIMessage) error {
		result = append(result, v)
		return nil
	})
	if err != nil {
		return nil
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
