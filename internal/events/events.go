// Package events fans change notifications out to live dashboards and, when
// configured, to an AMQP exchange. Notifications are sent after the change
// has committed and are best effort: a failed delivery never fails the
// operation that caused it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choreledger/internal/websocket"
)

const (
	EntityCompletion = "completion"
	EntityLedger     = "ledger"
	EntityTopup      = "topup"
	EntityChore      = "chore"
	EntityAssignment = "assignment"
	EntitySettings   = "settings"
	EntityGoal       = "goal"
	EntityMember     = "member"
)

type Event struct {
	ID         string         `json:"id"`
	FamilyID   int64          `json:"family_id"`
	Entity     string         `json:"entity"`
	Action     string         `json:"action"`
	EntityID   int64          `json:"entity_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func New(familyID int64, entity, action string, entityID int64, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		FamilyID:   familyID,
		Entity:     entity,
		Action:     action,
		EntityID:   entityID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// RoutingKey is "<entity>.<action>", e.g. "completion.approved".
func (e Event) RoutingKey() string {
	return fmt.Sprintf("%s.%s", e.Entity, e.Action)
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}

type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Multi delivers to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		n.Notify(ctx, e)
	}
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// HubNotifier pushes events to websocket clients of the event's family.
type HubNotifier struct {
	hub *websocket.Hub
}

func NewHubNotifier(hub *websocket.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (h *HubNotifier) Notify(_ context.Context, e Event) {
	h.hub.Broadcast(websocket.NewMessage(e.FamilyID, e.Entity, e.Action, e.EntityID, e.Data))
}

// Recorder keeps every event it receives. Tests use it to assert on
// notifications.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the routing keys received so far, in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.RoutingKey()
	}
	return out
}
