package task

import "time"

// EventType names a task lifecycle change.
type EventType string

const (
	EventCreated EventType = "task.created"
	EventUpdated EventType = "task.updated"
	EventDeleted EventType = "task.deleted"
)

// Event describes a change to one task. Task is the state after the change,
// or the last known state for EventDeleted, so receivers can apply the same
// read permission check they would apply to the task itself.
type Event struct {
	Type      EventType `json:"type"`
	Task      Task      `json:"task"`
	ActorID   string    `json:"actor_id"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event stamped with the current UTC time.
func NewEvent(typ EventType, t *Task, actorID string) Event {
	return Event{
		Type:      typ,
		Task:      *t,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
}
