package mqtt

import "fmt"

// Topic prefixes for the Taskdesk event bus.
const (
	// TopicPrefixEvents is the base for all domain event topics.
	TopicPrefixEvents = "taskdesk/events"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "taskdesk/system"
)

// Topics provides builders for Taskdesk MQTT topics.
//
//	topic := mqtt.Topics{}.TaskEvent("tsk-1a2b3c4d")
//	// Returns: "taskdesk/events/task/tsk-1a2b3c4d"
type Topics struct{}

// TaskEvent returns the topic carrying lifecycle events for one task.
//
// Example: taskdesk/events/task/tsk-1a2b3c4d
func (Topics) TaskEvent(taskID string) string {
	return fmt.Sprintf("%s/task/%s", TopicPrefixEvents, taskID)
}

// AllTaskEvents returns a pattern matching every task event topic.
//
// Pattern: taskdesk/events/task/+
func (Topics) AllTaskEvents() string {
	return fmt.Sprintf("%s/task/+", TopicPrefixEvents)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: taskdesk/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
