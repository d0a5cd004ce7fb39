package api

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/taskdesk/internal/infrastructure/mqtt"
	"github.com/nerrad567/taskdesk/internal/task"
)

// publishTaskEvent hands ev to local WebSocket clients and, when the event
// bus is configured, to MQTT. Publish failures are logged; the request that
// caused the event has already succeeded.
func (s *Server) publishTaskEvent(ev task.Event) {
	s.hub.BroadcastTaskEvent(ev)

	if s.mqtt == nil {
		return
	}
	ev.Origin = s.instanceID
	if err := s.mqtt.PublishJSON(mqtt.Topics{}.TaskEvent(ev.Task.ID), ev); err != nil {
		s.logger.Warn("publishing task event failed",
			"event_type", ev.Type, "task_id", ev.Task.ID, "error", err)
	}
}

// subscribeTaskEvents relays task events published by other instances to
// this instance's WebSocket clients.
func (s *Server) subscribeTaskEvents() error {
	if s.mqtt == nil {
		return nil
	}
	topic := mqtt.Topics{}.AllTaskEvents()
	s.logger.Info("subscribing to task events for WebSocket relay", "topic", topic)
	return s.mqtt.Subscribe(topic, 1, s.handleRemoteTaskEvent)
}

func (s *Server) handleRemoteTaskEvent(_ string, payload []byte) error {
	var ev task.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decoding task event: %w", err)
	}
	if ev.Origin == s.instanceID || ev.Task.ID == "" {
		return nil
	}
	s.hub.BroadcastTaskEvent(ev)
	return nil
}
