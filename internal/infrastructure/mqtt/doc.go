// Package mqtt connects Taskdesk to an MQTT broker used as an optional
// event bus.
//
// When enabled, every task create, update and delete is published to
// taskdesk/events/task/{id} so other services (and other Taskdesk
// instances) can follow task changes. The client keeps a retained
// online/offline status on taskdesk/system/status, backed by a Last Will
// so crashes are visible too.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.TaskEvent(t.ID), event)
//
// Reconnects back off between reconnect.initial_delay and
// reconnect.max_delay; subscriptions are restored on reconnect.
package mqtt
