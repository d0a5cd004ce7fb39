// Package influxdb records Taskdesk telemetry in InfluxDB v2.
//
// Two measurements are written, both tagged with low-cardinality values
// only (no user or task ids):
//   - auth_events: login, register, token resolution and role gate outcomes
//   - task_operations: task operations by requester role and permission decision
//
// Telemetry is optional. When influxdb.enabled is false Connect returns
// ErrDisabled and callers keep a nil *Client, whose write methods are no-ops.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent("login", influxdb.OutcomeSuccess)
//
// Writes are batched according to batch_size and flush_interval; write
// failures are delivered to the SetOnError callback.
package influxdb
