package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAuth = "auth_events"
	MeasurementTask = "task_operations"
)

// Auth outcomes recorded by WriteAuthEvent.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeUnauthorised = "unauthorised"
	OutcomeForbidden    = "forbidden"
)

// WriteAuthEvent records one authentication or authorisation outcome.
// kind is the operation (login, register, resolve, role_gate) and outcome one
// of the Outcome constants. Identities are never tagged, keeping series
// cardinality bounded.
func (c *Client) WriteAuthEvent(kind, outcome string) {
	if !c.IsConnected() {
		return
	}
	c.write(authEventPoint(kind, outcome, c.now()))
}

// WriteTaskOperation records a task operation with the requester's role and
// whether the permission evaluator allowed it.
func (c *Client) WriteTaskOperation(op, role string, allowed bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.write(taskOperationPoint(op, role, allowed, duration, c.now()))
}

func (c *Client) write(p *write.Point) {
	c.writeAPI.WritePoint(p)
	c.points.Add(1)
}

func authEventPoint(kind, outcome string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAuth,
		map[string]string{
			"kind":    kind,
			"outcome": outcome,
		},
		map[string]any{
			"count": int64(1),
		},
		ts,
	)
}

func taskOperationPoint(op, role string, allowed bool, duration time.Duration, ts time.Time) *write.Point {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	return write.NewPoint(
		MeasurementTask,
		map[string]string{
			"operation": op,
			"role":      role,
			"decision":  decision,
		},
		map[string]any{
			"count":       int64(1),
			"duration_ms": float64(duration.Microseconds()) / 1000,
		},
		ts,
	)
}
