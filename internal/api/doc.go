// Package api implements the Taskdesk HTTP REST API and WebSocket server.
//
// This package provides:
//   - account endpoints: register, login, self profile with picture upload
//   - task CRUD gated by the task permission evaluator
//   - administrator endpoints for identities, the audit log and metrics
//   - a WebSocket hub streaming task events to clients allowed to read them
//   - middleware for request IDs, logging, panic recovery, CORS, body limits,
//     bearer-token identity resolution and role gates
//
// # Security
//
// Every protected request re-resolves the caller from the store, so role
// changes and deletions take effect on the next request. Unauthenticated
// requests get one uniform 401 body regardless of the cause. WebSocket
// connections authenticate with single-use tickets so bearer tokens never
// appear in URLs.
//
// # Graceful Degradation
//
// MQTT and InfluxDB are optional. Without them task events still reach
// local WebSocket clients and telemetry is simply not recorded.
package api
