package mqtt

import "errors"

// Sentinel errors. Wrapped errors keep these as their cause, so callers
// match with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed covers both subscribe and unsubscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscription change failed")

	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic reports an empty topic, a wildcard in a publish topic
	// or a badly placed wildcard in a filter.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
