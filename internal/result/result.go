// Package result provides the uniform success/failure carrier returned by
// every exposed pipeline and alert operation. Failures travel as keyed,
// human-readable notifications instead of panics or bare errors, so callers
// always receive an inspectable outcome.
package result

import "fmt"

// Notification is a keyed failure message.
type Notification struct {
	Key     string
	Message string
}

// String renders the notification as "Key: Message".
func (n Notification) String() string {
	return n.Key + ": " + n.Message
}

// Result carries an operation outcome. On failure the Value may still be
// populated with partial statistics (batch ingestion reports counts and
// itemized errors even when the call as a whole failed).
type Result[T any] struct {
	Value         T
	Notifications []Notification
	Succeeded     bool
}

// Success wraps a value in a succeeded result.
func Success[T any](value T) Result[T] {
	return Result[T]{Value: value, Succeeded: true}
}

// Failure builds a failed result from notifications.
func Failure[T any](notifications ...Notification) Result[T] {
	return Result[T]{Notifications: notifications}
}

// FailureWith builds a failed result that still carries a value.
func FailureWith[T any](value T, notifications ...Notification) Result[T] {
	return Result[T]{Value: value, Notifications: notifications}
}

// Failuref builds a failed result with a single formatted notification.
func Failuref[T any](key, format string, args ...any) Result[T] {
	return Failure[T](Notification{Key: key, Message: fmt.Sprintf(format, args...)})
}

// HasKey reports whether any notification carries the given key.
func (r Result[T]) HasKey(key string) bool {
	for _, n := range r.Notifications {
		if n.Key == key {
			return true
		}
	}
	return false
}

// Messages returns the notification messages in order.
func (r Result[T]) Messages() []string {
	out := make([]string, len(r.Notifications))
	for i, n := range r.Notifications {
		out[i] = n.Message
	}
	return out
}
