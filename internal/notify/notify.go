// Package notify fans lifecycle notifications out to interested sinks.
// Notification is fire-and-forget: the dispatch core never blocks on a
// sink and ignores sink errors.
package notify

import (
	"foreman/internal/events"
)

// Func receives a lifecycle event name and payload. Implementations must
// not block the caller; slow sinks should buffer or drop.
type Func func(event string, payload map[string]interface{})

// Nop is a notifier that discards everything.
func Nop(event string, payload map[string]interface{}) {}

// ToEventLog returns a notifier that appends to the JSONL event log.
// Append errors are dropped (the log is best-effort).
func ToEventLog(log *events.Log, actor string) Func {
	return func(event string, payload map[string]interface{}) {
		_ = log.Append(event, actor, payload)
	}
}

// Multi fans one notification out to several sinks in order.
func Multi(fns ...Func) Func {
	return func(event string, payload map[string]interface{}) {
		for _, fn := range fns {
			if fn != nil {
				fn(event, payload)
			}
		}
	}
}
