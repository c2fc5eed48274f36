// Package notify implements per-viewer call reminder scheduling. Each signed
// in viewer is served by one scheduler goroutine that scans the calls visible
// to them and delivers reminder notifications to a sink as offsets before the
// scheduled time elapse.
package notify

import (
	"time"

	"github.com/example/interview-tracker/internal/application"
)

// NotificationKind labels why a notification fired.
type NotificationKind string

const (
	// KindReminder marks a notification fired by an offset before the call.
	KindReminder NotificationKind = "reminder"
	// KindSnooze marks a one-shot notification requested via snooze.
	KindSnooze NotificationKind = "snooze"
)

// Notification is a single reminder delivered to a viewer.
type Notification struct {
	ID       string
	ViewerID string
	CallID   string
	Call     application.Call
	Kind     NotificationKind
	// OffsetMinutes is the reminder offset that fired; zero for snoozes.
	OffsetMinutes int
	FiredAt       time.Time
}

// Sink receives notifications from a scheduler. Implementations must be safe
// for concurrent use: delivery happens on scheduler goroutines while reads
// come from request handlers.
type Sink interface {
	// Deliver hands a fired notification to the viewer.
	Deliver(notification Notification)
	// Withdraw removes any displayed notifications for a call the viewer can
	// no longer see or that no longer needs reminding.
	Withdraw(callID string)
}
