package session

import "context"

// Severity classifies a user-visible notification.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Event identifies which lifecycle step produced a notification.
type Event string

const (
	EventActivated   Event = "activated"
	EventDeactivated Event = "deactivated"
	EventFailed      Event = "failed"
)

// Notification is one user-visible activation, deactivation, or error message.
type Notification struct {
	Event       Event
	Title       string
	Description string
	Severity    Severity
}

// Notifier renders notifications. Implementations must not block for long.
type Notifier interface {
	Notify(context.Context, Notification)
}

// NotifyFunc adapts a function to the Notifier interface.
type NotifyFunc func(context.Context, Notification)

func (f NotifyFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

var (
	activatedNotification = Notification{
		Event:       EventActivated,
		Title:       "SpyMic Activated",
		Description: "Microphone connected and audio is live.",
		Severity:    SeverityInfo,
	}
	deactivatedNotification = Notification{
		Event:       EventDeactivated,
		Title:       "SpyMic Deactivated",
		Description: "Microphone disconnected.",
		Severity:    SeverityInfo,
	}
	failedNotification = Notification{
		Event:       EventFailed,
		Title:       "Error",
		Description: "Could not access microphone. Please check permissions.",
		Severity:    SeverityError,
	}
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}
