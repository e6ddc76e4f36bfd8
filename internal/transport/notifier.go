package transport

import (
	"github.com/MarcoPoloResearchLab/pks/internal/events"
	"go.uber.org/zap"
)

// Notice is the user-facing side effect of a failed request.
type Notice struct {
	Kind      Kind
	Status    int
	Message   string
	Method    string
	Path      string
	RequestID string
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(notice Notice) {
	f(notice)
}

type multiNotifier []Notifier

func (m multiNotifier) Notify(notice Notice) {
	for _, notifier := range m {
		notifier.Notify(notice)
	}
}

// Notifiers fans a notice out to every non-nil notifier.
func Notifiers(notifiers ...Notifier) Notifier {
	filtered := make(multiNotifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			filtered = append(filtered, notifier)
		}
	}
	return filtered
}

// NewLogNotifier writes notices to logger.
func NewLogNotifier(logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NotifierFunc(func(notice Notice) {
		logger.Warn(notice.Message,
			zap.String("kind", string(notice.Kind)),
			zap.Int("status", notice.Status),
			zap.String("method", notice.Method),
			zap.String("path", notice.Path),
			zap.String("request_id", notice.RequestID))
	})
}

// NewEventNotifier publishes notices on the notice topic, with the failure kind as the action.
func NewEventNotifier(publisher events.Publisher) Notifier {
	if publisher == nil {
		publisher = events.Discard
	}
	return NotifierFunc(func(notice Notice) {
		publisher.Publish(events.Event{
			Topic:   events.TopicNotice,
			Action:  string(notice.Kind),
			Message: notice.Message,
		})
	})
}
