// Package notify announces lifecycle events to interested parties. Delivery
// (email, chat) is an external collaborator; failures never propagate into the
// triggering operation.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Event is a lifecycle announcement
type Event struct {
	Type       string // submitted, approved, rejected, finance_approved, paid
	ResourceID string // claim or leave ID
	ActorID    string
	EmployeeID string
	Note       string
}

// Notifier delivers lifecycle events. Implementations must be fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier records events to the structured log only. Stands in for the
// email collaborator in deployments without one configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event
func (n *LogNotifier) Notify(ctx context.Context, event Event) {
	n.logger.Info("Notification",
		zap.String("type", event.Type),
		zap.String("resource_id", event.ResourceID),
		zap.String("actor_id", event.ActorID),
		zap.String("employee_id", event.EmployeeID))
}
