// Package notify is the boundary for fire-and-forget notifications sent
// after AI-generated activity, such as a new comment on a note.
package notify

import (
	"context"
	"log/slog"
)

// Kind identifies the notification type.
type Kind string

// KindComment is sent after an AI comment is created on a note.
const KindComment Kind = "comment"

// Notifier dispatches a notification to a note owner. Implementations must
// not block the caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64, kind Kind)
}

// LogNotifier records notifications to the logger. It stands in for a real
// delivery channel in CLI and test deployments.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, ownerID int64, kind Kind) {
	n.logger.Info("notification dispatched", "owner_id", ownerID, "kind", kind)
}
