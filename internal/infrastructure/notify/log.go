package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/example/stay-scheduler/internal/domain/notification"
)

// LogSink writes every notification to the log. It is the sink of last
// resort when no transport is configured.
type LogSink struct {
	log logrus.FieldLogger
}

func NewLogSink(log logrus.FieldLogger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Deliver(_ context.Context, n notification.Notification) error {
	s.log.WithFields(logrus.Fields{
		"recipient_id":   n.RecipientID,
		"kind":           n.Kind,
		"reservation_id": n.ReservationID,
	}).Info(n.Text)
	return nil
}
