package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/example/stay-scheduler/internal/domain/notification"
)

// Guard stops calling a remote sink after repeated failures and probes it
// again once the breaker's timeout elapses.
type Guard struct {
	next notification.Sink
	cb   *gobreaker.CircuitBreaker
}

func NewGuard(name string, next notification.Sink, log logrus.FieldLogger) *Guard {
	return &Guard{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(logrus.Fields{"sink": name, "from": from.String(), "to": to.String()}).Warn("notification sink breaker changed state")
			},
		}),
	}
}

func (g *Guard) Deliver(ctx context.Context, n notification.Notification) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.Deliver(ctx, n)
	})
	return err
}

func (g *Guard) State() gobreaker.State { return g.cb.State() }
