package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"telegram-shop-bot/metrics"
	"telegram-shop-bot/orders"
)

// Notifier delivers a persisted order to one sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, o orders.Order) error
}

// Dispatcher fans an order out to every notifier on its own goroutine.
// Delivery is best effort: failures are logged and counted, never retried
// and never returned to the caller.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	metrics   *metrics.AppMetrics
	logger    *logrus.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(logger *logrus.Logger, m *metrics.AppMetrics, timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

// Dispatch returns immediately.
func (d *Dispatcher) Dispatch(o orders.Order) {
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := n.Notify(ctx, o); err != nil {
				d.metrics.RecordNotificationFailure(ctx, n.Name())
				d.logger.WithFields(logrus.Fields{
					"order_id": o.ID,
					"sink":     n.Name(),
				}).WithError(err).Error("Failed to notify about order")
				return
			}
			d.logger.WithFields(logrus.Fields{
				"order_id": o.ID,
				"sink":     n.Name(),
			}).Debug("Order notification delivered")
		}(n)
	}
}

// Wait blocks until in-flight notifications finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
