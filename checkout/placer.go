package checkout

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"telegram-shop-bot/metrics"
	"telegram-shop-bot/orders"
)

// Dispatcher hands a persisted order to the notification sinks without
// waiting for them.
type Dispatcher interface {
	Dispatch(o orders.Order)
}

// Placer is the terminal step shared by every checkout path: persist first,
// then notify. A notification is never attempted for an order that was not
// stored.
type Placer struct {
	repo       orders.Repository
	dispatcher Dispatcher
	metrics    *metrics.AppMetrics
	logger     *logrus.Logger
}

func NewPlacer(repo orders.Repository, dispatcher Dispatcher, m *metrics.AppMetrics, logger *logrus.Logger) *Placer {
	return &Placer{repo: repo, dispatcher: dispatcher, metrics: m, logger: logger}
}

func (p *Placer) Place(ctx context.Context, d orders.Draft) (*orders.Order, error) {
	o, err := p.repo.Save(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("checkout: persist order: %w", err)
	}

	p.metrics.RecordOrder(ctx, string(o.Source), o.Total)
	p.logger.WithFields(logrus.Fields{
		"order_id": o.ID,
		"user_id":  o.UserID,
		"source":   o.Source,
		"total":    o.Total,
		"lines":    len(o.Lines),
	}).Info("Order placed")

	p.dispatcher.Dispatch(*o)
	return o, nil
}
