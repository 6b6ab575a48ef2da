package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"telegram-shop-bot/cart"
	"telegram-shop-bot/orders"
)

type OrderCreatedEvent struct {
	OrderID   int64       `json:"order_id"`
	UserID    int64       `json:"user_id"`
	Source    string      `json:"source"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
	Lines     []cart.Line `json:"lines"`
	Total     int64       `json:"total"`
	Lat       *float64    `json:"lat,omitempty"`
	Lon       *float64    `json:"lon,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	EventTime time.Time   `json:"event_time"`
}

// KafkaNotifier publishes an order-created event for downstream consumers.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *logrus.Logger
}

func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaNotifier(producer sarama.SyncProducer, topic string, logger *logrus.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, logger: logger}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Notify(_ context.Context, o orders.Order) error {
	event := OrderCreatedEvent{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Source:    string(o.Source),
		Phone:     o.Phone,
		Address:   o.Address,
		Lines:     o.Lines,
		Total:     o.Total,
		Lat:       o.Lat,
		Lon:       o.Lon,
		CreatedAt: o.CreatedAt,
		EventTime: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order %d event: %w", o.ID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(o.ID, 10)),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish order %d event: %w", o.ID, err)
	}

	k.logger.WithFields(logrus.Fields{
		"topic":     k.topic,
		"partition": partition,
		"offset":    offset,
		"order_id":  o.ID,
	}).Info("Event published to Kafka")
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
