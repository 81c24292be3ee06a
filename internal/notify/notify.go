package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKeyStatusChanged is the topic every order status event is published under.
const RoutingKeyStatusChanged = "order.status_changed"

// StatusChanged describes one order status transition.
type StatusChanged struct {
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id,omitempty"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChanged) error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) PublishStatusChanged(context.Context, StatusChanged) error { return nil }

func newPublishing(event StatusChanged) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     uuid.NewString(),
		CorrelationId: event.OrderID,
		Timestamp:     event.OccurredAt.UTC(),
		Type:          RoutingKeyStatusChanged,
		Headers: amqp.Table{
			"x-source": "dispatch",
		},
		Body: body,
	}, nil
}
