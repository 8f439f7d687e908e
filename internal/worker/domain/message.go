package domain

import (
	"github.com/cuongbtq/pickup-be/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventMessage is a decoded job event together with the delivery that must
// be acknowledged once it is handled.
type EventMessage struct {
	Event    *events.JobEvent
	Delivery amqp.Delivery
}
