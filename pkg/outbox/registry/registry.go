package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and how its data
// decodes.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.Envelope
	Payload    interface{}
}

// NonRetryableError marks a row that can never publish as stored; the
// dispatcher dead-letters it instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func reject(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

func payloadOf[T any]() func() interface{} {
	return func() interface{} { return new(T) }
}

var orderEvents = map[enums.OutboxEventType]func() interface{}{
	enums.EventOrderCreated:       payloadOf[payloads.OrderCreatedEvent](),
	enums.EventOrderItemAdded:     payloadOf[payloads.OrderItemEvent](),
	enums.EventOrderItemUpdated:   payloadOf[payloads.OrderItemEvent](),
	enums.EventOrderItemRemoved:   payloadOf[payloads.OrderItemEvent](),
	enums.EventOrderItemCompleted: payloadOf[payloads.OrderItemEvent](),
	enums.EventOrderAssigned:      payloadOf[payloads.OrderAssignmentEvent](),
	enums.EventOrderUnassigned:    payloadOf[payloads.OrderAssignmentEvent](),
	enums.EventOrderStatusChanged: payloadOf[payloads.OrderStatusChangedEvent](),
	enums.EventOrderCancelled:     payloadOf[payloads.OrderCancelledEvent](),
	enums.EventOrderDeleted:       payloadOf[payloads.OrderDeletedEvent](),
}

var stockEvents = map[enums.OutboxEventType]func() interface{}{
	enums.EventStockLow: payloadOf[payloads.StockLowEvent](),
}

// EventRegistry routes every known event type to exactly one topic.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry sends order events to OrdersTopic and stock events to
// StockTopic. Both topics must be configured.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing error
	if cfg.OrdersTopic == "" {
		missing = errors.Join(missing, errors.New("orders topic is required"))
	}
	if cfg.StockTopic == "" {
		missing = errors.Join(missing, errors.New("stock topic is required"))
	}
	if missing != nil {
		return nil, missing
	}

	r := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(orderEvents)+len(stockEvents))}
	r.route(enums.AggregateOrder, cfg.OrdersTopic, orderEvents)
	r.route(enums.AggregateStockItem, cfg.StockTopic, stockEvents)
	return r, nil
}

func (r *EventRegistry) route(aggregate enums.OutboxAggregateType, topic string, events map[enums.OutboxEventType]func() interface{}) {
	for eventType, factory := range events {
		r.entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  aggregate,
			Topic:          topic,
			PayloadFactory: factory,
		}
	}
}

// Topics lists each routed topic once, sorted.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{})
	for _, desc := range r.entries {
		set[desc.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks a stored row against its descriptor and decodes the typed
// payload. Every failure is non-retryable: the row will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, reject("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, reject("aggregate mismatch: %s events belong to %s, row has %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, reject("missing aggregate_id")
	}

	var envelope outbox.Envelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, reject("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, reject("payload missing for %s", event.EventType)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, reject("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
