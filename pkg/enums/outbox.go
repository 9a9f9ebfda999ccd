package enums

import (
	"fmt"
	"slices"
)

type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateStockItem OutboxAggregateType = "stock_item"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateStockItem
}

// OutboxEventType is the event_type column of an outbox row and the
// event_type attribute of the published message.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderItemAdded     OutboxEventType = "order_item_added"
	EventOrderItemUpdated   OutboxEventType = "order_item_updated"
	EventOrderItemRemoved   OutboxEventType = "order_item_removed"
	EventOrderItemCompleted OutboxEventType = "order_item_completed"
	EventOrderAssigned      OutboxEventType = "order_assigned"
	EventOrderUnassigned    OutboxEventType = "order_unassigned"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventOrderDeleted       OutboxEventType = "order_deleted"
	EventStockLow           OutboxEventType = "stock_low"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated, EventOrderItemAdded, EventOrderItemUpdated, EventOrderItemRemoved,
	EventOrderItemCompleted, EventOrderAssigned, EventOrderUnassigned, EventOrderStatusChanged,
	EventOrderCancelled, EventOrderDeleted, EventStockLow,
}

// OutboxEventTypes returns every known event type.
func OutboxEventTypes() []OutboxEventType {
	return slices.Clone(outboxEventTypes)
}

func (e OutboxEventType) IsValid() bool {
	return slices.Contains(outboxEventTypes, e)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why a row left the publish loop.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
