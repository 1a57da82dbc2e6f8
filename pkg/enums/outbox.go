package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateWebhook     OutboxAggregateType = "webhook"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateTransaction,
	AggregateWebhook,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPaymentAuthorized  OutboxEventType = "payment_authorized"
	EventPaymentCaptured    OutboxEventType = "payment_captured"
	EventPaymentVoided      OutboxEventType = "payment_voided"
	EventPaymentRefunded    OutboxEventType = "payment_refunded"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventWebhookDiscarded   OutboxEventType = "webhook_discarded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentAuthorized,
	EventPaymentCaptured,
	EventPaymentVoided,
	EventPaymentRefunded,
	EventOrderStatusChanged,
	EventWebhookDiscarded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
