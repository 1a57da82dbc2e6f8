package transactions

import "github.com/practice-code/checkout-reconciler/pkg/enums"

// eventTransactionTypes maps monitored gateway event types to the transaction
// they produce. Events outside this table are persisted but never change
// payment state.
var eventTransactionTypes = map[enums.GatewayEventType]enums.TransactionType{
	enums.GatewayEventPaymentApproved: enums.TransactionTypeAuthorization,
	enums.GatewayEventPaymentCaptured: enums.TransactionTypeCapture,
	enums.GatewayEventPaymentVoided:   enums.TransactionTypeVoid,
	enums.GatewayEventPaymentRefunded: enums.TransactionTypeRefund,
}

// TransactionTypeForEvent resolves the transaction type a gateway event maps to.
func TransactionTypeForEvent(event enums.GatewayEventType) (enums.TransactionType, bool) {
	t, ok := eventTransactionTypes[event]
	return t, ok
}

// IsMonitored reports whether the gateway event type produces a transaction.
func IsMonitored(event enums.GatewayEventType) bool {
	_, ok := eventTransactionTypes[event]
	return ok
}

// MonitoredEventTypes returns the gateway event types that produce transactions.
func MonitoredEventTypes() []enums.GatewayEventType {
	out := make([]enums.GatewayEventType, 0, len(eventTransactionTypes))
	for event := range eventTransactionTypes {
		out = append(out, event)
	}
	return out
}
