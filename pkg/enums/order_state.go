package enums

import "fmt"

// OrderState maps to the order_state_enum enum in Postgres. States are the
// coarse lifecycle buckets; the operator-facing status string within a state
// is configurable.
type OrderState string

const (
	OrderStateNew        OrderState = "new"
	OrderStateProcessing OrderState = "processing"
	OrderStateComplete   OrderState = "complete"
	OrderStateClosed     OrderState = "closed"
	OrderStateCanceled   OrderState = "canceled"
)

var validOrderStates = []OrderState{
	OrderStateNew,
	OrderStateProcessing,
	OrderStateComplete,
	OrderStateClosed,
	OrderStateCanceled,
}

// IsValid reports whether the value matches the canonical order state enum.
func (s OrderState) IsValid() bool {
	for _, candidate := range validOrderStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state admits no further status overrides.
func (s OrderState) IsTerminal() bool {
	return s == OrderStateClosed || s == OrderStateComplete
}

// ParseOrderState converts raw input into OrderState.
func ParseOrderState(value string) (OrderState, error) {
	for _, candidate := range validOrderStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order state %q", value)
}
