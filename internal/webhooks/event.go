package webhooks

import (
	"github.com/shopspring/decimal"

	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

// GatewayEvent is the notification body the payment gateway posts to the
// webhook endpoint. Amounts arrive in minor units.
type GatewayEvent struct {
	ID        string           `json:"id" validate:"required"`
	Type      string           `json:"type" validate:"required"`
	CreatedOn string           `json:"created_on"`
	Data      GatewayEventData `json:"data" validate:"required"`
}

// GatewayEventData carries the payment fields inside a gateway event.
type GatewayEventData struct {
	ID        string              `json:"id" validate:"required"`
	ActionID  string              `json:"action_id"`
	Amount    int64               `json:"amount"`
	Currency  string              `json:"currency"`
	Reference string              `json:"reference" validate:"required"`
	Source    *GatewayEventSource `json:"source"`
	Metadata  map[string]string   `json:"metadata"`
}

// GatewayEventSource describes the stored card a verification event refers to.
type GatewayEventSource struct {
	ID          string `json:"id"`
	Scheme      string `json:"scheme"`
	Last4       string `json:"last4"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
}

// EventType parses the raw event type string.
func (e *GatewayEvent) EventType() (enums.GatewayEventType, error) {
	return enums.ParseGatewayEventType(e.Type)
}

// AmountMajor converts the minor-unit amount to major units.
func (d GatewayEventData) AmountMajor() decimal.Decimal {
	return decimal.New(d.Amount, -2)
}
