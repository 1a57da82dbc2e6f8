package enums

import "fmt"

// GatewayEventType is the event_type field carried by gateway webhook payloads.
type GatewayEventType string

const (
	GatewayEventPaymentApproved        GatewayEventType = "payment_approved"
	GatewayEventPaymentPending         GatewayEventType = "payment_pending"
	GatewayEventPaymentDeclined        GatewayEventType = "payment_declined"
	GatewayEventPaymentExpired         GatewayEventType = "payment_expired"
	GatewayEventPaymentCanceled        GatewayEventType = "payment_canceled"
	GatewayEventPaymentCaptured        GatewayEventType = "payment_captured"
	GatewayEventPaymentCapturePending  GatewayEventType = "payment_capture_pending"
	GatewayEventPaymentCaptureDeclined GatewayEventType = "payment_capture_declined"
	GatewayEventPaymentVoided          GatewayEventType = "payment_voided"
	GatewayEventPaymentVoidDeclined    GatewayEventType = "payment_void_declined"
	GatewayEventPaymentRefunded        GatewayEventType = "payment_refunded"
	GatewayEventPaymentRefundDeclined  GatewayEventType = "payment_refund_declined"
	GatewayEventCardVerified           GatewayEventType = "card_verified"
	GatewayEventCardVerificationDecl   GatewayEventType = "card_verification_declined"
)

var validGatewayEventTypes = []GatewayEventType{
	GatewayEventPaymentApproved,
	GatewayEventPaymentPending,
	GatewayEventPaymentDeclined,
	GatewayEventPaymentExpired,
	GatewayEventPaymentCanceled,
	GatewayEventPaymentCaptured,
	GatewayEventPaymentCapturePending,
	GatewayEventPaymentCaptureDeclined,
	GatewayEventPaymentVoided,
	GatewayEventPaymentVoidDeclined,
	GatewayEventPaymentRefunded,
	GatewayEventPaymentRefundDeclined,
	GatewayEventCardVerified,
	GatewayEventCardVerificationDecl,
}

// IsValid reports whether the value is an event type this service accepts.
func (e GatewayEventType) IsValid() bool {
	for _, candidate := range validGatewayEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseGatewayEventType converts raw input into GatewayEventType.
func ParseGatewayEventType(value string) (GatewayEventType, error) {
	for _, candidate := range validGatewayEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway event type %q", value)
}
