package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	gatewaywebhooks "github.com/practice-code/checkout-reconciler/internal/webhooks"
)

const testSecret = "whsec_test"

func TestGatewayWebhook_Accepted(t *testing.T) {
	payload := buildGatewayEvent(t, "payment_captured", "act_1")
	service := &fakeIngestService{}
	handler := GatewayWebhook(service, testSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set("Cko-Signature", signPayload(payload, testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
}

func TestGatewayWebhook_MissingSignature(t *testing.T) {
	payload := buildGatewayEvent(t, "payment_captured", "act_1")
	service := &fakeIngestService{}
	handler := GatewayWebhook(service, testSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service must not run without a signature")
	}
}

func TestGatewayWebhook_InvalidSignature(t *testing.T) {
	payload := buildGatewayEvent(t, "payment_captured", "act_1")
	service := &fakeIngestService{}
	handler := GatewayWebhook(service, testSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set("Cko-Signature", signPayload(payload, "wrong-secret"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service must not run with a forged signature")
	}
}

func TestGatewayWebhook_MalformedBody(t *testing.T) {
	payload := []byte(`{"id":`)
	service := &fakeIngestService{}
	handler := GatewayWebhook(service, testSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set("Cko-Signature", signPayload(payload, testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestGatewayWebhook_MissingRequiredFields(t *testing.T) {
	payload, err := json.Marshal(map[string]any{"type": "payment_captured"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	service := &fakeIngestService{}
	handler := GatewayWebhook(service, testSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set("Cko-Signature", signPayload(payload, testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service must not run on invalid payloads")
	}
}

func buildGatewayEvent(t *testing.T, eventType, actionID string) []byte {
	t.Helper()
	event := gatewaywebhooks.GatewayEvent{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: gatewaywebhooks.GatewayEventData{
			ID:        "pay_" + uuid.NewString(),
			ActionID:  actionID,
			Amount:    6500,
			Currency:  "USD",
			Reference: "100000042",
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeIngestService struct {
	calls int
	err   error
}

func (f *fakeIngestService) IngestOne(ctx context.Context, event *gatewaywebhooks.GatewayEvent) error {
	f.calls++
	return f.err
}
