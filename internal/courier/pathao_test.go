package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
	"github.com/shopspring/decimal"
)

func testCourierLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "courier-test", Output: &bytes.Buffer{}})
}

func pathaoSettings(baseURL string) store.CourierSettings {
	return store.CourierSettings{
		Pathao: store.PathaoSettings{
			ClientID:     "client-1",
			ClientSecret: "secret-1",
			StoreID:      "store-9",
			Username:     "merchant@example.com",
			Password:     "pw",
			BaseURL:      baseURL,
		},
	}
}

func newTestProvider(t *testing.T, name, baseURL string, settings store.CourierSettings) Provider {
	t.Helper()
	provider, err := FromSettings(name, settings, Options{Logger: testCourierLogger()})
	if err != nil {
		t.Fatalf("build %s provider: %v", name, err)
	}
	return provider
}

func TestPathaoDispatchTokenFlowAndPayload(t *testing.T) {
	var tokenBody, orderBody map[string]any
	var orderAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/issue-token":
			if err := json.NewDecoder(r.Body).Decode(&tokenBody); err != nil {
				t.Errorf("decode token request: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-abc", "token_type": "Bearer", "expires_in": 432000})
		case "/orders":
			orderAuth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&orderBody); err != nil {
				t.Errorf("decode order request: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"message": "Order Created Successfully",
				"type":    "success",
				"code":    201,
				"data":    map[string]any{"consignment_id": "DL310825ABCDE", "order_status": "Pending"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := newTestProvider(t, "pathao", server.URL, pathaoSettings(server.URL))
	receipt, err := provider.Dispatch(context.Background(), Shipment{
		MerchantOrderID:  "310825-1234",
		RecipientName:    "Rahim Uddin",
		RecipientPhone:   "+8801712345678",
		RecipientAddress: "House 12\nRoad 5, Dhanmondi",
		RecipientCity:    "Dhaka",
		RecipientZone:    "Dhanmondi",
		CODAmount:        decimal.NewFromFloat(2349.6),
		ItemQuantity:     3,
		ItemWeight:       0.5,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if receipt.TrackingID != "DL310825ABCDE" {
		t.Fatalf("unexpected tracking id %q", receipt.TrackingID)
	}
	if tokenBody["grant_type"] != "password" || tokenBody["client_id"] != "client-1" {
		t.Fatalf("unexpected token payload %v", tokenBody)
	}
	if orderAuth != "Bearer tok-abc" {
		t.Fatalf("expected bearer auth, got %q", orderAuth)
	}
	if orderBody["merchant_order_id"] != "310825-1234" {
		t.Fatalf("order id must anchor idempotency, got %v", orderBody["merchant_order_id"])
	}
	if orderBody["recipient_phone"] != "01712345678" {
		t.Fatalf("expected normalized phone, got %v", orderBody["recipient_phone"])
	}
	if addr, _ := orderBody["recipient_address"].(string); strings.ContainsAny(addr, "\r\n") {
		t.Fatalf("address must be newline-collapsed, got %q", addr)
	}
	if orderBody["amount_to_collect"] != float64(2350) {
		t.Fatalf("expected COD rounded to whole unit, got %v", orderBody["amount_to_collect"])
	}
}

func TestPathaoVerifyUsesTokenExchange(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/issue-token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		calls++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok"})
	}))
	defer server.Close()

	provider := newTestProvider(t, "pathao", server.URL, pathaoSettings(server.URL))
	if err := provider.Verify(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one token call, got %d", calls)
	}
}

func TestPathaoBadCredentialsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"message": "Invalid credentials"})
	}))
	defer server.Close()

	provider := newTestProvider(t, "pathao", server.URL, pathaoSettings(server.URL))
	err := provider.Verify(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized classification, got %v", err)
	}
}

func TestPathaoMissingConsignmentIDRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/issue-token" {
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"message": "ok", "data": map[string]any{}})
	}))
	defer server.Close()

	provider := newTestProvider(t, "pathao", server.URL, pathaoSettings(server.URL))
	_, err := provider.Dispatch(context.Background(), Shipment{MerchantOrderID: "310825-1", CODAmount: decimal.NewFromInt(100)})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeProviderRejected {
		t.Fatalf("expected provider rejection, got %v", err)
	}
}

func TestPathaoIncompleteCredentialsRejectedLocally(t *testing.T) {
	_, err := FromSettings("pathao", store.CourierSettings{}, Options{Logger: testCourierLogger()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected local validation error, got %v", err)
	}
}

func TestFromSettingsUnknownProvider(t *testing.T) {
	_, err := FromSettings("dhl", store.CourierSettings{}, Options{Logger: testCourierLogger()})
	if err == nil {
		t.Fatal("expected unknown provider to be rejected")
	}
}

func TestExtractTrackingMappingTable(t *testing.T) {
	tests := []struct {
		provider string
		payload  map[string]any
		want     string
	}{
		{NamePathao, map[string]any{"data": map[string]any{"consignment_id": "DL1"}}, "DL1"},
		{NamePathao, map[string]any{"consignment_id": "DL2"}, "DL2"},
		{NameSteadfast, map[string]any{"consignment": map[string]any{"tracking_code": "SF1"}}, "SF1"},
		{NameSteadfast, map[string]any{"consignment": map[string]any{"consignment_id": float64(10101)}}, "10101"},
		{NameSteadfast, map[string]any{"tracking_code": "SF2"}, "SF2"},
		{NameSteadfast, map[string]any{"id": float64(77)}, "77"},
		{NameSteadfast, map[string]any{"unrelated": "x"}, ""},
	}

	for _, tt := range tests {
		if got := extractTracking(tt.provider, tt.payload); got != tt.want {
			t.Fatalf("extractTracking(%s, %v) = %q, want %q", tt.provider, tt.payload, got, tt.want)
		}
	}
}
