package courier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/shopspring/decimal"
)

func steadfastSettings(baseURL string) store.CourierSettings {
	return store.CourierSettings{
		Steadfast: store.SteadfastSettings{
			APIKey:     "api-key-1",
			SecretKey:  "secret-key-1",
			MerchantID: "m-1",
			BaseURL:    baseURL,
		},
	}
}

func TestSteadfastVerifyChecksBothStatusLayers(t *testing.T) {
	var gotAPIKey, gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_balance" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAPIKey = r.Header.Get("Api-Key")
		gotSecret = r.Header.Get("Secret-Key")
		json.NewEncoder(w).Encode(map[string]any{"status": 200, "current_balance": 1520.50})
	}))
	defer server.Close()

	provider := newTestProvider(t, "steadfast", server.URL, steadfastSettings(server.URL))
	if err := provider.Verify(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotAPIKey != "api-key-1" || gotSecret != "secret-key-1" {
		t.Fatalf("expected static key headers, got %q/%q", gotAPIKey, gotSecret)
	}
}

func TestSteadfastInnerStatusSoftRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Transport says OK, application status says no.
		json.NewEncoder(w).Encode(map[string]any{"status": 400, "message": "Invalid api key"})
	}))
	defer server.Close()

	provider := newTestProvider(t, "steadfast", server.URL, steadfastSettings(server.URL))
	err := provider.Verify(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeProviderRejected {
		t.Fatalf("expected provider-rejected on inner status, got %v", err)
	}
	if typed.Message() != "Invalid api key" {
		t.Fatalf("expected provider message surfaced, got %q", typed.Message())
	}
}

func TestSteadfastDispatchSuccess(t *testing.T) {
	var orderBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create_order" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&orderBody); err != nil {
			t.Errorf("decode order request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  200,
			"message": "Consignment has been created successfully.",
			"consignment": map[string]any{
				"consignment_id": float64(9988776),
				"tracking_code":  "SF-553311",
				"status":         "in_review",
			},
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, "steadfast", server.URL, steadfastSettings(server.URL))
	receipt, err := provider.Dispatch(context.Background(), Shipment{
		MerchantOrderID:  "310825-1234",
		RecipientName:    "Rahim Uddin",
		RecipientPhone:   "8801712345678",
		RecipientAddress: "House 12, Road 5",
		CODAmount:        decimal.NewFromInt(2350),
		Note:             "Call before delivery\nFragile",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if receipt.TrackingID != "SF-553311" {
		t.Fatalf("unexpected tracking id %q", receipt.TrackingID)
	}
	if orderBody["invoice"] != "310825-1234" {
		t.Fatalf("invoice must carry the order id, got %v", orderBody["invoice"])
	}
	if orderBody["recipient_phone"] != "01712345678" {
		t.Fatalf("expected normalized phone, got %v", orderBody["recipient_phone"])
	}
	if orderBody["cod_amount"] != float64(2350) {
		t.Fatalf("unexpected cod amount %v", orderBody["cod_amount"])
	}
	if orderBody["note"] != "Call before delivery, Fragile" {
		t.Fatalf("expected sanitized note, got %v", orderBody["note"])
	}
}

func TestSteadfastDuplicateInvoiceSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<html><body><h1>Error</h1><p>Duplicate Invoice detected</p></body></html>`))
	}))
	defer server.Close()

	provider := newTestProvider(t, "steadfast", server.URL, steadfastSettings(server.URL))
	_, err := provider.Dispatch(context.Background(), Shipment{MerchantOrderID: "310825-1", CODAmount: decimal.NewFromInt(100)})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected duplicate-invoice conflict, got %v", err)
	}
}

func TestSteadfastMissingKeysRejectedLocally(t *testing.T) {
	_, err := FromSettings("steadfast", store.CourierSettings{}, Options{Logger: testCourierLogger()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected local validation error, got %v", err)
	}
}

func TestSteadfastStringInnerStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "200", "current_balance": 10})
	}))
	defer server.Close()

	provider := newTestProvider(t, "steadfast", server.URL, steadfastSettings(server.URL))
	if err := provider.Verify(context.Background()); err != nil {
		t.Fatalf("expected string status to parse, got %v", err)
	}
}
