package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bazarly/backend/api/controllers"
	"github.com/bazarly/backend/internal/catalog"
	"github.com/bazarly/backend/internal/courier"
	ordersvc "github.com/bazarly/backend/internal/orders"
	"github.com/bazarly/backend/internal/pixel"
	"github.com/bazarly/backend/internal/store"
	"github.com/bazarly/backend/pkg/config"
	"github.com/bazarly/backend/pkg/logger"
	"github.com/shopspring/decimal"
)

type stubProvider struct {
	name string
	err  error
}

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) Verify(ctx context.Context) error { return s.err }
func (s stubProvider) Dispatch(ctx context.Context, sh courier.Shipment) (courier.Receipt, error) {
	if s.err != nil {
		return courier.Receipt{}, s.err
	}
	return courier.Receipt{TrackingID: "SF-777001"}, nil
}

type stubVerifier struct {
	err error
}

func (s stubVerifier) VerifyPixel(ctx context.Context) error { return s.err }

func newTestRouter(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: &bytes.Buffer{}})
	st, err := store.Open(filepath.Join(t.TempDir(), "store.json"), logg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	catalogSvc, err := catalog.NewService(st, logg)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}

	factory := func(name string, _ store.CourierSettings) (courier.Provider, error) {
		return stubProvider{name: courier.NameSteadfast}, nil
	}
	pipe, err := pixel.NewPipeline(pixel.PipelineParams{
		Sender: func() (pixel.Sender, error) {
			return nil, fmt.Errorf("pixel not configured")
		},
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	ordersService, err := ordersvc.NewService(ordersvc.ServiceParams{
		Store:    st,
		Provider: factory,
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}

	handler := NewRouter(Deps{
		Config:          &config.Config{App: config.AppConfig{Env: "test", Port: "0"}},
		Logger:          logg,
		Store:           st,
		Catalog:         catalogSvc,
		Orders:          ordersService,
		Pipeline:        pipe,
		ProviderFactory: factory,
		PixelVerifier: func(settings store.PixelSettings) (controllers.PixelVerifier, error) {
			return stubVerifier{}, nil
		},
	})
	return handler, st
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	handler, _ := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodGet, "/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestOrderFlowOverHTTP(t *testing.T) {
	handler, st := newTestRouter(t)

	var seeded []store.Product
	decodeData(t, doJSON(t, handler, http.MethodGet, "/api/v1/products?active=true", nil), &seeded)
	if len(seeded) == 0 {
		t.Fatal("expected seeded products")
	}

	placement := map[string]any{
		"customer_name": "Karim Mia",
		"phone":         "01712345678",
		"address":       "House 7, Road 3, Dhanmondi, Dhaka",
		"city":          "Dhaka",
		"items": []map[string]any{
			{"product_id": seeded[0].ID, "quantity": 2},
		},
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", placement)
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order: status %d body %s", rec.Code, rec.Body.String())
	}
	var placed store.Order
	decodeData(t, rec, &placed)
	if placed.ID == "" {
		t.Fatal("expected order id")
	}
	want := seeded[0].SalePrice.Mul(decimal.NewFromInt(2))
	if !placed.TotalPrice.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, placed.TotalPrice)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/"+placed.ID+"/dispatch", map[string]string{"provider": "steadfast"})
	if rec.Code != http.StatusOK {
		t.Fatalf("dispatch: status %d body %s", rec.Code, rec.Body.String())
	}
	var dispatched store.Order
	decodeData(t, rec, &dispatched)
	if dispatched.TrackingID != "SF-777001" || dispatched.OrderStatus != store.OrderShipped {
		t.Fatalf("unexpected dispatched order %+v", dispatched)
	}

	// Placement synthesized a notification.
	var notes []store.Notification
	decodeData(t, doJSON(t, handler, http.MethodGet, "/api/v1/notifications?unreadOnly=true", nil), &notes)
	if len(notes) != 1 || notes[0].OrderID != placed.ID {
		t.Fatalf("unexpected notifications %+v", notes)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/notifications/"+notes[0].ID.String()+"/read", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: status %d", rec.Code)
	}

	stored, ok := st.Order(placed.ID)
	if !ok || stored.CourierName != courier.NameSteadfast {
		t.Fatalf("store not updated: %+v", stored)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	handler, _ := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", map[string]any{
		"customer_name": "K",
		"phone":         "017",
		"address":       "x",
		"items":         []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestPixelVerifyActivatesPipeline(t *testing.T) {
	handler, st := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/settings/pixel", map[string]string{
		"pixel_id":     "1234567890",
		"access_token": "EAAB-long-lived-token",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put pixel settings: status %d body %s", rec.Code, rec.Body.String())
	}
	if st.PixelSettings().Status != store.PixelInactive {
		t.Fatal("new credentials must start inactive")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/settings/pixel/verify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify pixel: status %d body %s", rec.Code, rec.Body.String())
	}
	if st.PixelSettings().Status != store.PixelActive {
		t.Fatalf("expected active pixel, got %s", st.PixelSettings().Status)
	}

	var stats pixel.StatsSnapshot
	decodeData(t, doJSON(t, handler, http.MethodGet, "/api/v1/pixel/stats", nil), &stats)
	if stats.Sent != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected fresh stats %+v", stats)
	}
}

func TestCourierSettingsRoundTrip(t *testing.T) {
	handler, _ := newTestRouter(t)

	payload := store.CourierSettings{
		Steadfast: store.SteadfastSettings{APIKey: "key", SecretKey: "secret", MerchantID: "m-1"},
	}
	rec := doJSON(t, handler, http.MethodPut, "/api/v1/settings/couriers", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("put courier settings: status %d body %s", rec.Code, rec.Body.String())
	}

	var fetched store.CourierSettings
	decodeData(t, doJSON(t, handler, http.MethodGet, "/api/v1/settings/couriers", nil), &fetched)
	if fetched.Steadfast.APIKey != "key" {
		t.Fatalf("unexpected settings %+v", fetched)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/settings/couriers/steadfast/verify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify courier: status %d body %s", rec.Code, rec.Body.String())
	}
}
