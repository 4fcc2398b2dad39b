package httperr

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "httperr-test", Output: &bytes.Buffer{}})
}

func classify(t *testing.T, status int, body string) *pkgerrors.Error {
	t.Helper()
	return Classify(context.Background(), testLogger(), Input{
		Status:  status,
		Body:    []byte(body),
		URL:     "https://provider.example/create_order",
		Context: "create order",
	})
}

func TestClassifyJSONMessageShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "top level message", body: `{"message":"invalid phone number"}`, want: "invalid phone number"},
		{name: "nested error message", body: `{"error":{"message":"store not active"}}`, want: "store not active"},
		{name: "errors array", body: `{"errors":[{"message":"zone missing"}]}`, want: "zone missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(t, http.StatusUnprocessableEntity, tt.body)
			if err.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation code, got %s", err.Code())
			}
			if !strings.Contains(err.Message(), tt.want) {
				t.Fatalf("expected message to embed %q, got %q", tt.want, err.Message())
			}
		})
	}
}

func TestClassifyDuplicateInvoiceHTMLOn500(t *testing.T) {
	body := `<html><body><h1>Whoops</h1><p>Duplicate entry for Invoice #310825-1234</p></body></html>`
	err := classify(t, http.StatusInternalServerError, body)
	if err.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %s", err.Code())
	}
	if !strings.Contains(strings.ToLower(err.Message()), "duplicate") || !strings.Contains(strings.ToLower(err.Message()), "invoice") {
		t.Fatalf("expected duplicate-invoice message, got %q", err.Message())
	}
}

func TestClassifyHTMLH1Preferred(t *testing.T) {
	body := `<html><head><title>x</title></head><body><h1>SQLSTATE[23000]: Integrity constraint violation</h1><p>stack trace...</p></body></html>`
	err := classify(t, 418, body)
	if !strings.Contains(err.Message(), "SQLSTATE[23000]") {
		t.Fatalf("expected SQLSTATE extract, got %q", err.Message())
	}
}

func TestClassifyBackendPatternWithoutH1(t *testing.T) {
	body := `<div>Fatal ErrorException in OrderController.php line 42</div>`
	err := classify(t, 400, body)
	if !strings.Contains(err.Message(), "ErrorException") {
		t.Fatalf("expected exception extract, got %q", err.Message())
	}
}

func TestClassifyStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusUnprocessableEntity, pkgerrors.CodeValidation},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusInternalServerError, pkgerrors.CodeInternal},
		{http.StatusServiceUnavailable, pkgerrors.CodeUnavailable},
		{http.StatusTeapot, pkgerrors.CodeProviderRejected},
	}

	for _, tt := range tests {
		err := classify(t, tt.status, `{"message":"whatever"}`)
		if err.Code() != tt.code {
			t.Fatalf("status %d: expected code %s got %s", tt.status, tt.code, err.Code())
		}
	}
}

func TestClassifyNeverPanicsOnGarbage(t *testing.T) {
	bodies := []string{
		"",
		"\x00\x01\x02binary",
		"<<<<<not markup",
		`{"message":`,
		strings.Repeat("x", 10000),
	}
	for _, body := range bodies {
		err := classify(t, 500, body)
		if err == nil || err.Message() == "" {
			t.Fatalf("expected non-empty message for body %q", body)
		}
	}
}

func TestClassifyNilLogger(t *testing.T) {
	err := Classify(context.Background(), nil, Input{Status: 503, Body: []byte("down")})
	if err.Code() != pkgerrors.CodeUnavailable {
		t.Fatalf("expected unavailable, got %s", err.Code())
	}
}

func TestClassifyGenericTruncation(t *testing.T) {
	err := classify(t, 400, strings.Repeat("a", 1000))
	if len(err.Message()) > 300 {
		t.Fatalf("expected truncated message, got %d chars", len(err.Message()))
	}
}
