package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/httperr"
	"github.com/bazarly/backend/pkg/logger"
)

const (
	steadfastDefaultBaseURL = "https://portal.packzy.com/api/v1"

	steadfastAddressLimit = 250
	steadfastNoteLimit    = 200
)

type steadfastClient struct {
	settings store.SteadfastSettings
	baseURL  string
	http     *http.Client
	logg     *logger.Logger
}

func newSteadfast(settings store.SteadfastSettings, configuredBase string, client *http.Client, logg *logger.Logger) (*steadfastClient, error) {
	if settings.APIKey == "" || settings.SecretKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "steadfast api key and secret key are required")
	}

	base := strings.TrimRight(settings.BaseURL, "/")
	if base == "" {
		base = strings.TrimRight(configuredBase, "/")
	}
	if base == "" {
		base = steadfastDefaultBaseURL
	}

	return &steadfastClient{
		settings: settings,
		baseURL:  base,
		http:     client,
		logg:     logg,
	}, nil
}

func (c *steadfastClient) Name() string { return NameSteadfast }

// Verify reads the merchant balance. SteadFast overloads an application-level
// status field inside a transport-200 response, so both layers are checked.
func (c *steadfastClient) Verify(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, "/get_balance", nil)
	if err != nil {
		return transportError(err, "steadfast balance check")
	}
	if status < 200 || status > 299 {
		return httperr.Classify(ctx, c.logg, httperr.Input{
			Status:  status,
			Body:    body,
			URL:     c.baseURL + "/get_balance",
			Context: "steadfast balance check",
		})
	}

	parsed, inner, err := parseSteadfastBody(body)
	if err != nil {
		return err
	}
	if inner != http.StatusOK {
		return pkgerrors.New(pkgerrors.CodeProviderRejected, steadfastMessage(parsed, fmt.Sprintf("steadfast rejected the credentials (status %d)", inner)))
	}
	return nil
}

func (c *steadfastClient) Dispatch(ctx context.Context, shipment Shipment) (Receipt, error) {
	payload := map[string]any{
		"invoice":           shipment.MerchantOrderID,
		"recipient_name":    sanitizeText(shipment.RecipientName, 100),
		"recipient_phone":   NormalizePhone(shipment.RecipientPhone),
		"recipient_address": sanitizeText(shipment.RecipientAddress, steadfastAddressLimit),
		"cod_amount":        roundWhole(shipment.CODAmount),
		"note":              sanitizeText(shipment.Note, steadfastNoteLimit),
	}

	status, body, err := c.do(ctx, http.MethodPost, "/create_order", payload)
	if err != nil {
		return Receipt{}, transportError(err, "steadfast order submission")
	}
	if status < 200 || status > 299 {
		return Receipt{}, httperr.Classify(ctx, c.logg, httperr.Input{
			Status:  status,
			Body:    body,
			URL:     c.baseURL + "/create_order",
			Context: "steadfast order submission",
		})
	}

	parsed, inner, err := parseSteadfastBody(body)
	if err != nil {
		return Receipt{}, err
	}
	if inner != http.StatusOK {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeProviderRejected, steadfastMessage(parsed, fmt.Sprintf("steadfast rejected the order (status %d)", inner)))
	}

	tracking := extractTracking(NameSteadfast, parsed)
	if tracking == "" {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeProviderRejected, "steadfast accepted the order but returned no tracking code")
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"invoice":       shipment.MerchantOrderID,
		"tracking_code": tracking,
	})
	c.logg.Info(ctx, "steadfast order submitted")
	return Receipt{TrackingID: tracking, Raw: parsed}, nil
}

func (c *steadfastClient) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Api-Key", c.settings.APIKey)
	req.Header.Set("Secret-Key", c.settings.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

// parseSteadfastBody decodes the response and pulls the embedded application
// status, tolerating both numeric and string encodings.
func parseSteadfastBody(body []byte) (map[string]any, int, error) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeProviderRejected, "steadfast returned an unreadable response")
	}

	switch v := parsed["status"].(type) {
	case float64:
		return parsed, int(v), nil
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed, n, nil
		}
	}
	return parsed, 0, pkgerrors.New(pkgerrors.CodeProviderRejected, "steadfast response carried no application status")
}

func steadfastMessage(parsed map[string]any, fallback string) string {
	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}
	return fallback
}
