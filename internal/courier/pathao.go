package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/httperr"
	"github.com/bazarly/backend/pkg/logger"
)

const (
	pathaoLiveBaseURL    = "https://api-hermes.pathao.com/aladdin/api/v1"
	pathaoSandboxBaseURL = "https://courier-api-sandbox.pathao.com/aladdin/api/v1"

	pathaoAddressLimit = 220
	pathaoItemType     = 2  // parcel
	pathaoDeliveryType = 48 // normal delivery
)

type pathaoClient struct {
	settings store.PathaoSettings
	baseURL  string
	http     *http.Client
	logg     *logger.Logger
	token    string
}

func newPathao(settings store.PathaoSettings, configuredBase string, client *http.Client, logg *logger.Logger) (*pathaoClient, error) {
	if settings.ClientID == "" || settings.ClientSecret == "" || settings.Username == "" || settings.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pathao credentials are incomplete")
	}
	if settings.StoreID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pathao store id is required")
	}

	base := strings.TrimRight(settings.BaseURL, "/")
	if base == "" {
		base = strings.TrimRight(configuredBase, "/")
	}
	if base == "" {
		if strings.EqualFold(settings.Mode, "sandbox") {
			base = pathaoSandboxBaseURL
		} else {
			base = pathaoLiveBaseURL
		}
	}

	return &pathaoClient{
		settings: settings,
		baseURL:  base,
		http:     client,
		logg:     logg,
	}, nil
}

func (c *pathaoClient) Name() string { return NamePathao }

func (c *pathaoClient) Verify(ctx context.Context) error {
	_, err := c.issueToken(ctx)
	return err
}

type pathaoTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *pathaoClient) issueToken(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}

	payload := map[string]any{
		"client_id":     c.settings.ClientID,
		"client_secret": c.settings.ClientSecret,
		"username":      c.settings.Username,
		"password":      c.settings.Password,
		"grant_type":    "password",
	}

	status, body, err := c.post(ctx, "/issue-token", "", payload)
	if err != nil {
		return "", transportError(err, "pathao token exchange")
	}
	if status < 200 || status > 299 {
		return "", httperr.Classify(ctx, c.logg, httperr.Input{
			Status:  status,
			Body:    body,
			URL:     c.baseURL + "/issue-token",
			Context: "pathao token exchange",
		})
	}

	var token pathaoTokenResponse
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeProviderRejected, "pathao token exchange returned no access token")
	}

	c.token = token.AccessToken
	return c.token, nil
}

func (c *pathaoClient) Dispatch(ctx context.Context, shipment Shipment) (Receipt, error) {
	token, err := c.issueToken(ctx)
	if err != nil {
		return Receipt{}, err
	}

	payload := map[string]any{
		"store_id":          c.settings.StoreID,
		"merchant_order_id": shipment.MerchantOrderID,
		"recipient_name":    sanitizeText(shipment.RecipientName, 100),
		"recipient_phone":   NormalizePhone(shipment.RecipientPhone),
		"recipient_address": sanitizeText(shipment.RecipientAddress, pathaoAddressLimit),
		"recipient_city":    shipment.RecipientCity,
		"recipient_zone":    shipment.RecipientZone,
		"amount_to_collect": roundWhole(shipment.CODAmount),
		"item_type":         pathaoItemType,
		"delivery_type":     pathaoDeliveryType,
		"item_quantity":     shipment.ItemQuantity,
		"item_weight":       shipment.ItemWeight,
	}

	status, body, err := c.post(ctx, "/orders", token, payload)
	if err != nil {
		return Receipt{}, transportError(err, "pathao order submission")
	}
	if status < 200 || status > 299 {
		return Receipt{}, httperr.Classify(ctx, c.logg, httperr.Input{
			Status:  status,
			Body:    body,
			URL:     c.baseURL + "/orders",
			Context: "pathao order submission",
		})
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeProviderRejected, "pathao returned an unreadable order response")
	}

	tracking := extractTracking(NamePathao, parsed)
	if tracking == "" {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeProviderRejected, "pathao accepted the order but returned no consignment id")
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"merchant_order_id": shipment.MerchantOrderID,
		"consignment_id":    tracking,
	})
	c.logg.Info(ctx, "pathao order submitted")
	return Receipt{TrackingID: tracking, Raw: parsed}, nil
}

func (c *pathaoClient) post(ctx context.Context, path, token string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
