package pixel

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/httperr"
	"github.com/bazarly/backend/pkg/logger"
)

// Client talks to the conversion graph API for one pixel.
type Client struct {
	graphHost string
	settings  store.PixelSettings
	http      *http.Client
	logg      *logger.Logger
}

func NewClient(graphHost string, settings store.PixelSettings, timeout time.Duration, logg *logger.Logger) (*Client, error) {
	if settings.PixelID == "" || settings.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pixel id and access token are required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &Client{
		graphHost: strings.TrimRight(graphHost, "/"),
		settings:  settings,
		http:      &http.Client{Timeout: timeout},
		logg:      logg,
	}, nil
}

// VerifyPixel confirms the pixel id and access token resolve to a readable
// pixel object.
func (c *Client) VerifyPixel(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/%s?%s", c.graphHost, url.PathEscape(c.settings.PixelID), url.Values{
		"access_token": {c.settings.AccessToken},
		"fields":       {"id"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build pixel verify request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return graphTransportError(err, "pixel verification")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httperr.Classify(ctx, c.logg, httperr.Input{
			Status:  resp.StatusCode,
			Body:    body,
			URL:     c.graphHost + "/" + c.settings.PixelID,
			Context: "pixel verification",
		})
	}
	return nil
}

type eventsRequest struct {
	Data          []Event `json:"data"`
	TestEventCode string  `json:"test_event_code,omitempty"`
}

// SendEvents posts one batch to the events edge.
func (c *Client) SendEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	payload := eventsRequest{Data: events, TestEventCode: c.settings.TestEventCode}
	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal conversion events")
	}

	endpoint := fmt.Sprintf("%s/%s/events?%s", c.graphHost, url.PathEscape(c.settings.PixelID), url.Values{
		"access_token": {c.settings.AccessToken},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build conversion request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return graphTransportError(err, "conversion delivery")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httperr.Classify(ctx, c.logg, httperr.Input{
			Status:  resp.StatusCode,
			Body:    body,
			URL:     c.graphHost + "/" + c.settings.PixelID + "/events",
			Context: "conversion delivery",
		})
	}
	return nil
}

func graphTransportError(err error, call string) error {
	var netErr net.Error
	if stdErrors.Is(err, context.DeadlineExceeded) || (stdErrors.As(err, &netErr) && netErr.Timeout()) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, call+" timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, call+" failed to reach the graph API")
}
