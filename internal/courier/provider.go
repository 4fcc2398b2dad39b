package courier

import (
	"context"
	stdErrors "errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Provider is the shared courier adapter contract. Adapters are state-free
// apart from short-lived auth tokens; credentials come from operator-managed
// settings on every construction.
type Provider interface {
	Name() string
	Verify(ctx context.Context) error
	Dispatch(ctx context.Context, shipment Shipment) (Receipt, error)
}

const (
	NamePathao    = "Pathao"
	NameSteadfast = "SteadFast"
)

// Shipment is the provider-neutral order payload. The merchant order id is
// the idempotency anchor: resubmitting the same id is the provider's cue to
// detect a duplicate.
type Shipment struct {
	MerchantOrderID  string
	RecipientName    string
	RecipientPhone   string
	RecipientAddress string
	RecipientCity    string
	RecipientZone    string
	CODAmount        decimal.Decimal
	Note             string
	ItemQuantity     int
	ItemWeight       float64
}

// Receipt carries the provider-assigned tracking identifier plus the raw
// response for diagnostics.
type Receipt struct {
	TrackingID string
	Raw        map[string]any
}

// Options bundles transport-level construction inputs shared by adapters.
type Options struct {
	Timeout          time.Duration
	Logger           *logger.Logger
	HTTPClient       *http.Client
	PathaoBaseURL    string
	SteadfastBaseURL string
}

// FromSettings builds the named provider adapter from the stored credential
// bundle.
func FromSettings(name string, settings store.CourierSettings, opts Options) (Provider, error) {
	if opts.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pathao":
		return newPathao(settings.Pathao, opts.PathaoBaseURL, client, opts.Logger)
	case "steadfast":
		return newSteadfast(settings.Steadfast, opts.SteadfastBaseURL, client, opts.Logger)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown courier provider: "+name)
	}
}

// trackingPaths maps each provider to the response fields that may carry the
// consignment identifier, most specific first. Providers are inconsistent
// about naming, so the lookup is an explicit table rather than guesswork.
var trackingPaths = map[string][]string{
	NamePathao: {
		"data.consignment_id",
		"consignment_id",
	},
	NameSteadfast: {
		"consignment.tracking_code",
		"consignment.consignment_id",
		"tracking_code",
		"consignment_id",
		"id",
	},
}

func extractTracking(provider string, payload map[string]any) string {
	for _, path := range trackingPaths[provider] {
		if value := lookupPath(payload, path); value != "" {
			return value
		}
	}
	return ""
}

func lookupPath(payload map[string]any, dotted string) string {
	current := any(payload)
	for _, part := range strings.Split(dotted, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = node[part]
		if !ok {
			return ""
		}
	}
	switch v := current.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

var newlinePattern = regexp.MustCompile(`\s*[\r\n]+\s*`)

// sanitizeText collapses newlines and caps length before transmission;
// providers reject or garble multi-line free text.
func sanitizeText(text string, limit int) string {
	collapsed := strings.TrimSpace(newlinePattern.ReplaceAllString(text, ", "))
	if limit > 0 && len(collapsed) > limit {
		collapsed = collapsed[:limit]
	}
	return collapsed
}

// transportError distinguishes a timeout from a connection failure.
func transportError(err error, call string) *pkgerrors.Error {
	var netErr net.Error
	if stdErrors.Is(err, context.DeadlineExceeded) || (stdErrors.As(err, &netErr) && netErr.Timeout()) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, call+" timed out waiting for the provider")
	}
	return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, call+" could not reach the provider")
}

// roundWhole rounds a collect-on-delivery amount to the nearest whole
// currency unit.
func roundWhole(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}
