package pixel

import (
	"strings"
	"time"

	"github.com/bazarly/backend/internal/store"
)

// Event is one conversion-API payload entry.
type Event struct {
	EventName     string     `json:"event_name"`
	EventTime     int64      `json:"event_time"`
	ActionSource  string     `json:"action_source"`
	UserData      UserData   `json:"user_data"`
	CustomData    CustomData `json:"custom_data"`
	TestEventCode string     `json:"test_event_code,omitempty"`
}

// UserData carries customer identity fields. The wire format expects SHA-256
// hashes here; this sends trimmed lowercase plaintext instead, matching the
// system this replaces. Known gap.
type UserData struct {
	Email     string `json:"em,omitempty"`
	Phone     string `json:"ph,omitempty"`
	FirstName string `json:"fn,omitempty"`
	City      string `json:"ct,omitempty"`
}

type CustomData struct {
	Currency    string   `json:"currency,omitempty"`
	Value       float64  `json:"value,omitempty"`
	ContentIDs  []string `json:"content_ids,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	NumItems    int      `json:"num_items,omitempty"`
}

func normalizeIdentity(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// PurchaseEvent derives the conversion payload from a completed order.
func PurchaseEvent(order store.Order, currency string, now time.Time) Event {
	contentIDs := make([]string, 0, len(order.Items))
	numItems := 0
	for _, item := range order.Items {
		contentIDs = append(contentIDs, item.ProductID.String())
		numItems += item.Quantity
	}

	value, _ := order.TotalPrice.Float64()

	return Event{
		EventName:    "Purchase",
		EventTime:    now.Unix(),
		ActionSource: "website",
		UserData: UserData{
			Phone:     normalizeIdentity(order.Phone),
			FirstName: normalizeIdentity(order.CustomerName),
			City:      normalizeIdentity(order.City),
		},
		CustomData: CustomData{
			Currency:    currency,
			Value:       value,
			ContentIDs:  contentIDs,
			ContentType: "product",
			NumItems:    numItems,
		},
	}
}

// CheckoutEvent marks the start of checkout for the given cart contents.
func CheckoutEvent(items []store.OrderItem, total float64, currency string, now time.Time) Event {
	contentIDs := make([]string, 0, len(items))
	for _, item := range items {
		contentIDs = append(contentIDs, item.ProductID.String())
	}
	return Event{
		EventName:    "InitiateCheckout",
		EventTime:    now.Unix(),
		ActionSource: "website",
		CustomData: CustomData{
			Currency:    currency,
			Value:       total,
			ContentIDs:  contentIDs,
			ContentType: "product",
		},
	}
}
