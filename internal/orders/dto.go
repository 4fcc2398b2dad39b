package orders

import "github.com/google/uuid"

// PlacementItem is one cart line in a placement request. Price is never
// accepted from the caller; it is snapshotted from the catalog at placement
// time.
type PlacementItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=100"`
	Size      string    `json:"size,omitempty" validate:"max=30"`
	Color     string    `json:"color,omitempty" validate:"max=30"`
}

// PlacementInput is the customer-facing order form.
type PlacementInput struct {
	CustomerName string          `json:"customer_name" validate:"required,min=2,max=120"`
	Phone        string          `json:"phone" validate:"required,min=6,max=20"`
	Address      string          `json:"address" validate:"required,min=5,max=500"`
	City         string          `json:"city,omitempty" validate:"max=80"`
	Zone         string          `json:"zone,omitempty" validate:"max=80"`
	Note         string          `json:"note,omitempty" validate:"max=500"`
	Items        []PlacementItem `json:"items" validate:"required,min=1,dive"`
}

// DispatchInput names the courier to hand the order to.
type DispatchInput struct {
	Provider string `json:"provider" validate:"required"`
}

// StatusInput carries a lifecycle transition request.
type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

// PaymentInput carries a payment status change.
type PaymentInput struct {
	Status string `json:"status" validate:"required"`
}
