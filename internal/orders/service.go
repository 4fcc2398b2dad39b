package orders

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bazarly/backend/internal/courier"
	"github.com/bazarly/backend/internal/pixel"
	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// idRetries bounds regeneration when a generated order id collides with an
// existing one inside the same day's suffix space.
const idRetries = 5

// Tracker receives conversion events for completed placements. Delivery is
// best-effort; placement never waits on it.
type Tracker interface {
	Track(event pixel.Event)
}

// ProviderFactory resolves a courier adapter from the current settings. The
// indirection keeps dispatch testable without real provider endpoints.
type ProviderFactory func(name string, settings store.CourierSettings) (courier.Provider, error)

// Service owns order placement and the shipping lifecycle.
type Service struct {
	store    *store.Store
	provider ProviderFactory
	tracker  Tracker
	logg     *logger.Logger
	currency func() string
	now      func() time.Time
	randInt  func(n int) int

	mu       sync.Mutex
	inflight map[string]struct{}
}

type ServiceParams struct {
	Store    *store.Store
	Provider ProviderFactory
	Tracker  Tracker
	Logger   *logger.Logger
	// Currency resolves the conversion-event currency at placement time.
	Currency func() string
	Now      func() time.Time
	RandInt  func(n int) int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider factory required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Currency == nil {
		params.Currency = func() string { return "BDT" }
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	if params.RandInt == nil {
		params.RandInt = rand.Intn
	}

	return &Service{
		store:    params.Store,
		provider: params.Provider,
		tracker:  params.Tracker,
		logg:     params.Logger,
		currency: params.Currency,
		now:      params.Now,
		randInt:  params.RandInt,
		inflight: map[string]struct{}{},
	}, nil
}

// Place records a new order. Prices are snapshotted from the catalog and the
// total computed server-side, so a stale or tampered client total never
// reaches the books.
func (s *Service) Place(ctx context.Context, input PlacementInput) (store.Order, error) {
	items := make([]store.OrderItem, 0, len(input.Items))
	total := decimal.Zero
	for _, line := range input.Items {
		product, ok := s.store.Product(line.ProductID)
		if !ok {
			return store.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown product").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if !product.Active {
			return store.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		image := ""
		if len(product.Images) > 0 {
			image = product.Images[0]
		}
		items = append(items, store.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.SalePrice,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
			Image:     image,
		})
		total = total.Add(product.SalePrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order := store.Order{
		CustomerName:  strings.TrimSpace(input.CustomerName),
		Phone:         strings.TrimSpace(input.Phone),
		Address:       strings.TrimSpace(input.Address),
		City:          strings.TrimSpace(input.City),
		Zone:          strings.TrimSpace(input.Zone),
		Note:          strings.TrimSpace(input.Note),
		Items:         items,
		TotalPrice:    total,
		PaymentStatus: store.PaymentPending,
		OrderStatus:   store.OrderPending,
		CreatedAt:     s.now(),
	}

	created, err := s.createWithFreshID(order)
	if err != nil {
		return store.Order{}, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, created.ID), "order placed")
	if s.tracker != nil {
		s.tracker.Track(pixel.PurchaseEvent(created, s.currency(), s.now()))
	}
	return created, nil
}

func (s *Service) createWithFreshID(order store.Order) (store.Order, error) {
	var lastErr error
	for i := 0; i < idRetries; i++ {
		order.ID = NewOrderID(s.now(), s.randInt)
		created, err := s.store.CreateOrder(order)
		if err == nil {
			return created, nil
		}
		if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
			return store.Order{}, err
		}
		lastErr = err
	}
	return store.Order{}, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "could not allocate order id")
}

// Get returns one order by id.
func (s *Service) Get(ctx context.Context, id string) (store.Order, error) {
	order, ok := s.store.Order(id)
	if !ok {
		return store.Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// List returns all orders, newest first.
func (s *Service) List(ctx context.Context) []store.Order {
	all := s.store.Orders()
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all
}

// Dispatch hands the order to the named courier and records the tracking id.
// Re-dispatching an already shipped order is rejected, and only one dispatch
// per order may be in flight at a time.
func (s *Service) Dispatch(ctx context.Context, orderID, providerName string) (store.Order, error) {
	if err := s.acquireDispatch(orderID); err != nil {
		return store.Order{}, err
	}
	defer s.releaseDispatch(orderID)

	order, ok := s.store.Order(orderID)
	if !ok {
		return store.Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.TrackingID != "" {
		return store.Order{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order already dispatched").
			WithDetails(map[string]any{"tracking_id": order.TrackingID, "courier": order.CourierName})
	}
	if order.OrderStatus != store.OrderPending && order.OrderStatus != store.OrderProcessing {
		return store.Order{}, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot dispatch a %s order", order.OrderStatus))
	}

	provider, err := s.provider(providerName, s.store.CourierSettings())
	if err != nil {
		return store.Order{}, err
	}

	ctx = s.logg.WithProvider(s.logg.WithOrderID(ctx, order.ID), provider.Name())
	receipt, err := provider.Dispatch(ctx, shipmentFromOrder(order))
	if err != nil {
		s.logg.Error(ctx, "courier dispatch failed", err)
		return store.Order{}, err
	}

	updated, err := s.store.UpdateOrder(order.ID, func(o *store.Order) error {
		o.CourierName = provider.Name()
		o.TrackingID = receipt.TrackingID
		o.OrderStatus = store.OrderShipped
		return nil
	})
	if err != nil {
		return store.Order{}, err
	}
	s.logg.Info(s.logg.WithField(ctx, "tracking_id", receipt.TrackingID), "order dispatched")
	return updated, nil
}

func (s *Service) acquireDispatch(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[orderID]; busy {
		return pkgerrors.New(pkgerrors.CodeConflict, "dispatch already in progress for this order")
	}
	s.inflight[orderID] = struct{}{}
	return nil
}

func (s *Service) releaseDispatch(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, orderID)
}

func shipmentFromOrder(order store.Order) courier.Shipment {
	quantity := 0
	for _, item := range order.Items {
		quantity += item.Quantity
	}
	return courier.Shipment{
		MerchantOrderID:  order.ID,
		RecipientName:    order.CustomerName,
		RecipientPhone:   order.Phone,
		RecipientAddress: order.Address,
		RecipientCity:    order.City,
		RecipientZone:    order.Zone,
		CODAmount:        order.TotalPrice,
		Note:             order.Note,
		ItemQuantity:     quantity,
		ItemWeight:       0.5,
	}
}

// allowedTransitions encodes the forward-only lifecycle. Cancellation is
// reachable from any non-terminal status and is handled separately.
var allowedTransitions = map[store.OrderStatus][]store.OrderStatus{
	store.OrderPending:    {store.OrderProcessing, store.OrderShipped},
	store.OrderProcessing: {store.OrderShipped},
	store.OrderShipped:    {store.OrderDelivered},
}

// UpdateStatus moves the order along its lifecycle. Backward moves and
// transitions out of a terminal status are rejected.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next store.OrderStatus) (store.Order, error) {
	switch next {
	case store.OrderPending, store.OrderProcessing, store.OrderShipped, store.OrderDelivered, store.OrderCancelled:
	default:
		return store.Order{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", next))
	}

	updated, err := s.store.UpdateOrder(orderID, func(o *store.Order) error {
		if o.OrderStatus == next {
			return nil
		}
		if o.OrderStatus.Terminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is already %s", o.OrderStatus))
		}
		if next == store.OrderCancelled {
			o.OrderStatus = next
			return nil
		}
		for _, allowed := range allowedTransitions[o.OrderStatus] {
			if allowed == next {
				o.OrderStatus = next
				return nil
			}
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", o.OrderStatus, next))
	})
	if err != nil {
		return store.Order{}, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": orderID, "status": string(next)}), "order status updated")
	return updated, nil
}

// SetPaymentStatus updates the payment marker independently of the shipping
// lifecycle.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID string, status store.PaymentStatus) (store.Order, error) {
	switch status {
	case store.PaymentPaid, store.PaymentPending, store.PaymentCancel:
	default:
		return store.Order{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment status %q", status))
	}
	return s.store.UpdateOrder(orderID, func(o *store.Order) error {
		o.PaymentStatus = status
		return nil
	})
}
