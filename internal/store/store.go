package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
	"github.com/google/uuid"
)

// Subscriber receives the collection name and a fresh copy of the affected
// collection after every committed mutation. Subscribers must not mutate the
// store from inside the callback.
type Subscriber func(collection string, snapshot any)

// document is the single snapshot payload persisted wholesale on every
// mutation.
type document struct {
	Products      []Product       `json:"products"`
	Categories    []Category      `json:"categories"`
	Orders        []Order         `json:"orders"`
	Users         []User          `json:"users"`
	Notifications []Notification  `json:"notifications"`
	Couriers      CourierSettings `json:"courier_settings"`
	Pixel         PixelSettings   `json:"pixel_settings"`
}

type subscription struct {
	id uuid.UUID
	fn Subscriber
}

// Store owns the canonical in-memory collections, persists them to a single
// JSON document, and fans out change notifications in subscription order.
type Store struct {
	mu   sync.Mutex
	path string
	logg *logger.Logger
	doc  document
	subs []subscription
	now  func() time.Time
}

// Open loads the snapshot at path, or seeds a fresh dataset when the file is
// missing or unreadable. It never fails on a corrupted snapshot.
func Open(path string, logg *logger.Logger) (*Store, error) {
	if path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot path required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}

	s := &Store{
		path: path,
		logg: logg,
		now:  func() time.Time { return time.Now().UTC() },
	}

	doc, loaded := s.load()
	s.doc = doc
	if !loaded {
		// First boot or corrupted snapshot: persist the seed so the next
		// start is deterministic.
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() (document, bool) {
	ctx := context.Background()
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logg.Warn(s.logg.WithField(ctx, "snapshot_path", s.path), "snapshot unreadable, booting from seed data")
		}
		return seedDocument(s.now()), false
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"snapshot_path": s.path,
			"parse_error":   err.Error(),
		}), "snapshot corrupted, booting from seed data")
		return seedDocument(s.now()), false
	}

	fillDefaults(&doc)
	return doc, true
}

func fillDefaults(doc *document) {
	if doc.Products == nil {
		doc.Products = []Product{}
	}
	if doc.Categories == nil {
		doc.Categories = []Category{}
	}
	if doc.Orders == nil {
		doc.Orders = []Order{}
	}
	if doc.Users == nil {
		doc.Users = []User{}
	}
	if doc.Notifications == nil {
		doc.Notifications = []Notification{}
	}
	if doc.Pixel.Currency == "" {
		doc.Pixel.Currency = "BDT"
	}
	if doc.Pixel.Status == "" {
		doc.Pixel.Status = PixelInactive
	}
}

// persistLocked serializes the whole document and atomically replaces the
// snapshot file. Callers must hold s.mu (or be in single-threaded startup).
func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal snapshot")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create snapshot directory")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write snapshot")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace snapshot")
	}
	return nil
}

// Subscribe registers a listener and returns its unsubscribe function.
// Listeners are invoked synchronously in subscription order.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notifyLocked(collection string, snapshot any) {
	for _, sub := range s.subs {
		sub.fn(collection, snapshot)
	}
}

// --- reads ---

func (s *Store) Products() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyProducts(s.doc.Products)
}

func (s *Store) Categories() []Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Category(nil), s.doc.Categories...)
}

func (s *Store) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyOrders(s.doc.Orders)
}

func (s *Store) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]User(nil), s.doc.Users...)
}

func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.doc.Notifications...)
}

func (s *Store) Product(id uuid.UUID) (Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.doc.Products {
		if p.ID == id {
			return copyProduct(p), true
		}
	}
	return Product{}, false
}

func (s *Store) Order(id string) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.doc.Orders {
		if o.ID == id {
			return copyOrder(o), true
		}
	}
	return Order{}, false
}

func (s *Store) CourierSettings() CourierSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Couriers
}

func (s *Store) PixelSettings() PixelSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Pixel
}

// --- mutations ---

// SaveProduct upserts by id, assigning an id and creation time when absent.
func (s *Store) SaveProduct(p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}

	replaced := false
	for i, existing := range s.doc.Products {
		if existing.ID == p.ID {
			s.doc.Products[i] = copyProduct(p)
			replaced = true
			break
		}
	}
	if !replaced {
		s.doc.Products = append(s.doc.Products, copyProduct(p))
	}

	if err := s.persistLocked(); err != nil {
		return Product{}, err
	}
	s.notifyLocked(CollectionProducts, copyProducts(s.doc.Products))
	return copyProduct(p), nil
}

func (s *Store) DeleteProduct(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.doc.Products {
		if existing.ID == id {
			s.doc.Products = append(s.doc.Products[:i], s.doc.Products[i+1:]...)
			if err := s.persistLocked(); err != nil {
				return err
			}
			s.notifyLocked(CollectionProducts, copyProducts(s.doc.Products))
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *Store) SaveCategory(c Category) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	replaced := false
	for i, existing := range s.doc.Categories {
		if existing.ID == c.ID {
			s.doc.Categories[i] = c
			replaced = true
			break
		}
	}
	if !replaced {
		s.doc.Categories = append(s.doc.Categories, c)
	}

	if err := s.persistLocked(); err != nil {
		return Category{}, err
	}
	s.notifyLocked(CollectionCategories, append([]Category(nil), s.doc.Categories...))
	return c, nil
}

func (s *Store) DeleteCategory(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.doc.Categories {
		if existing.ID == id {
			s.doc.Categories = append(s.doc.Categories[:i], s.doc.Categories[i+1:]...)
			if err := s.persistLocked(); err != nil {
				return err
			}
			s.notifyLocked(CollectionCategories, append([]Category(nil), s.doc.Categories...))
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
}

func (s *Store) SaveUser(u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	replaced := false
	for i, existing := range s.doc.Users {
		if existing.ID == u.ID {
			s.doc.Users[i] = u
			replaced = true
			break
		}
	}
	if !replaced {
		s.doc.Users = append(s.doc.Users, u)
	}

	if err := s.persistLocked(); err != nil {
		return User{}, err
	}
	s.notifyLocked(CollectionUsers, append([]User(nil), s.doc.Users...))
	return u, nil
}

// CreateOrder inserts a new order and synthesizes an "order received"
// notification, both persisted in the same snapshot write. A duplicate order
// id is rejected so callers can regenerate.
func (s *Store) CreateOrder(o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.doc.Orders {
		if existing.ID == o.ID {
			return Order{}, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order id %s already exists", o.ID))
		}
	}

	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.doc.Orders = append(s.doc.Orders, copyOrder(o))

	note := Notification{
		ID:        uuid.New(),
		Type:      "order_received",
		Message:   fmt.Sprintf("New order %s from %s", o.ID, o.CustomerName),
		OrderID:   o.ID,
		CreatedAt: s.now(),
	}
	s.doc.Notifications = append(s.doc.Notifications, note)

	if err := s.persistLocked(); err != nil {
		return Order{}, err
	}
	s.notifyLocked(CollectionOrders, copyOrders(s.doc.Orders))
	s.notifyLocked(CollectionNotifications, append([]Notification(nil), s.doc.Notifications...))
	return copyOrder(o), nil
}

// UpdateOrder applies mutate to the stored order and commits the result as a
// single write, so subscribers observe the transition exactly once.
func (s *Store) UpdateOrder(id string, mutate func(*Order) error) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Orders {
		if s.doc.Orders[i].ID != id {
			continue
		}
		updated := copyOrder(s.doc.Orders[i])
		if err := mutate(&updated); err != nil {
			return Order{}, err
		}
		updated.ID = id
		s.doc.Orders[i] = copyOrder(updated)

		if err := s.persistLocked(); err != nil {
			return Order{}, err
		}
		s.notifyLocked(CollectionOrders, copyOrders(s.doc.Orders))
		return updated, nil
	}
	return Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *Store) SetCourierSettings(cs CourierSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Couriers = cs
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.notifyLocked(CollectionSettings, s.doc.Couriers)
	return nil
}

func (s *Store) SetPixelSettings(ps PixelSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ps.Currency == "" {
		ps.Currency = s.doc.Pixel.Currency
	}
	if ps.Status == "" {
		ps.Status = s.doc.Pixel.Status
	}
	s.doc.Pixel = ps
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.notifyLocked(CollectionSettings, s.doc.Pixel)
	return nil
}

// SetPixelStatus updates only the derived health flag.
func (s *Store) SetPixelStatus(status PixelStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Pixel.Status = status
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.notifyLocked(CollectionSettings, s.doc.Pixel)
	return nil
}

func (s *Store) MarkNotificationRead(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Notifications {
		if s.doc.Notifications[i].ID == id {
			s.doc.Notifications[i].Read = true
			if err := s.persistLocked(); err != nil {
				return err
			}
			s.notifyLocked(CollectionNotifications, append([]Notification(nil), s.doc.Notifications...))
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
}

func (s *Store) MarkAllNotificationsRead() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for i := range s.doc.Notifications {
		if !s.doc.Notifications[i].Read {
			s.doc.Notifications[i].Read = true
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		return 0, err
	}
	s.notifyLocked(CollectionNotifications, append([]Notification(nil), s.doc.Notifications...))
	return count, nil
}

// --- copy helpers ---

func copyProduct(p Product) Product {
	out := p
	out.Images = append([]string(nil), p.Images...)
	out.Sizes = append([]string(nil), p.Sizes...)
	out.Colors = append([]string(nil), p.Colors...)
	return out
}

func copyProducts(in []Product) []Product {
	out := make([]Product, len(in))
	for i, p := range in {
		out[i] = copyProduct(p)
	}
	return out
}

func copyOrder(o Order) Order {
	out := o
	out.Items = append([]OrderItem(nil), o.Items...)
	return out
}

func copyOrders(in []Order) []Order {
	out := make([]Order, len(in))
	for i, o := range in {
		out[i] = copyOrder(o)
	}
	return out
}
