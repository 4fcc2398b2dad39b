package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductInput is the admin-facing product form.
type ProductInput struct {
	Name          string   `json:"name" validate:"required,min=2,max=160"`
	Description   string   `json:"description,omitempty" validate:"max=2000"`
	SalePrice     string   `json:"sale_price" validate:"required"`
	OriginalPrice string   `json:"original_price,omitempty"`
	CostPrice     string   `json:"cost_price,omitempty"`
	MarginPrice   string   `json:"margin_price,omitempty"`
	Stock         int      `json:"stock" validate:"min=0"`
	Images        []string `json:"images,omitempty" validate:"max=12,dive,max=500"`
	Sizes         []string `json:"sizes,omitempty" validate:"max=20,dive,max=30"`
	Colors        []string `json:"colors,omitempty" validate:"max=20,dive,max=30"`
	CategoryID    string   `json:"category_id" validate:"required,uuid4"`
	Active        bool     `json:"active"`
	Featured      bool     `json:"featured"`
}

// CategoryInput is the admin-facing category form.
type CategoryInput struct {
	Name string `json:"name" validate:"required,min=2,max=80"`
	Slug string `json:"slug,omitempty" validate:"max=80"`
}

// Service owns the product and category catalog.
type Service struct {
	store *store.Store
	logg  *logger.Logger
}

func NewService(st *store.Store, logg *logger.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{store: st, logg: logg}, nil
}

// Products lists the catalog, optionally restricted to active products.
func (s *Service) Products(ctx context.Context, activeOnly bool) []store.Product {
	all := s.store.Products()
	if !activeOnly {
		return all
	}
	active := make([]store.Product, 0, len(all))
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}

// Product returns one product by id.
func (s *Service) Product(ctx context.Context, id uuid.UUID) (store.Product, error) {
	product, ok := s.store.Product(id)
	if !ok {
		return store.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// SaveProduct creates or replaces a product. A zero id creates; a known id
// replaces the stored record wholesale.
func (s *Service) SaveProduct(ctx context.Context, id uuid.UUID, input ProductInput) (store.Product, error) {
	categoryID, err := uuid.Parse(input.CategoryID)
	if err != nil {
		return store.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid category id")
	}
	if !s.categoryExists(categoryID) {
		return store.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown category").
			WithDetails(map[string]any{"category_id": categoryID})
	}
	if id != uuid.Nil {
		if _, ok := s.store.Product(id); !ok {
			return store.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
	}

	salePrice, err := parsePrice(input.SalePrice, true)
	if err != nil {
		return store.Product{}, err
	}
	originalPrice, err := parsePrice(input.OriginalPrice, false)
	if err != nil {
		return store.Product{}, err
	}
	costPrice, err := parsePrice(input.CostPrice, false)
	if err != nil {
		return store.Product{}, err
	}
	marginPrice, err := parsePrice(input.MarginPrice, false)
	if err != nil {
		return store.Product{}, err
	}

	product, err := s.store.SaveProduct(store.Product{
		ID:            id,
		Name:          strings.TrimSpace(input.Name),
		Description:   strings.TrimSpace(input.Description),
		SalePrice:     salePrice,
		OriginalPrice: originalPrice,
		CostPrice:     costPrice,
		MarginPrice:   marginPrice,
		Stock:         input.Stock,
		Images:        input.Images,
		Sizes:         input.Sizes,
		Colors:        input.Colors,
		CategoryID:    categoryID,
		Active:        input.Active,
		Featured:      input.Featured,
	})
	if err != nil {
		return store.Product{}, err
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "product saved")
	return product, nil
}

// DeleteProduct removes a product from the catalog. Existing order items keep
// their snapshots.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteProduct(id)
}

// Categories lists all categories.
func (s *Service) Categories(ctx context.Context) []store.Category {
	return s.store.Categories()
}

// SaveCategory creates or renames a category.
func (s *Service) SaveCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (store.Category, error) {
	if id != uuid.Nil {
		if !s.categoryExists(id) {
			return store.Category{}, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
	}
	name := strings.TrimSpace(input.Name)
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}
	return s.store.SaveCategory(store.Category{ID: id, Name: name, Slug: slug})
}

// DeleteCategory removes a category. Products referencing it are rejected so
// the catalog never points at a missing category.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	for _, p := range s.store.Products() {
		if p.CategoryID == id {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "category still has products").
				WithDetails(map[string]any{"product_id": p.ID})
		}
	}
	return s.store.DeleteCategory(id)
}

func (s *Service) categoryExists(id uuid.UUID) bool {
	for _, c := range s.store.Categories() {
		if c.ID == id {
			return true
		}
	}
	return false
}

func parsePrice(value string, required bool) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price is required")
		}
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid price").
			WithDetails(map[string]any{"value": value})
	}
	if price.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return price, nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
