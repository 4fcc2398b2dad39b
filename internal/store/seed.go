package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// seedDocument is the fallback dataset used when no snapshot exists or the
// existing one cannot be parsed. Booting with stale defaults beats refusing
// to boot.
func seedDocument(now time.Time) document {
	panjabi := Category{ID: uuid.New(), Name: "Panjabi", Slug: "panjabi"}
	tshirt := Category{ID: uuid.New(), Name: "T-Shirt", Slug: "t-shirt"}

	return document{
		Categories: []Category{panjabi, tshirt},
		Products: []Product{
			{
				ID:            uuid.New(),
				Name:          "Premium Cotton Panjabi",
				Description:   "Soft premium cotton, regular fit.",
				SalePrice:     decimal.NewFromInt(1450),
				OriginalPrice: decimal.NewFromInt(1850),
				CostPrice:     decimal.NewFromInt(950),
				MarginPrice:   decimal.NewFromInt(1200),
				Stock:         40,
				Images:        []string{"products/panjabi-premium-1.jpg"},
				Sizes:         []string{"M", "L", "XL"},
				Colors:        []string{"White", "Navy"},
				CategoryID:    panjabi.ID,
				Active:        true,
				Featured:      true,
				CreatedAt:     now,
			},
			{
				ID:            uuid.New(),
				Name:          "Classic Solid T-Shirt",
				SalePrice:     decimal.NewFromInt(650),
				OriginalPrice: decimal.NewFromInt(850),
				CostPrice:     decimal.NewFromInt(380),
				MarginPrice:   decimal.NewFromInt(550),
				Stock:         120,
				Images:        []string{"products/tshirt-solid-1.jpg"},
				Sizes:         []string{"S", "M", "L", "XL"},
				Colors:        []string{"Black", "Maroon", "Olive"},
				CategoryID:    tshirt.ID,
				Active:        true,
				CreatedAt:     now,
			},
		},
		Orders:        []Order{},
		Users:         []User{},
		Notifications: []Notification{},
		Pixel: PixelSettings{
			Currency: "BDT",
			Status:   PixelInactive,
		},
	}
}
