package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"id"`
	CategoryID   *string         `json:"category_id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     *string         `json:"image_url"`
	Rating       decimal.Decimal `json:"rating"`
	ReviewsCount int             `json:"reviews_count"`
	Badge        *string         `json:"badge"`
	Discount     *string         `json:"discount"`
	InStock      bool            `json:"in_stock"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductInput is the admin-editable part of a product.
type ProductInput struct {
	CategoryID   *string         `json:"category_id" validate:"omitempty,uuid"`
	Name         string          `json:"name" validate:"required,max=200"`
	Description  *string         `json:"description"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     *string         `json:"image_url" validate:"omitempty,url"`
	Rating       decimal.Decimal `json:"rating"`
	ReviewsCount int             `json:"reviews_count" validate:"gte=0"`
	Badge        *string         `json:"badge"`
	Discount     *string         `json:"discount"`
	InStock      bool            `json:"in_stock"`
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	BgColor     string    `json:"bg_color"`
	ItemsCount  int       `json:"items_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description"`
	Icon        string  `json:"icon" validate:"required"`
	Color       string  `json:"color" validate:"required"`
	BgColor     string  `json:"bg_color" validate:"required"`
	ItemsCount  int     `json:"items_count" validate:"gte=0"`
}

type ProductFilter struct {
	CategoryID  string
	InStockOnly bool
	Search      string
	Limit       int
}

type Stats struct {
	Products        int `json:"products"`
	Categories      int `json:"categories"`
	InStockProducts int `json:"in_stock_products"`
}

const SettingDeliveryFee = "delivery_fee"
