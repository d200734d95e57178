package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer       Role = "customer"
	RoleSalesManager   Role = "sales_manager"
	RoleProductManager Role = "product_manager"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSalesManager, RoleProductManager:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to store staff rather than a customer.
func (r Role) IsStaff() bool {
	return r == RoleSalesManager || r == RoleProductManager
}

type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	HomeAddress string    `json:"home_address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type WarrantyStatus int

const (
	WarrantyValid WarrantyStatus = iota
	WarrantyExpired
)

// Product.Quantity is the authoritative stock count. OldPrice is the pre-discount reference
// price; it also feeds the cost estimate of the revenue report.
type Product struct {
	ID             int64           `json:"id"`
	CategoryID     int64           `json:"category_id"`
	Name           string          `json:"name"`
	Model          string          `json:"model"`
	SerialNumber   string          `json:"serial_number"`
	Description    string          `json:"description,omitempty"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	OldPrice       decimal.Decimal `json:"old_price"`
	Distributor    string          `json:"distributor"`
	WarrantyStatus WarrantyStatus  `json:"warranty_status"`
	ImageURL       string          `json:"image_url,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// Purchase is immutable once written.
type Purchase struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Date      time.Time `json:"date"`
}

// Delivery is the fulfilment and money record of exactly one Purchase. Deliveries created by
// the same checkout share an OrderID.
type Delivery struct {
	ID              int64           `json:"id"`
	PurchaseID      int64           `json:"purchase_id"`
	CustomerID      int64           `json:"customer_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	DeliveryAddress string          `json:"delivery_address"`
	Status          DeliveryStatus  `json:"status"`
	OrderID         uuid.UUID       `json:"order_id"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CartItem belongs to exactly one of a user or a guest cart.
type CartItem struct {
	ID          int64      `json:"id"`
	UserID      *int64     `json:"user_id,omitempty"`
	GuestCartID *uuid.UUID `json:"guest_cart_id,omitempty"`
	ProductID   int64      `json:"product_id"`
	Quantity    int        `json:"quantity"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PurchaseDetails joins a purchase with its delivery line and product name.
type PurchaseDetails struct {
	PurchaseID      int64           `json:"purchase_id"`
	ProductID       int64           `json:"product_id"`
	UserID          int64           `json:"user_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	Date            time.Time       `json:"date"`
	DeliveryID      int64           `json:"delivery_id"`
	DeliveryAddress string          `json:"delivery_address"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Status          DeliveryStatus  `json:"status"`
	OrderID         uuid.UUID       `json:"order_id"`
}

type RevenueReport struct {
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	Profit       decimal.Decimal `json:"profit"`
}

// Invoice carries everything needed to render one order's invoice document.
type Invoice struct {
	OrderID    uuid.UUID
	User       User
	FirstName  string
	LastName   string
	Purchases  []Purchase
	Deliveries []Delivery
	Products   []Product
	IssuedAt   time.Time
}

// CommentStatus is the moderation state of a comment. Only approved comments are public.
type CommentStatus string

const (
	CommentStatusPending     CommentStatus = "pending"
	CommentStatusApproved    CommentStatus = "approved"
	CommentStatusDisapproved CommentStatus = "disapproved"
)

func (s CommentStatus) Valid() bool {
	switch s {
	case CommentStatusPending, CommentStatusApproved, CommentStatusDisapproved:
		return true
	}
	return false
}

type Comment struct {
	ID          int64         `json:"id"`
	ProductID   int64         `json:"product_id"`
	UserID      int64         `json:"user_id"`
	Body        string        `json:"body"`
	Status      CommentStatus `json:"status"`
	ModeratedBy *int64        `json:"moderated_by,omitempty"`
	ModeratedAt *time.Time    `json:"moderated_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Rating struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingSummary is a product's ratings with their count and mean, rounded to two places.
type RatingSummary struct {
	ProductID int64           `json:"product_id"`
	Count     int             `json:"count"`
	Average   decimal.Decimal `json:"average"`
	Ratings   []Rating        `json:"ratings"`
}

// WishlistItem is one product a user watches, with the product's current name and price.
type WishlistItem struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// WishlistSubscriber is a user to notify about a product's price changes.
type WishlistSubscriber struct {
	UserID int64
	Email  string
	Name   string
}
