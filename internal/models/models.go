package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category string

const (
	CategorySmartphone Category = "Smartphone"
	CategoryLaptop     Category = "Laptop"
	CategoryAppliance  Category = "Appliance"
)

type Role string

const (
	RoleCustomer Role = "Customer"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// User is the already-authenticated identity supplied by the caller.
// It is never persisted here; credentials live in the auth service.
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type Product struct {
	Model        string   `gorm:"primaryKey"                 json:"model"`
	Category     Category `gorm:"not null"                   json:"category"`
	Quantity     int      `gorm:"not null;check:quantity>=0" json:"quantity"`
	Details      string   `json:"details"`
	SellingPrice float64  `gorm:"not null"                   json:"sellingPrice"`
	ArrivalDate  string   `json:"arrivalDate"`
}

func (Product) TableName() string {
	return "products"
}

// Cart is a customer's shopping cart. The partial unique index keeps at
// most one unpaid cart per customer.
type Cart struct {
	ID          uuid.UUID      `gorm:"primaryKey"                                                   json:"-"`
	Customer    string         `gorm:"not null;index:idx_customer_unpaid,unique,where:paid = false" json:"customer"`
	Paid        bool           `gorm:"not null;default:false"                                       json:"paid"`
	PaymentDate string         `json:"paymentDate"`
	Total       float64        `gorm:"not null;default:0"                                           json:"total"`
	Items       []CartLineItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"                json:"products"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Cart) TableName() string {
	return "carts"
}

// CartLineItem snapshots category and unit price at the time the product
// was added, so historical carts reflect the price at time of purchase.
type CartLineItem struct {
	CartID   uuid.UUID `gorm:"primaryKey"                json:"-"`
	Model    string    `gorm:"primaryKey"                json:"model"`
	Quantity int       `gorm:"not null;check:quantity>0" json:"quantity"`
	Category Category  `gorm:"not null"                  json:"category"`
	Price    float64   `gorm:"not null"                  json:"price"`
}

func (CartLineItem) TableName() string {
	return "cart_line_items"
}

type ProductReview struct {
	Model   string `gorm:"primaryKey"                           json:"model"`
	User    string `gorm:"primaryKey"                           json:"user"`
	Score   int    `gorm:"not null;check:score>=1 AND score<=5" json:"score"`
	Date    string `gorm:"not null"                             json:"date"`
	Comment string `json:"comment"`
}

func (ProductReview) TableName() string {
	return "reviews"
}
