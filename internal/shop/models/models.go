// Package models holds the checkout domain entities. Catalog types (Size,
// Product, Country, CardType) are read-only reference data from this core's
// perspective; Basket and Order are the mutable aggregates.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is the acting identity. Guests and registered customers share the
// same shape; a guest placeholder has a nil ID until the first basket
// mutation promotes it to a persisted customer.
type User struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	IsGuest      bool
	SignupDevice string
	CreatedAt    time.Time
}

// IsPlaceholder reports whether this identity has not been persisted yet.
func (u User) IsPlaceholder() bool { return u.ID == uuid.Nil }

// Identity threads the acting user and their session token explicitly
// through service calls; there is no ambient current-user state.
type Identity struct {
	SessionToken string
	User         User
}

// Basket is a user's in-progress selection. It is owned by exactly one user
// until a successful order placement transfers it to the order and replaces
// it with a fresh empty basket.
type Basket struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CountryID int
	Items     []BasketItem
	// OrderID is set once the basket has been consumed by an order.
	OrderID   int64
	CreatedAt time.Time
}

// ItemFor returns the basket item holding the given size, if any.
func (b *Basket) ItemFor(sizeID int) *BasketItem {
	for i := range b.Items {
		if b.Items[i].SizeID == sizeID {
			return &b.Items[i]
		}
	}
	return nil
}

// TotalWeight sums product weight times quantity across the basket.
func (b *Basket) TotalWeight(sizes map[int]Size) decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.Items {
		size, ok := sizes[item.SizeID]
		if !ok {
			continue
		}
		total = total.Add(size.Product.Weight.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// BasketItem is a quantity of one size within a basket. Quantity is always
// positive; a zero-quantity line is removed, never stored.
type BasketItem struct {
	ID       uuid.UUID
	SizeID   int
	Quantity int
}

// Product carries the catalog attributes the checkout core reads: display
// name for messages, weight for postage, price for totals.
type Product struct {
	ID     int
	Name   string
	Price  decimal.Decimal
	Weight decimal.Decimal
}

// Size is a purchasable variant of a product.
type Size struct {
	ID        int
	Name      string
	IsInStock bool
	IsActive  bool
	Product   Product
}

// Available reports whether the size may be added to a basket.
func (s Size) Available() bool { return s.IsInStock && s.IsActive }

// Country is read-only reference data. PostageMultiplier scales the base
// postage rate for the destination.
type Country struct {
	ID                int
	Name              string
	IsActive          bool
	Position          int
	PostageMultiplier decimal.Decimal
}

// CardType is read-only reference data for the checkout form.
type CardType struct {
	ID   int
	Name string
}

// OrderStatus tracks an order through its lifecycle. Only Created is
// assigned by this core; later transitions happen elsewhere.
type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusDispatched OrderStatus = "dispatched"
)

// Order is the persisted record of a placed purchase. Immutable after a
// successful commit except for status transitions.
type Order struct {
	ID     int64
	Status OrderStatus
	Email  string

	// UseCardHolderContact means delivery reuses the billing contact and no
	// independent delivery contact is collected.
	UseCardHolderContact bool
	// PayByTelephone means no card is attached and no encryption happens.
	PayByTelephone bool

	UserID  uuid.UUID
	Basket  Basket
	Billing Contact
	// Delivery is nil when UseCardHolderContact is set.
	Delivery *Contact
	// Card is nil when PayByTelephone is set.
	Card *Card

	Postage      decimal.Decimal
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

// Contact is a name/address/country record for billing or delivery.
type Contact struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Address1  string   `json:"address1"`
	Address2  string   `json:"address2,omitempty"`
	Town      string   `json:"town"`
	County    string   `json:"county,omitempty"`
	Postcode  string   `json:"postcode"`
	Telephone string   `json:"telephone,omitempty"`
	CountryID int      `json:"country_id"`
	Country   *Country `json:"country,omitempty"`
}

// Card holds payment card details. Number and SecurityCode carry ciphertext
// once Encrypted is set; plaintext never leaves the binder on a successful
// bind.
type Card struct {
	TypeID       int    `json:"type_id"`
	Holder       string `json:"holder"`
	Number       string `json:"number"`
	ExpiryMonth  int    `json:"expiry_month"`
	ExpiryYear   int    `json:"expiry_year"`
	IssueNumber  string `json:"issue_number,omitempty"`
	SecurityCode string `json:"security_code"`
	Encrypted    bool   `json:"encrypted"`
}
