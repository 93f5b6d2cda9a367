package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reserved category and location values understood by the dialogue rules.
const (
	// CategoryPurchase is the default category and the only one that requires a purchase location.
	CategoryPurchase = "Purchase"

	// CategoryOnlinePurchase is the display category for purchases made online.
	CategoryOnlinePurchase = "Online Purchase"

	// LocationOnline marks a purchase made online.
	LocationOnline = "Online"

	// LocationPhysicalStore marks a purchase made in a physical store.
	LocationPhysicalStore = "PhysicalStore"

	// RecurrenceOneTime is the default recurrence.
	RecurrenceOneTime = "OneTime"

	// StatusConfirmed is the default status tag written to the ledger.
	StatusConfirmed = "Confirmed"
)

// PurchaseLocations lists the accepted purchase locations.
var PurchaseLocations = []string{LocationOnline, LocationPhysicalStore}

// FinalizedExpense is a complete expense ready to be appended to the ledger.
// Category keeps the semantic value collected in the conversation; DisplayCategory
// is the projection written to the ledger's category column.
type FinalizedExpense struct {
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	Item             string          `json:"item"`
	Amount           decimal.Decimal `json:"amount"`
	Category         string          `json:"category"`
	DisplayCategory  string          `json:"display_category"`
	PaymentMethod    string          `json:"payment_method"`
	PurchaseLocation string          `json:"purchase_location,omitempty"`
	Recurrence       string          `json:"recurrence"`
	StatusTag        string          `json:"status_tag"`
}

// DisplayCategory projects the stored category and purchase location onto the
// category shown in the ledger.
func DisplayCategory(category, location string) string {
	if category == CategoryPurchase && location == LocationOnline {
		return CategoryOnlinePurchase
	}
	return category
}

// IsPurchaseLocation reports whether location is one of the accepted values.
func IsPurchaseLocation(location string) bool {
	for _, l := range PurchaseLocations {
		if l == location {
			return true
		}
	}
	return false
}
