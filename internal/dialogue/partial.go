// Package dialogue implements the slot-filling state machine that turns a stream
// of partial field extractions into one complete expense.
package dialogue

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Status is the lifecycle state of a PartialExpense.
type Status string

const (
	// StatusCollecting means at least one required field is still missing.
	StatusCollecting Status = "Collecting"
	// StatusReadyToCommit means every required field is set and the record awaits persistence.
	StatusReadyToCommit Status = "ReadyToCommit"
	// StatusCommitted means the record was persisted. Terminal.
	StatusCommitted Status = "Committed"
	// StatusCancelled means the user abandoned the record. Terminal.
	StatusCancelled Status = "Cancelled"
)

// Field names a mergeable slot of a PartialExpense.
type Field string

const (
	FieldItem             Field = "item"
	FieldAmount           Field = "amount"
	FieldCategory         Field = "category"
	FieldPaymentMethod    Field = "paymentMethod"
	FieldRecurrence       Field = "recurrence"
	FieldPurchaseLocation Field = "purchaseLocation"
)

// MergeableFields is the whitelist of slots an extraction may write.
var MergeableFields = []Field{
	FieldItem,
	FieldAmount,
	FieldCategory,
	FieldPaymentMethod,
	FieldRecurrence,
	FieldPurchaseLocation,
}

// PartialExpense accumulates the fields of one expense across turns.
// A nil pointer means the slot is unset.
type PartialExpense struct {
	Item             *string          `json:"item,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	Category         *string          `json:"category,omitempty"`
	PaymentMethod    *string          `json:"paymentMethod,omitempty"`
	Recurrence       *string          `json:"recurrence,omitempty"`
	PurchaseLocation *string          `json:"purchaseLocation,omitempty"`
	Status           Status           `json:"status"`
}

// NewPartialExpense returns an empty record in the Collecting state.
func NewPartialExpense() *PartialExpense {
	return &PartialExpense{Status: StatusCollecting}
}

// Closed reports whether the record reached a terminal state.
func (p PartialExpense) Closed() bool {
	return p.Status == StatusCommitted || p.Status == StatusCancelled
}

// IsEmpty reports whether no slot is set.
func (p PartialExpense) IsEmpty() bool {
	return p.Item == nil && p.Amount == nil && p.Category == nil &&
		p.PaymentMethod == nil && p.Recurrence == nil && p.PurchaseLocation == nil
}

// Clone returns a deep copy.
func (p *PartialExpense) Clone() PartialExpense {
	c := PartialExpense{Status: p.Status}
	c.Item = cloneString(p.Item)
	c.Category = cloneString(p.Category)
	c.PaymentMethod = cloneString(p.PaymentMethod)
	c.Recurrence = cloneString(p.Recurrence)
	c.PurchaseLocation = cloneString(p.PurchaseLocation)
	if p.Amount != nil {
		a := *p.Amount
		c.Amount = &a
	}
	return c
}

// merge copies every non-nil slot of ex over the record. Closed records are left untouched.
func (p *PartialExpense) merge(ex Extraction) {
	if p.Closed() {
		return
	}
	for _, f := range MergeableFields {
		switch f {
		case FieldItem:
			p.Item = overwrite(p.Item, ex.Item)
		case FieldAmount:
			if ex.Amount != nil {
				a := *ex.Amount
				p.Amount = &a
			}
		case FieldCategory:
			p.Category = overwrite(p.Category, ex.Category)
		case FieldPaymentMethod:
			p.PaymentMethod = overwrite(p.PaymentMethod, ex.PaymentMethod)
		case FieldRecurrence:
			p.Recurrence = overwrite(p.Recurrence, ex.Recurrence)
		case FieldPurchaseLocation:
			p.PurchaseLocation = overwrite(p.PurchaseLocation, ex.PurchaseLocation)
		}
	}
}

// applyDefaults fills category and recurrence when they are still unset.
func (p *PartialExpense) applyDefaults() {
	if p.Category == nil {
		p.Category = Ptr(domain.CategoryPurchase)
	}
	if p.Recurrence == nil {
		p.Recurrence = Ptr(domain.RecurrenceOneTime)
	}
}

// NextMissing returns the highest-priority unset required slot.
func (p *PartialExpense) NextMissing() (Field, bool) {
	switch {
	case p.Item == nil:
		return FieldItem, true
	case p.Amount == nil:
		return FieldAmount, true
	case p.PaymentMethod == nil:
		return FieldPaymentMethod, true
	case p.Category != nil && *p.Category == domain.CategoryPurchase && p.PurchaseLocation == nil:
		return FieldPurchaseLocation, true
	}
	return "", false
}

// finalize projects a complete record onto a FinalizedExpense. ID, timestamp and
// status tag are left for the caller.
func (p *PartialExpense) finalize() domain.FinalizedExpense {
	rec := domain.FinalizedExpense{
		Item:             deref(p.Item),
		Amount:           *p.Amount,
		Category:         deref(p.Category),
		PaymentMethod:    deref(p.PaymentMethod),
		PurchaseLocation: deref(p.PurchaseLocation),
		Recurrence:       deref(p.Recurrence),
	}
	// The location only describes purchases. It may be left over from a turn
	// before the category changed.
	if rec.Category != domain.CategoryPurchase {
		rec.PurchaseLocation = ""
	}
	rec.DisplayCategory = domain.DisplayCategory(rec.Category, rec.PurchaseLocation)
	return rec
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func overwrite(current, incoming *string) *string {
	if incoming == nil {
		return current
	}
	v := *incoming
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
