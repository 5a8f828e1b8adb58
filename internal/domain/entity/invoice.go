package entity

import (
	"github.com/google/uuid"
)

// DateLayout is the calendar date format used by InvoiceRecord.Date
const DateLayout = "2006-01-02"

// DiscountType selects how DiscountValue is applied to the subtotal
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Valid reports whether t is one of the known discount types
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountNone, DiscountPercentage, DiscountFixed:
		return true
	}
	return false
}

// LineItem is one billable row on an invoice
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// NewLineItem returns a blank row with quantity 1 and a fresh id
func NewLineItem() LineItem {
	return LineItem{
		ID:       uuid.NewString(),
		Quantity: 1,
	}
}

// Amount returns quantity × price
func (i LineItem) Amount() float64 {
	return float64(i.Quantity) * i.Price
}

// InvoiceRecord is the editable invoice and, once saved, the archived snapshot.
// JSON names are the stored format of the "invoices" archive key.
type InvoiceRecord struct {
	InvoiceNumber   string       `json:"invoiceNumber"`
	Date            string       `json:"date"`
	CustomerName    string       `json:"customerName"`
	CustomerAddress string       `json:"customerAddress"`
	CustomerPhone   string       `json:"customerPhone"`
	Items           []LineItem   `json:"items"`
	DiscountType    DiscountType `json:"discountType"`
	DiscountValue   float64      `json:"discountValue"`
	Notes           string       `json:"notes"`
}

// Clone returns a copy that shares no item storage with r
func (r InvoiceRecord) Clone() InvoiceRecord {
	out := r
	if r.Items != nil {
		out.Items = make([]LineItem, len(r.Items))
		copy(out.Items, r.Items)
	}
	return out
}

// ItemIndex returns the position of the item with the given id, or -1
func (r InvoiceRecord) ItemIndex(id string) int {
	for i, item := range r.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Totals holds the derived money figures of an invoice
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	Total          float64 `json:"total"`
}

// InvoiceSummary is one row of the saved-invoices listing
type InvoiceSummary struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	CustomerName  string  `json:"customerName"`
	Date          string  `json:"date"`
	Total         float64 `json:"total"`
}
