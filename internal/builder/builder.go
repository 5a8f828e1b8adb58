// Package builder maintains the invoice being edited: numbering, totals,
// validation and the hand-off to the archive on save.
package builder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"go.uber.org/zap"
)

var (
	ErrItemNotFound        = errors.New("line item not found")
	ErrLastItem            = errors.New("an invoice needs at least one line item")
	ErrUnknownDiscountType = errors.New("unknown discount type")
	ErrInvalidDate         = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidRecord       = errors.New("invoice is not ready to submit")
)

// Archive is the part of the archive store the builder depends on
type Archive interface {
	List() ([]entity.InvoiceRecord, error)
	Append(record entity.InvoiceRecord) error
}

// Header carries the editable top-of-form fields
type Header struct {
	Date            string `json:"date"`
	CustomerName    string `json:"customerName"`
	CustomerAddress string `json:"customerAddress"`
	CustomerPhone   string `json:"customerPhone"`
	Notes           string `json:"notes"`
}

// Option configures a Builder
type Option func(*Builder)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// Builder owns one mutable InvoiceRecord. It is not safe for concurrent use.
type Builder struct {
	archive Archive
	record  entity.InvoiceRecord
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a builder holding a fresh record numbered from the archive.
// An unreadable archive is logged and the time-derived number is used.
func New(archive Archive, logger *zap.Logger, opts ...Option) *Builder {
	b := &Builder{
		archive: archive,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.Reset(); err != nil {
		logger.Warn("Invoice number seeded without history", zap.Error(err))
	}
	return b
}

// Reset discards the draft and starts a new empty record. The record is
// always replaced; a non-nil error reports that history could not be read.
func (b *Builder) Reset() error {
	history, err := b.archive.List()
	now := b.now()

	b.record = entity.InvoiceRecord{
		InvoiceNumber: NextInvoiceNumber(history, now),
		Date:          now.Format(entity.DateLayout),
		Items:         []entity.LineItem{entity.NewLineItem()},
		DiscountType:  entity.DiscountNone,
	}

	b.logger.Debug("Started new invoice", zap.String("invoice_number", b.record.InvoiceNumber))
	return err
}

// Record returns a copy of the draft
func (b *Builder) Record() entity.InvoiceRecord {
	return b.record.Clone()
}

// Totals returns the derived figures of the draft
func (b *Builder) Totals() entity.Totals {
	return ComputeTotals(b.record)
}

// Valid reports whether the draft may be submitted
func (b *Builder) Valid() bool {
	return Validate(b.record)
}

// Violations lists the draft's blocking problems
func (b *Builder) Violations() Violations {
	return Check(b.record)
}

// UpdateHeader replaces the header fields. The invoice number is read-only.
func (b *Builder) UpdateHeader(h Header) error {
	date := strings.TrimSpace(h.Date)
	if _, err := time.Parse(entity.DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, h.Date)
	}

	b.record.Date = date
	b.record.CustomerName = h.CustomerName
	b.record.CustomerAddress = h.CustomerAddress
	b.record.CustomerPhone = h.CustomerPhone
	b.record.Notes = h.Notes
	return nil
}

// SetDiscountType switches the discount kind; "none" resets the value to 0
func (b *Builder) SetDiscountType(t entity.DiscountType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDiscountType, t)
	}
	b.record.DiscountType = t
	b.record.DiscountValue = ClampDiscountValue(t, b.record.DiscountValue)
	return nil
}

// SetDiscountValue stores value after clamping and returns what was stored
func (b *Builder) SetDiscountValue(value float64) float64 {
	b.record.DiscountValue = ClampDiscountValue(b.record.DiscountType, value)
	return b.record.DiscountValue
}

// AddItem appends a blank row and returns it
func (b *Builder) AddItem() entity.LineItem {
	item := entity.NewLineItem()
	b.record.Items = append(b.record.Items, item)
	return item
}

// UpdateItem replaces the row with the same id
func (b *Builder) UpdateItem(item entity.LineItem) error {
	i := b.record.ItemIndex(item.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}
	b.record.Items[i] = item
	return nil
}

// RemoveItem deletes a row; the last remaining row cannot be removed
func (b *Builder) RemoveItem(id string) error {
	i := b.record.ItemIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if len(b.record.Items) == 1 {
		return ErrLastItem
	}
	b.record.Items = append(b.record.Items[:i:i], b.record.Items[i+1:]...)
	return nil
}

// ReplaceItems swaps in a full item list, assigning ids to rows without one
func (b *Builder) ReplaceItems(items []entity.LineItem) error {
	if len(items) == 0 {
		return ErrLastItem
	}

	out := make([]entity.LineItem, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ID == "" || seen[item.ID] {
			item.ID = entity.NewLineItem().ID
		}
		seen[item.ID] = true
		out[i] = item
	}
	b.record.Items = out
	return nil
}

// Load replaces the draft with a previously saved record, keeping its number
func (b *Builder) Load(record entity.InvoiceRecord) {
	b.record = record.Clone()
	if !b.record.DiscountType.Valid() {
		b.record.DiscountType = entity.DiscountNone
	}
	if len(b.record.Items) == 0 {
		b.record.Items = []entity.LineItem{entity.NewLineItem()}
	}
	b.logger.Info("Invoice loaded", zap.String("invoice_number", record.InvoiceNumber))
}

// Save appends the draft to the archive and starts a new record. When the
// draft is invalid or the write fails, nothing changes.
func (b *Builder) Save() (entity.InvoiceRecord, error) {
	if v := b.Violations(); !v.Empty() {
		return entity.InvoiceRecord{}, fmt.Errorf("%w: %d field(s)", ErrInvalidRecord, len(v))
	}

	snapshot := b.record.Clone()
	if err := b.archive.Append(snapshot); err != nil {
		b.logger.Error("Failed to save invoice",
			zap.String("invoice_number", snapshot.InvoiceNumber),
			zap.Error(err))
		return entity.InvoiceRecord{}, fmt.Errorf("failed to save invoice %s: %w", snapshot.InvoiceNumber, err)
	}

	if err := b.Reset(); err != nil {
		b.logger.Warn("Next invoice number seeded without history", zap.Error(err))
	}
	return snapshot, nil
}
