// Package render turns an invoice into a printable view and captures that
// view as a PNG image or a PDF document.
package render

import (
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Config holds the fixed branding printed on every invoice
type Config struct {
	Brand    string
	Currency string
	Terms    []string
	Footer   string
}

// DefaultConfig returns the stock branding
func DefaultConfig() Config {
	return Config{
		Brand:    "G Te Goyna",
		Currency: "Tk",
		Terms: []string{
			"The jewellery contains 3 years colour guarantee.",
			"Please Check infront of delivery man and then pay the rest amount.",
			"Complaints will not be accepted once the delivery personnel have left.",
		},
		Footer: "Thank you for your purchase! We appreciate your support.",
	}
}

// Row is one formatted line of the items table
type Row struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// TotalLine is one label/value pair of the totals block
type TotalLine struct {
	Label    string
	Value    string
	Emphasis bool
}

// View is the printable form of an invoice with every value already formatted
type View struct {
	Brand         string
	InvoiceNumber string
	Date          string
	BillTo        []string
	Rows          []Row
	Totals        []TotalLine
	Notes         string
	Terms         []string
	Footer        string
}

// Renderer builds Views from invoice records
type Renderer struct {
	cfg     Config
	printer *message.Printer
}

// NewRenderer creates a renderer with the given branding
func NewRenderer(cfg Config) *Renderer {
	return &Renderer{
		cfg:     cfg,
		printer: message.NewPrinter(language.English),
	}
}

// Render formats record and its totals. The discount line only appears when
// a discount actually applies.
func (r *Renderer) Render(record entity.InvoiceRecord, totals entity.Totals) View {
	view := View{
		Brand:         r.cfg.Brand,
		InvoiceNumber: record.InvoiceNumber,
		Date:          displayDate(record.Date),
		Notes:         strings.TrimSpace(record.Notes),
		Terms:         r.cfg.Terms,
		Footer:        r.cfg.Footer,
	}

	view.BillTo = append(view.BillTo, record.CustomerName)
	if s := strings.TrimSpace(record.CustomerAddress); s != "" {
		view.BillTo = append(view.BillTo, s)
	}
	if s := strings.TrimSpace(record.CustomerPhone); s != "" {
		view.BillTo = append(view.BillTo, s)
	}

	for _, item := range record.Items {
		view.Rows = append(view.Rows, Row{
			Description: item.Description,
			Quantity:    strconv.Itoa(item.Quantity),
			UnitPrice:   r.Money(item.Price),
			Amount:      r.Money(item.Amount()),
		})
	}

	view.Totals = append(view.Totals, TotalLine{Label: "Subtotal:", Value: r.Money(totals.Subtotal)})
	if totals.DiscountAmount > 0 {
		label := "Discount:"
		if record.DiscountType == entity.DiscountPercentage {
			label = "Discount (" + strconv.FormatFloat(record.DiscountValue, 'f', -1, 64) + "%):"
		}
		view.Totals = append(view.Totals, TotalLine{Label: label, Value: "- " + r.Money(totals.DiscountAmount)})
	}
	view.Totals = append(view.Totals, TotalLine{Label: "Total:", Value: r.Money(totals.Total), Emphasis: true})

	return view
}

// Money formats an amount with the configured currency and thousands separators
func (r *Renderer) Money(v float64) string {
	s := r.printer.Sprintf("%.2f", v)
	if r.cfg.Currency == "" {
		return s
	}
	return r.cfg.Currency + " " + s
}

func displayDate(date string) string {
	t, err := time.Parse(entity.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02 Jan 2006")
}
