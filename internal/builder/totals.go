package builder

import (
	"math"
	"strconv"
	"strings"

	"github.com/garyjia/invoice-desk/internal/domain/entity"
)

// MaxPercentage caps a percentage discount
const MaxPercentage = 100.0

// ComputeTotals derives subtotal, discount and total. It never mutates record.
func ComputeTotals(record entity.InvoiceRecord) entity.Totals {
	subtotal := 0.0
	for _, item := range record.Items {
		subtotal += item.Amount()
	}

	discount := discountAmount(record.DiscountType, record.DiscountValue, subtotal)
	return entity.Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          subtotal - discount,
	}
}

func discountAmount(t entity.DiscountType, value, subtotal float64) float64 {
	if value <= 0 || math.IsNaN(value) || subtotal <= 0 {
		return 0
	}

	switch t {
	case entity.DiscountPercentage:
		return subtotal * (math.Min(value, MaxPercentage) / 100)
	case entity.DiscountFixed:
		return math.Min(subtotal, value)
	default:
		return 0
	}
}

// ClampDiscountValue normalises an entered discount value for the given type:
// negative or non-numeric values become 0 and percentages are capped at 100.
func ClampDiscountValue(t entity.DiscountType, value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if t == entity.DiscountNone {
		return 0
	}
	if t == entity.DiscountPercentage && value > MaxPercentage {
		return MaxPercentage
	}
	return value
}

// Summarize builds the saved-invoices listing rows
func Summarize(records []entity.InvoiceRecord) []entity.InvoiceSummary {
	out := make([]entity.InvoiceSummary, 0, len(records))
	for _, r := range records {
		out = append(out, entity.InvoiceSummary{
			InvoiceNumber: r.InvoiceNumber,
			CustomerName:  r.CustomerName,
			Date:          r.Date,
			Total:         ComputeTotals(r).Total,
		})
	}
	return out
}

// Violations maps a field path to the rule it breaks
type Violations map[string]string

// Empty reports whether no rule was broken
func (v Violations) Empty() bool { return len(v) == 0 }

// Validate reports whether record may be submitted
func Validate(record entity.InvoiceRecord) bool {
	return Check(record).Empty()
}

// Check lists the fields that keep record from being submitted
func Check(record entity.InvoiceRecord) Violations {
	v := Violations{}
	if strings.TrimSpace(record.CustomerName) == "" {
		v["customerName"] = "required"
	}
	if len(record.Items) == 0 {
		v["items"] = "required"
	}
	for i, item := range record.Items {
		if strings.TrimSpace(item.Description) == "" {
			v[itemField(i, "description")] = "required"
		}
		if item.Quantity <= 0 {
			v[itemField(i, "quantity")] = "must_be_positive"
		}
		if item.Price <= 0 || math.IsNaN(item.Price) {
			v[itemField(i, "price")] = "must_be_positive"
		}
	}
	return v
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}
