package builder

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/garyjia/invoice-desk/internal/domain/entity"
)

// InvoicePrefix starts every generated invoice number
const InvoicePrefix = "INV-"

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// NextInvoiceNumber derives the number for a new invoice from the most
// recently saved record (by position, not by numeric value): its trailing
// digits plus one, zero-padded to four digits. Empty or unparsable history
// falls back to a time-derived number. Numbers are not guaranteed unique.
func NextInvoiceNumber(history []entity.InvoiceRecord, now time.Time) string {
	if len(history) == 0 {
		return timestampInvoiceNumber(now)
	}

	last := history[len(history)-1].InvoiceNumber
	digits := trailingDigits.FindString(last)
	if digits == "" {
		return timestampInvoiceNumber(now)
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return timestampInvoiceNumber(now)
	}
	return fmt.Sprintf("%s%04d", InvoicePrefix, n+1)
}

// timestampInvoiceNumber uses the last six digits of the Unix millisecond clock
func timestampInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("%s%06d", InvoicePrefix, now.UnixMilli()%1_000_000)
}
