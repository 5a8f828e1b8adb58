package render

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Column widths of the plain-text items table
const (
	colDescription = 34
	colQuantity    = 8
	colUnitPrice   = 16
	colAmount      = 18
	textWidth      = colDescription + colQuantity + colUnitPrice + colAmount
)

// Lines lays the view out as fixed-width text, one entry per printed line
func (v View) Lines() []string {
	var lines []string
	add := func(s ...string) { lines = append(lines, s...) }
	rule := strings.Repeat("-", textWidth)

	add(padBetween(v.Brand, "INVOICE", textWidth))
	add(padLeft("# "+v.InvoiceNumber, textWidth))
	add(padLeft("Date: "+v.Date, textWidth))
	add("")

	add("Bill To:")
	for _, s := range v.BillTo {
		add(wrap(s, textWidth)...)
	}
	add("")

	add(rule)
	add(padRight("Description", colDescription) +
		padLeft("Quantity", colQuantity) +
		padLeft("Unit Price", colUnitPrice) +
		padLeft("Amount", colAmount))
	add(rule)
	for _, row := range v.Rows {
		desc := wrap(row.Description, colDescription-1)
		add(padRight(desc[0], colDescription) +
			padLeft(row.Quantity, colQuantity) +
			padLeft(row.UnitPrice, colUnitPrice) +
			padLeft(row.Amount, colAmount))
		for _, cont := range desc[1:] {
			add(cont)
		}
	}
	add(rule)

	for _, t := range v.Totals {
		label := t.Label
		if t.Emphasis {
			label = strings.ToUpper(label)
		}
		add(padLeft(padRight(label, 20)+padLeft(t.Value, colAmount), textWidth))
	}

	if v.Notes != "" {
		add("", "Notes:")
		for _, para := range strings.Split(v.Notes, "\n") {
			add(wrap(para, textWidth)...)
		}
	}

	if len(v.Terms) > 0 {
		add("", "Terms and Conditions:")
		for i, term := range v.Terms {
			add(wrap(strconv.Itoa(i+1)+". "+term, textWidth)...)
		}
	}

	if v.Footer != "" {
		add("", center(v.Footer, textWidth), center(v.Brand, textWidth))
	}
	return lines
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func padLeft(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", width-n) + s
}

func padBetween(left, right string, width int) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

// wrap breaks s on spaces into lines of at most width runes; it always
// returns at least one line
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := ""
	for _, w := range words {
		for utf8.RuneCountInString(w) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			r := []rune(w)
			lines = append(lines, string(r[:width]))
			w = string(r[width:])
		}
		if w == "" {
			continue
		}
		switch {
		case current == "":
			current = w
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(w) <= width:
			current += " " + w
		default:
			lines = append(lines, current)
			current = w
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
