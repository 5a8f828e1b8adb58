package render

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFPrinter lays a View out on an A4 page
type PDFPrinter struct{}

// NewPDFPrinter creates a PDF printer
func NewPDFPrinter() *PDFPrinter {
	return &PDFPrinter{}
}

// Print renders view as a single-document PDF
func (p *PDFPrinter) Print(view View) ([]byte, error) {
	if view.InvoiceNumber == "" && len(view.Rows) == 0 {
		return nil, ErrEmptyView
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	contentWidth := pageWidth - left - right

	// header
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(contentWidth/2, 10, tr(view.Brand), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentWidth/2, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentWidth, 6, tr("# "+view.InvoiceNumber), "", 1, "R", false, 0, "")
	pdf.CellFormat(contentWidth, 6, tr("Date: "+view.Date), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentWidth, 6, "Bill To:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range view.BillTo {
		pdf.MultiCell(contentWidth, 5, tr(line), "", "L", false)
	}
	pdf.Ln(4)

	widths := []float64{contentWidth * 0.46, contentWidth * 0.14, contentWidth * 0.2, contentWidth * 0.2}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, h := range []string{"Description", "Quantity", "Unit Price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range view.Rows {
		pdf.CellFormat(widths[0], 7, tr(row.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, row.Quantity, "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, tr(row.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, tr(row.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(3)

	labelWidth := widths[2]
	for _, t := range view.Totals {
		style := ""
		if t.Emphasis {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(widths[0]+widths[1], 6, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(labelWidth, 6, tr(t.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, tr(t.Value), "", 1, "R", false, 0, "")
	}

	if view.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentWidth, 6, "Notes:", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(contentWidth, 5, tr(view.Notes), "", "L", false)
	}

	if len(view.Terms) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentWidth, 6, "Terms and Conditions:", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for i, term := range view.Terms {
			pdf.MultiCell(contentWidth, 5, tr(fmt.Sprintf("%d. %s", i+1, term)), "", "L", false)
		}
	}

	if view.Footer != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(contentWidth, 5, tr(view.Footer), "", 1, "C", false, 0, "")
		pdf.CellFormat(contentWidth, 5, tr(view.Brand), "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
