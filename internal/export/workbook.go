package export

import (
	"fmt"
	"io"

	"github.com/garyjia/invoice-desk/internal/builder"
	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	invoicesSheet = "Invoices"
	itemsSheet    = "Items"
)

var (
	invoiceHeader = []interface{}{"Invoice Number", "Date", "Customer", "Address", "Phone", "Discount Type", "Discount Value", "Subtotal", "Discount", "Total", "Notes"}
	itemHeader    = []interface{}{"Invoice Number", "Description", "Quantity", "Unit Price", "Amount"}
)

// WorkbookFileName is the download name of the archive spreadsheet
const WorkbookFileName = "invoices.xlsx"

// WorkbookContentType is the MIME type of the archive spreadsheet
const WorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteWorkbook writes records as an xlsx workbook with one sheet of
// invoices and one sheet of their line items, in archive order
func WriteWorkbook(w io.Writer, records []entity.InvoiceRecord, logger *zap.Logger) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", invoicesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	if err := setRow(f, invoicesSheet, 1, invoiceHeader); err != nil {
		return err
	}
	if err := setRow(f, itemsSheet, 1, itemHeader); err != nil {
		return err
	}

	itemRow := 2
	for i, r := range records {
		totals := builder.ComputeTotals(r)
		row := []interface{}{
			r.InvoiceNumber, r.Date, r.CustomerName, r.CustomerAddress, r.CustomerPhone,
			string(r.DiscountType), r.DiscountValue,
			totals.Subtotal, totals.DiscountAmount, totals.Total, r.Notes,
		}
		if err := setRow(f, invoicesSheet, i+2, row); err != nil {
			return err
		}

		for _, item := range r.Items {
			row := []interface{}{r.InvoiceNumber, item.Description, item.Quantity, item.Price, item.Amount()}
			if err := setRow(f, itemsSheet, itemRow, row); err != nil {
				return err
			}
			itemRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	logger.Info("Archive workbook written",
		zap.Int("invoices", len(records)),
		zap.Int("items", itemRow-2))
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to fill %s row %d: %w", sheet, row, err)
	}
	return nil
}
