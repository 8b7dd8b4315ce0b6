// Package spreadsheet reads and writes XLSX workbooks for invoice exports
// and stock imports.
package spreadsheet

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"pharmadesk/internal/domain/documents/invoice"
)

// Sheet names of the invoice export.
const (
	SheetInvoices = "Invoices"
	SheetItems    = "Items"
	SheetSummary  = "Summary"
)

var invoiceHeader = []any{
	"Number", "Issued at", "Customer", "Phone", "Prescription", "Payment method", "Status",
	"Subtotal", "Discount", "Tax rate", "Tax", "Total", "Paid", "Due", "Coverage %", "Reimbursement", "Patient",
}

var itemHeader = []any{
	"Invoice", "Line", "Code", "Product", "Category", "Quantity", "Unit price", "Discount %", "Discount", "Net",
}

// WriteInvoices renders invoices and their aggregates as an XLSX workbook.
func WriteInvoices(w io.Writer, invoices []*invoice.Invoice, stats invoice.Stats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInvoices); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return fmt.Errorf("create items sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	invRows := make([][]any, 0, len(invoices))
	var itemRows [][]any
	for _, inv := range invoices {
		invRows = append(invRows, []any{
			inv.Number,
			inv.IssuedAt.Format("2006-01-02 15:04"),
			deref(inv.CustomerName),
			deref(inv.CustomerPhone),
			deref(inv.PrescriptionRef),
			string(inv.PaymentMethod),
			string(inv.PaymentStatus),
			num(inv.Subtotal),
			num(inv.DiscountTotal),
			num(inv.TaxRate),
			num(inv.TaxAmount),
			num(inv.Total),
			num(inv.PaidAmount),
			num(inv.DueAmount),
			num(inv.InsuranceCoverage),
			num(inv.ReimbursementAmount),
			num(inv.PatientAmount),
		})
		for _, it := range inv.Items {
			itemRows = append(itemRows, []any{
				inv.Number,
				it.LineNo,
				it.ProductCode,
				it.ProductName,
				it.Category,
				it.Quantity,
				num(it.UnitPrice),
				num(it.DiscountPercentage),
				num(it.DiscountAmount),
				num(it.NetAmount),
			})
		}
	}

	if err := writeTable(f, SheetInvoices, invoiceHeader, invRows, bold); err != nil {
		return err
	}
	if err := writeTable(f, SheetItems, itemHeader, itemRows, bold); err != nil {
		return err
	}

	summary := [][]any{
		{"Invoices", stats.Count},
		{"Subtotal", num(stats.Subtotal)},
		{"Tax", num(stats.TaxAmount)},
		{"Total", num(stats.Total)},
		{"Paid", num(stats.Paid)},
		{"Due", num(stats.Due)},
		{"Reimbursement", num(stats.Reimbursement)},
		{"Pending", stats.ByStatus[invoice.StatusPending]},
		{"Partial", stats.ByStatus[invoice.StatusPartial]},
		{"Paid invoices", stats.ByStatus[invoice.StatusPaid]},
	}
	if err := writeTable(f, SheetSummary, []any{"Metric", "Value"}, summary, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
