// Package export renders the quotation comparison report. One row per
// quotation line, so supplier quotes for the same item end up adjacent when
// sorted in the spreadsheet.
package export

import (
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"padoca/internal"
)

func QuotationsToXLSX(quotations []internal.Quotation, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"quotation_id", "supplier", "supplier_email", "status",
		"item_id", "item_name", "unit", "qty_to_order", "unit_price", "available",
		"total_quote", "delivery_days", "payment_terms", "has_problems",
		"sent_at", "reply_at", "order_id",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	r := 1
	for _, q := range quotations {
		items := q.Items
		if len(items) == 0 {
			items = []internal.QuoteItem{{}}
		}
		for _, item := range items {
			r++
			set := func(col int, value any) {
				cell, _ := excelize.CoordinatesToCellName(col, r)
				_ = f.SetCellValue(sheet, cell, value)
			}

			set(1, q.ID)
			set(2, supplierLabel(q))
			set(3, q.SupplierEmail)
			set(4, string(q.Status))
			set(5, item.ID)
			set(6, item.Name)
			set(7, item.Unit)
			set(8, item.QuantityToOrder)
			set(9, derefFloat(item.UnitPrice))
			set(10, derefBool(item.Available))
			set(11, derefFloat(q.TotalQuote))
			if q.Analysis != nil {
				set(12, derefInt(q.Analysis.DeliveryDays))
				set(13, q.Analysis.PaymentTerms)
				set(14, q.Analysis.HasProblems)
			}
			set(15, formatTime(q.SentAt))
			set(16, formatTimePtr(q.ReplyAt))
			set(17, q.OrderID)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func supplierLabel(q internal.Quotation) string {
	if q.SupplierName != "" {
		return q.SupplierName
	}
	return q.SupplierID
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefBool(v *bool) any {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
