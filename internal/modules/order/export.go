// README: Admin spreadsheet export of the filtered order list.
package order

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	exportOrdersSheet  = "Orders"
	exportSummarySheet = "Summary"
)

var exportHeader = []interface{}{
	"Order Number", "Customer", "Email", "Phone", "Order Type", "Delivery Type",
	"Status", "Status Message", "Estimated Delivery", "Created At", "Updated At",
}

// ExportXLSX writes every order matching f (paging ignored) to w as an xlsx workbook, with a
// second sheet holding the per-status totals.
func (s *Service) ExportXLSX(ctx context.Context, f Filter, w io.Writer) (int, error) {
	f.Offset = 0
	f.Limit = MaxListLimit
	f = f.Normalize()

	book := excelize.NewFile()
	defer book.Close()
	if err := book.SetSheetName("Sheet1", exportOrdersSheet); err != nil {
		return 0, err
	}
	if err := book.SetSheetRow(exportOrdersSheet, "A1", &exportHeader); err != nil {
		return 0, err
	}

	rowNum := 2
	var counts map[Status]int
	for {
		page, err := s.FilteredList(ctx, f)
		if err != nil {
			return 0, err
		}
		counts = page.StatusCounts
		for _, o := range page.Orders {
			cell, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return 0, err
			}
			row := exportRow(o)
			if err := book.SetSheetRow(exportOrdersSheet, cell, &row); err != nil {
				return 0, err
			}
			rowNum++
		}
		f.Offset += len(page.Orders)
		if len(page.Orders) == 0 || f.Offset >= page.TotalCount {
			break
		}
	}

	if _, err := book.NewSheet(exportSummarySheet); err != nil {
		return 0, err
	}
	if err := book.SetSheetRow(exportSummarySheet, "A1", &[]interface{}{"Status", "Orders"}); err != nil {
		return 0, err
	}
	for i, st := range AllStatuses {
		cell := fmt.Sprintf("A%d", i+2)
		if err := book.SetSheetRow(exportSummarySheet, cell, &[]interface{}{string(st), counts[st]}); err != nil {
			return 0, err
		}
	}

	if err := book.Write(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return rowNum - 2, nil
}

func exportRow(o Snapshot) []interface{} {
	return []interface{}{
		o.OrderNumber,
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		string(o.OrderType),
		string(o.DeliveryType),
		string(o.Status),
		derefString(o.CurrentStatusMessage),
		formatTime(o.EstimatedDeliveryTime),
		o.CreatedAt.Format(time.RFC3339),
		o.UpdatedAt.Format(time.RFC3339),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
