// Package xlsx renders order history as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/phenrril/modularstore/internal/domain"
	"github.com/phenrril/modularstore/internal/pricing"
)

const (
	OrdersSheet = "Orders"
	ItemsSheet  = "Items"
)

var (
	orderHeader = []any{"Order", "Date", "Role", "Status", "Lines", "Units", "Total"}
	itemHeader  = []any{"Order", "Product", "Modules", "Quantity", "Unit price", "Line total"}
)

// WriteOrders writes one summary row per order and one detail row per line item.
func WriteOrders(w io.Writer, orders []domain.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	if err := writeHeader(f, OrdersSheet, orderHeader, bold); err != nil {
		return err
	}
	if err := writeHeader(f, ItemsSheet, itemHeader, bold); err != nil {
		return err
	}

	itemRow := 2
	for i, o := range orders {
		units := 0
		for _, it := range o.Items {
			units += it.Quantity
		}
		row := []any{o.ID, o.Date.Format("2006-01-02 15:04"), pricing.RoleBadgeLabel(o.Role), string(o.Status), len(o.Items), units, o.Total}
		if err := setRow(f, OrdersSheet, i+2, row); err != nil {
			return err
		}
		for _, it := range o.Items {
			qty := it.Quantity
			if qty < 1 {
				qty = 1
			}
			line := pricing.LineItemTotal(it, o.Role)
			row := []any{o.ID, it.Product.Name, moduleNames(it), it.Quantity, line / float64(qty), line}
			if err := setRow(f, ItemsSheet, itemRow, row); err != nil {
				return err
			}
			itemRow++
		}
	}

	if len(orders) > 0 {
		if err := f.SetCellStyle(OrdersSheet, "G2", fmt.Sprintf("G%d", len(orders)+1), money); err != nil {
			return err
		}
	}
	if itemRow > 2 {
		if err := f.SetCellStyle(ItemsSheet, "E2", fmt.Sprintf("F%d", itemRow-1), money); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(OrdersSheet, "A", "B", 22)
	_ = f.SetColWidth(ItemsSheet, "A", "C", 28)
	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, header []any, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// moduleNames lists the selected module names, falling back to the id for
// modules missing from the product snapshot.
func moduleNames(it domain.CartItem) string {
	names := make([]string, 0, len(it.SelectedModules))
	for _, id := range it.SelectedModules {
		if m, ok := it.Product.Module(id); ok {
			names = append(names, m.Name)
		} else {
			names = append(names, id)
		}
	}
	return strings.Join(names, ", ")
}
