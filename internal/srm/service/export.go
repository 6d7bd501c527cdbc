package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lolo262652/amg-jewelry-manager/internal/srm/entity"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/repository"
	"github.com/xuri/excelize/v2"
)

var orderExportHeaders = []string{
	"N° commande", "Fournisseur", "Date", "Livraison prévue", "Statut",
	"Devise", "Sous-total", "Frais de port", "Taxes", "Total", "Articles reçus",
}

var itemExportHeaders = []string{
	"N° commande", "Produit", "Référence", "Quantité", "Prix unitaire",
	"Total ligne", "Reçu", "Statut",
}

const exportDateLayout = "02/01/2006"

// ExportOrders 导出订单列表为xlsx（忽略分页）
func (s *OrderService) ExportOrders(ctx context.Context, q repository.OrderListQuery) (*excelize.File, string, error) {
	q.Limit = 0
	orders, _, err := s.ListOrders(ctx, q)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	const orderSheet, itemSheet = "Commandes", "Lignes"
	f.SetSheetName("Sheet1", orderSheet)
	if _, err := f.NewSheet(itemSheet); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("create sheet: %w", err)
	}

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#F2E6D9"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	writeHeader(f, orderSheet, orderExportHeaders, boldStyle)
	writeHeader(f, itemSheet, itemExportHeaders, boldStyle)

	itemRow := 2
	for i, order := range orders {
		row := i + 2
		received, total := 0, 0
		for _, item := range order.Items {
			received += item.ReceivedQuantity
			total += item.Quantity
		}

		values := []interface{}{
			order.OrderNumber,
			supplierName(&order),
			order.OrderDate.Format(exportDateLayout),
			formatDate(order.ExpectedDeliveryDate),
			order.Status,
			order.Currency,
			order.Subtotal().InexactFloat64(),
			order.ShippingCost.InexactFloat64(),
			order.TaxAmount.InexactFloat64(),
			order.TotalAmount.InexactFloat64(),
			fmt.Sprintf("%d/%d", received, total),
		}
		if err := writeRow(f, orderSheet, row, values); err != nil {
			f.Close()
			return nil, "", err
		}

		for _, item := range order.Items {
			name, ref := item.ProductID, ""
			if item.Product != nil {
				name, ref = item.Product.Name, item.Product.Reference
			}
			values := []interface{}{
				order.OrderNumber,
				name,
				ref,
				item.Quantity,
				item.UnitPrice.InexactFloat64(),
				item.TotalPrice.InexactFloat64(),
				item.ReceivedQuantity,
				item.Status,
			}
			if err := writeRow(f, itemSheet, itemRow, values); err != nil {
				f.Close()
				return nil, "", err
			}
			itemRow++
		}
	}

	f.SetColWidth(orderSheet, "A", "B", 22)
	f.SetColWidth(itemSheet, "A", "C", 22)

	filename := fmt.Sprintf("commandes-fournisseurs-%s.xlsx", s.numbers.Now().Format("20060102"))
	return f, filename, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func supplierName(order *entity.SupplierOrder) string {
	if order.Supplier != nil {
		return order.Supplier.Name
	}
	return order.SupplierID
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportDateLayout)
}
