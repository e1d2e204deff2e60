package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"kasirpos/backend/internal/domain"
)

// Table is one section of an exported report.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

func SalesTables(r domain.SalesReport) []Table {
	summary := Table{
		Name:   "summary",
		Header: []string{"from", "to", "transactions", "revenue", "average_transaction", "discounts"},
		Rows: [][]any{{
			r.Range.From, r.Range.To, r.Summary.TotalTransactions, money(r.Summary.TotalRevenueCents),
			money(r.Summary.AverageTransactionCents), money(r.Summary.TotalDiscountCents),
		}},
	}
	daily := Table{Name: "daily", Header: []string{"date", "transactions", "total_sales", "average_sale"}}
	for _, d := range r.Daily {
		daily.Rows = append(daily.Rows, []any{d.Date, d.TransactionCount, money(d.TotalSalesCents), money(d.AverageSaleCents)})
	}
	top := Table{Name: "top_products", Header: []string{"sku", "name", "quantity", "revenue"}}
	for _, p := range r.TopProducts {
		top.Rows = append(top.Rows, []any{p.SKU, p.Name, p.TotalQuantity, money(p.TotalRevenueCents)})
	}
	payments := Table{Name: "payment_methods", Header: []string{"payment_method", "transactions", "total"}}
	for _, p := range r.PaymentMethods {
		payments.Rows = append(payments.Rows, []any{p.PaymentMethod, p.TransactionCount, money(p.TotalCents)})
	}
	return []Table{summary, daily, top, payments}
}

func InventoryTables(r domain.InventoryReport) []Table {
	stats := Table{
		Name:   "stats",
		Header: []string{"total_products", "low_stock", "out_of_stock", "stock_value"},
		Rows: [][]any{{
			r.Stats.TotalProducts, r.Stats.LowStockCount, r.Stats.OutOfStockCount, money(r.Stats.TotalStockValueCents),
		}},
	}
	products := Table{Name: "products", Header: []string{"sku", "name", "category", "price", "stock", "low_stock_threshold", "low_stock", "active"}}
	for _, p := range r.Products {
		products.Rows = append(products.Rows, []any{
			p.SKU, p.Name, p.Category, money(p.PriceCents), p.StockQuantity, p.LowStockThreshold, p.LowStock, p.Active,
		})
	}
	return []Table{stats, products}
}

func CustomerTables(r domain.CustomerReport) []Table {
	stats := Table{
		Name:   "stats",
		Header: []string{"from", "to", "active_customers", "new_customers", "repeat_customers", "loyalty_points"},
		Rows: [][]any{{
			r.Range.From, r.Range.To, r.Stats.TotalCustomers, r.Stats.NewCustomers, r.Stats.RepeatCustomers, r.Stats.TotalLoyaltyPoints,
		}},
	}
	customers := Table{Name: "customers", Header: []string{"customer_id", "name", "purchases", "total_spent", "loyalty_points"}}
	for _, c := range r.Customers {
		customers.Rows = append(customers.Rows, []any{c.CustomerID, c.Name, c.TotalPurchases, money(c.TotalSpentCents), c.LoyaltyPoints})
	}
	return []Table{stats, customers}
}

// WriteCSV writes every table as a block led by its header row. The first
// column of each row names the section, so blocks stay distinguishable.
func WriteCSV(w io.Writer, tables []Table) error {
	cw := csv.NewWriter(w)
	for _, t := range tables {
		if err := cw.Write(append([]string{"section"}, t.Header...)); err != nil {
			return err
		}
		for _, row := range t.Rows {
			record := make([]string, 0, len(row)+1)
			record = append(record, t.Name)
			for _, v := range row {
				record = append(record, cell(v))
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes one sheet per table.
func WriteXLSX(w io.Writer, tables []Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, t := range tables {
		sheet := t.Name
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		header := make([]any, len(t.Header))
		for j, h := range t.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		for r, row := range t.Rows {
			values := make([]any, len(row))
			for j, v := range row {
				if d, ok := v.(decimal.Decimal); ok {
					values[j] = d.InexactFloat64()
					continue
				}
				values[j] = v
			}
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", r+2), &values); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

func money(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func cell(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case decimal.Decimal:
		return val.StringFixed(2)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
