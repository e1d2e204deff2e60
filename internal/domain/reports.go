package domain

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type DailySales struct {
	Date             string `json:"date"`
	TransactionCount int    `json:"transaction_count"`
	TotalSalesCents  int64  `json:"total_sales_cents"`
	AverageSaleCents int64  `json:"average_sale_cents"`
}

type TopProduct struct {
	ProductID         string `json:"product_id"`
	Name              string `json:"name"`
	SKU               string `json:"sku"`
	TotalQuantity     int    `json:"total_quantity"`
	TotalRevenueCents int64  `json:"total_revenue_cents"`
}

type PaymentBreakdown struct {
	PaymentMethod    string `json:"payment_method"`
	TransactionCount int    `json:"transaction_count"`
	TotalCents       int64  `json:"total_cents"`
}

type SalesSummary struct {
	TotalTransactions       int   `json:"total_transactions"`
	TotalRevenueCents       int64 `json:"total_revenue_cents"`
	AverageTransactionCents int64 `json:"average_transaction_cents"`
	TotalDiscountCents      int64 `json:"total_discount_cents"`
}

type SalesReport struct {
	Range          DateRange          `json:"range"`
	Daily          []DailySales       `json:"daily"`
	TopProducts    []TopProduct       `json:"top_products"`
	PaymentMethods []PaymentBreakdown `json:"payment_methods"`
	Summary        SalesSummary       `json:"summary"`
}

type InventoryFilter struct {
	Category     string `json:"category,omitempty"`
	LowStockOnly bool   `json:"low_stock_only"`
}

type InventoryProduct struct {
	Product
	LowStock        bool                `json:"low_stock"`
	RecentMovements []InventoryMovement `json:"recent_movements"`
}

type InventoryStats struct {
	LowStockCount        int   `json:"low_stock_count"`
	OutOfStockCount      int   `json:"out_of_stock_count"`
	TotalProducts        int   `json:"total_products"`
	TotalStockValueCents int64 `json:"total_stock_value_cents"`
}

type InventoryReport struct {
	Filter     InventoryFilter    `json:"filter"`
	Products   []InventoryProduct `json:"products"`
	Categories []string           `json:"categories"`
	Stats      InventoryStats     `json:"stats"`
}

type CustomerSpend struct {
	CustomerID      string `json:"customer_id"`
	Name            string `json:"name"`
	LoyaltyPoints   int64  `json:"loyalty_points"`
	TotalPurchases  int    `json:"total_purchases"`
	TotalSpentCents int64  `json:"total_spent_cents"`
}

type CustomerStats struct {
	TotalCustomers     int   `json:"total_customers"`
	NewCustomers       int   `json:"new_customers"`
	RepeatCustomers    int   `json:"repeat_customers"`
	TotalLoyaltyPoints int64 `json:"total_loyalty_points"`
}

type CustomerReport struct {
	Range     DateRange       `json:"range"`
	Customers []CustomerSpend `json:"customers"`
	Stats     CustomerStats   `json:"stats"`
}
