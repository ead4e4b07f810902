package domain

type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

type CheckoutItem struct {
	MenuItemID int64 `json:"menu_item_id"`
	Qty        int   `json:"qty"`
}

// CheckoutRequest is built once per submission attempt and never mutated.
// Prices are not part of it, the order backend prices the order.
type CheckoutRequest struct {
	CustomerName   string         `json:"customer_name"`
	CustomerEmail  string         `json:"customer_email,omitempty"`
	CustomerPhone  string         `json:"customer_phone,omitempty"`
	Items          []CheckoutItem `json:"items"`
	IdempotencyKey string         `json:"-"`
}

type CheckoutResult struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status,omitempty"`
	PaymentURL string `json:"payment_url,omitempty"`
}
