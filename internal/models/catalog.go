package models

// Product is one catalog item. Price is in whole rubles, taken from the
// backend's computed display price.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	ImageID     string `json:"image_id"`
}

// CartItem is one line of a remote cart. The backend owns it; the bot only
// reads and mutates it through the API.
type CartItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
	LineTotal int    `json:"line_total"`
}

// Cart is a remote cart with its computed total.
type Cart struct {
	Items []CartItem `json:"items"`
	Total int        `json:"total"`
}

// Customer is a backend customer record.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
