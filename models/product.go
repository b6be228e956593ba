package models

// Product is a marketplace listing as returned by GET /api/products
type Product struct {
	ID       FlexibleID `json:"product_id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
	Price    float64    `json:"price"`
	Quantity float64    `json:"quantity"`
	Unit     string     `json:"unit"`
}

// CartLine is one product in the cart
type CartLine struct {
	ProductID FlexibleID `json:"product_id"`
	Name      string     `json:"name"`
	Price     float64    `json:"price"`
	Quantity  float64    `json:"quantity"`
}

// Subtotal returns price times quantity
func (l CartLine) Subtotal() float64 {
	return l.Price * l.Quantity
}
