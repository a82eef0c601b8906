package models

// CartLine is one entry of the server-held cart.
type CartLine struct {
	ProductID ID  `json:"productId"`
	Quantity  int `json:"quantity"`
}

// CartLineView is a CartLine joined with its Product for display.
type CartLineView struct {
	ProductID ID      `json:"productId"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}
