package shipping

import "github.com/noah-isme/backend-pricing/internal/money"

// Quote is the upstream-computed shipping result for a cart: the total the
// customer pays, the tax-excluded subtotal and the option the customer
// selected. The pricing pipeline only reads it; computing shipping is the
// shipping service's job.
type Quote struct {
	Total      money.Money `json:"total"`
	Subtotal   money.Money `json:"subtotal"`
	OptionID   string      `json:"optionId"`
	OptionName string      `json:"optionName"`
	RateBps    int64       `json:"rateBps"`
}

// TaxAmount derives the shipping tax portion from total and subtotal.
func (q Quote) TaxAmount() money.Money {
	return money.Clamp(q.Total - q.Subtotal)
}
