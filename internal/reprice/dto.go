package reprice

import (
	"github.com/google/uuid"

	"github.com/noah-isme/backend-pricing/internal/money"
	"github.com/noah-isme/backend-pricing/internal/pricing"
	"github.com/noah-isme/backend-pricing/internal/shipping"
)

// RepriceRequest is the wire form of a cart snapshot plus the trigger that
// caused the reprice. The cart itself lives upstream; callers hand the full
// state over so a run never consults the cart service mid-flight.
type RepriceRequest struct {
	Currency        string          `json:"currency" validate:"required,len=3"`
	CustomerID      *uuid.UUID      `json:"customerId,omitempty"`
	CustomerGroup   string          `json:"customerGroup,omitempty"`
	Channel         string          `json:"channel,omitempty"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Trigger         string          `json:"trigger,omitempty"`
	ShippingAddress *AddressPayload `json:"shippingAddress,omitempty"`
	ShippingQuote   *QuotePayload   `json:"shippingQuote,omitempty"`
	Lines           []LinePayload   `json:"lines" validate:"required,min=1,dive"`
}

// AddressPayload is the shipping destination used for tax zone resolution.
type AddressPayload struct {
	Country    string `json:"country" validate:"required,len=2"`
	Province   string `json:"province,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// QuotePayload is the upstream shipping computation echoed into the run.
type QuotePayload struct {
	Total      int64  `json:"total" validate:"min=0"`
	Subtotal   int64  `json:"subtotal" validate:"min=0"`
	OptionID   string `json:"optionId,omitempty"`
	OptionName string `json:"optionName,omitempty"`
	RateBps    int64  `json:"rateBps,omitempty"`
}

// LinePayload is one cart line in the wire snapshot.
type LinePayload struct {
	LineID        uuid.UUID  `json:"lineId" validate:"required"`
	PurchasableID uuid.UUID  `json:"purchasableId" validate:"required"`
	VariantID     *uuid.UUID `json:"variantId,omitempty"`
	TaxClass      string     `json:"taxClass,omitempty"`
	Qty           int32      `json:"qty" validate:"required,min=1"`
}

// Snapshot converts the request into the pipeline's input for the cart.
func (r RepriceRequest) Snapshot(cartID uuid.UUID) pricing.CartSnapshot {
	snap := pricing.CartSnapshot{
		CartID:        cartID,
		Currency:      r.Currency,
		CustomerID:    r.CustomerID,
		CustomerGroup: r.CustomerGroup,
		Channel:       r.Channel,
		CouponCode:    r.CouponCode,
	}
	if r.ShippingAddress != nil {
		snap.ShippingAddress = &pricing.Address{
			Country:    r.ShippingAddress.Country,
			Province:   r.ShippingAddress.Province,
			City:       r.ShippingAddress.City,
			PostalCode: r.ShippingAddress.PostalCode,
		}
	}
	if r.ShippingQuote != nil {
		snap.ShippingQuote = &shipping.Quote{
			Total:      money.Money(r.ShippingQuote.Total),
			Subtotal:   money.Money(r.ShippingQuote.Subtotal),
			OptionID:   r.ShippingQuote.OptionID,
			OptionName: r.ShippingQuote.OptionName,
			RateBps:    r.ShippingQuote.RateBps,
		}
	}
	snap.Lines = make([]pricing.LineInput, 0, len(r.Lines))
	for _, ln := range r.Lines {
		snap.Lines = append(snap.Lines, pricing.LineInput{
			LineID:        ln.LineID,
			PurchasableID: ln.PurchasableID,
			VariantID:     ln.VariantID,
			TaxClass:      ln.TaxClass,
			Qty:           ln.Qty,
		})
	}
	return snap
}

// BulkRequest asks for a fleet-wide reprice, optionally limited to specific
// carts. An empty cart list means every cart with a recorded snapshot.
type BulkRequest struct {
	CartIDs []uuid.UUID `json:"cartIds,omitempty"`
	Trigger string      `json:"trigger,omitempty"`
}
