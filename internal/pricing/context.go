package pricing

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pricing/internal/money"
	"github.com/noah-isme/backend-pricing/internal/shipping"
)

// Address locates the cart's shipping destination for tax zone resolution.
type Address struct {
	Country    string `json:"country"`
	Province   string `json:"province"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// LineInput is one purchasable reference inside a cart snapshot. Quantity is
// immutable for the duration of a pipeline run.
type LineInput struct {
	LineID        uuid.UUID
	PurchasableID uuid.UUID
	VariantID     *uuid.UUID
	TaxClass      string
	Qty           int32
}

// CartSnapshot is the read-only input handed to a pipeline run. It carries
// everything a run needs so no collaborator is consulted about cart state
// mid-run.
type CartSnapshot struct {
	CartID          uuid.UUID
	Currency        string
	CustomerID      *uuid.UUID
	CustomerGroup   string
	Channel         string
	CouponCode      string
	ShippingAddress *Address
	ShippingQuote   *shipping.Quote
	Lines           []LineInput
}

// AppliedRule is one immutable entry in a line's audit ledger. Version pins
// the revision of the rule that produced the change, Amount is the minor-unit
// delta the rule applied to the line.
type AppliedRule struct {
	Type       string            `json:"type"`
	Identifier string            `json:"identifier"`
	Version    int32             `json:"version"`
	Amount     money.Money       `json:"amount"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Line is the mutable working state of one cart line during a run.
// CurrentPrice is the tax-excluded line total (unit price times quantity);
// every step after base resolution reads and rewrites it in pipeline order.
type Line struct {
	ID            uuid.UUID
	PurchasableID uuid.UUID
	TaxClass      string
	Qty           int32
	UnitPrice     money.Money
	BasePrice     money.Money
	CurrentPrice  money.Money
	PriceSource   Source
	AppliedRules  []AppliedRule
}

// Record appends a rule to the line's ledger. The ledger is append-only and
// its order equals pipeline execution order.
func (l *Line) Record(rule AppliedRule) {
	l.AppliedRules = append(l.AppliedRules, rule)
}

// AppliedCartDiscount captures one cart-level discount and how its amount was
// distributed across lines.
type AppliedCartDiscount struct {
	DiscountID   uuid.UUID             `json:"discountId"`
	Version      int32                 `json:"discountVersion"`
	Name         string                `json:"name"`
	Amount       money.Money           `json:"amount"`
	Distribution map[string]money.Money `json:"distribution"`
}

// LineTax is the per-line entry of the tax breakdown.
type LineTax struct {
	LineID    uuid.UUID   `json:"lineId"`
	TaxBase   money.Money `json:"taxBase"`
	TaxAmount money.Money `json:"taxAmount"`
	RateBps   int64       `json:"rateBps"`
	TaxClass  string      `json:"taxClass"`
}

// RateTax aggregates tax amounts per distinct rate.
type RateTax struct {
	RateBps int64       `json:"rateBps"`
	Name    string      `json:"name"`
	Amount  money.Money `json:"amount"`
}

// TaxBreakdown aggregates line taxes and per-rate totals. The invariant
// sum(Lines.TaxAmount) == Total holds after the tax step.
type TaxBreakdown struct {
	Total money.Money `json:"total"`
	Lines []LineTax   `json:"lineItemTaxes"`
	Rates []RateTax   `json:"taxRates"`
}

// ShippingCost is the cart-level shipping component captured from the
// upstream shipping computation.
type ShippingCost struct {
	Amount     money.Money `json:"amount"`
	OptionID   string      `json:"optionId"`
	OptionName string      `json:"optionName"`
	TaxAmount  money.Money `json:"taxAmount"`
	RateBps    int64       `json:"rateBps"`
}

// Context is the working state threaded through every pipeline step. A
// Context belongs to exactly one run and is discarded once a breakdown has
// been assembled.
type Context struct {
	Snapshot CartSnapshot
	Now      time.Time

	Lines []*Line

	Subtotal          money.Money
	ItemDiscountTotal money.Money
	CartDiscountTotal money.Money
	TaxTotal          money.Money
	ShippingTotal     money.Money
	GrandTotal        money.Money

	CartDiscounts []AppliedCartDiscount
	Shipping      ShippingCost
	Tax           TaxBreakdown
}

func newContext(snap CartSnapshot, now time.Time) *Context {
	pc := &Context{Snapshot: snap, Now: now.UTC()}
	pc.Lines = make([]*Line, 0, len(snap.Lines))
	for _, in := range snap.Lines {
		pc.Lines = append(pc.Lines, &Line{
			ID:            in.LineID,
			PurchasableID: in.PurchasableID,
			TaxClass:      in.TaxClass,
			Qty:           in.Qty,
		})
	}
	return pc
}

// DiscountTotal returns the combined item and cart discount total.
func (pc *Context) DiscountTotal() money.Money {
	return pc.ItemDiscountTotal + pc.CartDiscountTotal
}
