package pricing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pricing/internal/common"
	"github.com/noah-isme/backend-pricing/internal/money"
)

// LineBreakdown is the immutable per-line result inside a breakdown.
type LineBreakdown struct {
	LineID        uuid.UUID     `json:"lineId"`
	PurchasableID uuid.UUID     `json:"purchasableId"`
	Qty           int32         `json:"qty"`
	UnitPrice     money.Money   `json:"unitPrice"`
	BasePrice     money.Money   `json:"basePrice"`
	FinalPrice    money.Money   `json:"finalPrice"`
	PriceSource   Source        `json:"priceSource"`
	AppliedRules  []AppliedRule `json:"appliedRules"`
}

// Document is the priced content of a breakdown: everything that influences
// what the customer pays, and nothing that varies between identical runs.
// The tamper digest is computed over its canonical serialization, so two
// runs over the same snapshot produce the same digest no matter when they
// executed.
type Document struct {
	CartID            uuid.UUID             `json:"cartId"`
	Currency          string                `json:"currency"`
	CustomerGroup     string                `json:"customerGroup"`
	Channel           string                `json:"channel"`
	Lines             []LineBreakdown       `json:"lines"`
	Subtotal          money.Money           `json:"subtotal"`
	ItemDiscountTotal money.Money           `json:"itemDiscountTotal"`
	CartDiscountTotal money.Money           `json:"cartDiscountTotal"`
	TaxTotal          money.Money           `json:"taxTotal"`
	ShippingTotal     money.Money           `json:"shippingTotal"`
	GrandTotal        money.Money           `json:"grandTotal"`
	CartDiscounts     []AppliedCartDiscount `json:"cartDiscounts"`
	Shipping          ShippingCost          `json:"shipping"`
	Tax               TaxBreakdown          `json:"tax"`
}

// Breakdown is the final artifact of a pipeline run: the priced document,
// its tamper-detection digest and the validity window.
type Breakdown struct {
	Document   Document  `json:"document"`
	Digest     string    `json:"digest"`
	Trigger    string    `json:"trigger"`
	ComputedAt time.Time `json:"computedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Canonical serializes the document with a stable field order. Struct fields
// marshal in declaration order and Go sorts map keys, so the bytes are
// deterministic for equal content.
func (d Document) Canonical() ([]byte, error) {
	return json.Marshal(d)
}

// Assemble freezes a completed pipeline context into a Breakdown and stamps
// the digest and expiry. The context must not be mutated afterwards; callers
// discard it.
func Assemble(pc *Context, trigger string, validity time.Duration) (Breakdown, error) {
	if validity <= 0 {
		validity = 24 * time.Hour
	}
	doc := Document{
		CartID:            pc.Snapshot.CartID,
		Currency:          pc.Snapshot.Currency,
		CustomerGroup:     pc.Snapshot.CustomerGroup,
		Channel:           pc.Snapshot.Channel,
		Lines:             make([]LineBreakdown, 0, len(pc.Lines)),
		Subtotal:          pc.Subtotal,
		ItemDiscountTotal: pc.ItemDiscountTotal,
		CartDiscountTotal: pc.CartDiscountTotal,
		TaxTotal:          pc.TaxTotal,
		ShippingTotal:     pc.ShippingTotal,
		GrandTotal:        pc.GrandTotal,
		CartDiscounts:     pc.CartDiscounts,
		Shipping:          pc.Shipping,
		Tax:               pc.Tax,
	}
	for _, ln := range pc.Lines {
		doc.Lines = append(doc.Lines, LineBreakdown{
			LineID:        ln.ID,
			PurchasableID: ln.PurchasableID,
			Qty:           ln.Qty,
			UnitPrice:     ln.UnitPrice,
			BasePrice:     ln.BasePrice,
			FinalPrice:    ln.CurrentPrice,
			PriceSource:   ln.PriceSource,
			AppliedRules:  ln.AppliedRules,
		})
	}
	canonical, err := doc.Canonical()
	if err != nil {
		return Breakdown{}, fmt.Errorf("serialize breakdown: %w", err)
	}
	return Breakdown{
		Document:   doc,
		Digest:     common.Sha256Hex(string(canonical)),
		Trigger:    trigger,
		ComputedAt: pc.Now,
		ExpiresAt:  pc.Now.Add(validity),
	}, nil
}

// Expired reports whether the breakdown's validity window has passed. A
// stored price past expiry must be repriced, never silently accepted.
func (b Breakdown) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// Matches compares digests. A mismatch means the price changed and the
// consumer must reprice.
func (b Breakdown) Matches(other Breakdown) bool {
	return b.Digest != "" && b.Digest == other.Digest
}
