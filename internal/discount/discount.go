package discount

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pricing/internal/money"
)

// Kind distinguishes how a discount value is interpreted.
type Kind string

const (
	// KindPercent discounts a basis-point share of the base amount.
	KindPercent Kind = "percent"
	// KindFixed subtracts a fixed minor-unit amount. The string values mirror
	// the discounts.kind column; rows scan straight into Kind.
	KindFixed Kind = "fixed"
)

// Scope declares which pipeline step consumes the discount.
type Scope string

const (
	// ScopeItem targets specific purchasables.
	ScopeItem Scope = "item"
	// ScopeCart targets the whole cart subtotal.
	ScopeCart Scope = "cart"
)

var (
	// ErrInvalidConfig marks a malformed discount definition. Callers treat
	// the discount as contributing zero and keep pricing the cart.
	ErrInvalidConfig = errors.New("invalid discount configuration")
	// ErrNotApplicable is returned when a discount's restrictions exclude the cart.
	ErrNotApplicable = errors.New("discount not applicable")
)

// Discount is a read-only value object loaded once per pipeline run.
// Version pins the revision used so historical breakdowns stay explainable
// after the definition changes.
type Discount struct {
	ID             uuid.UUID
	Version        int32
	Code           string
	Name           string
	Scope          Scope
	Kind           Kind
	Value          money.Money
	PercentBps     *int32
	MaxAmount      *money.Money
	MinCartValue   money.Money
	Active         bool
	StartsAt       *time.Time
	EndsAt         *time.Time
	CustomerGroups []string
	ProductIDs     []uuid.UUID
	Priority       int32
}

// InWindow reports whether the discount is active at the provided instant.
// A nil bound is open-ended.
func (d Discount) InWindow(now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	return true
}

// MatchesProduct reports whether an item-scoped discount targets the purchasable.
// A discount with no product associations matches nothing at item scope.
func (d Discount) MatchesProduct(productID uuid.UUID) bool {
	return slices.Contains(d.ProductIDs, productID)
}

// AppliesToCart checks the cart-level restrictions: minimum cart value and
// customer-group allow list.
func (d Discount) AppliesToCart(subtotal money.Money, customerGroup string) error {
	if subtotal < d.MinCartValue {
		return ErrNotApplicable
	}
	if len(d.CustomerGroups) > 0 && !slices.Contains(d.CustomerGroups, customerGroup) {
		return ErrNotApplicable
	}
	return nil
}

// Amount computes the discount against a base amount. Percent discounts are
// capped by MaxAmount when set; fixed discounts never exceed the base. A
// definition carrying neither a positive percentage nor a fixed value is
// malformed and returns ErrInvalidConfig.
func (d Discount) Amount(base money.Money) (money.Money, error) {
	if base <= 0 {
		return 0, nil
	}
	var amount money.Money
	switch d.Kind {
	case KindPercent:
		if d.PercentBps == nil || *d.PercentBps <= 0 {
			return 0, ErrInvalidConfig
		}
		amount = money.PercentBps(base, int64(*d.PercentBps))
		if d.MaxAmount != nil && amount > *d.MaxAmount {
			amount = *d.MaxAmount
		}
	case KindFixed:
		if d.Value <= 0 {
			return 0, ErrInvalidConfig
		}
		amount = d.Value
		if d.MaxAmount != nil && amount > *d.MaxAmount {
			amount = *d.MaxAmount
		}
	default:
		return 0, ErrInvalidConfig
	}
	return money.Min(amount, base), nil
}

// SortStable orders discounts deterministically: priority ascending, then
// creation identity. Pipeline output must not depend on load order.
func SortStable(ds []Discount) {
	slices.SortStableFunc(ds, func(a, b Discount) int {
		if a.Priority != b.Priority {
			if a.Priority < b.Priority {
				return -1
			}
			return 1
		}
		switch {
		case a.ID.String() < b.ID.String():
			return -1
		case a.ID.String() > b.ID.String():
			return 1
		default:
			return 0
		}
	})
}
