package money

import (
	"errors"
	"fmt"
	"strings"
)

// Money is a monetary amount in integer minor units (e.g. cents).
type Money = int64

// Mode selects how amounts are rounded for a currency.
type Mode string

const (
	// ModeNone leaves amounts untouched.
	ModeNone Mode = "none"
	// ModeRound rounds half away from zero to the increment.
	ModeRound Mode = "round"
	// ModeRoundUp always rounds up to the next increment.
	ModeRoundUp Mode = "round_up"
	// ModeRoundDown always rounds down to the previous increment.
	ModeRoundDown Mode = "round_down"
	// ModeNearest rounds to the nearest multiple of the increment, ties up.
	ModeNearest Mode = "nearest"
)

// ErrUnknownMode is returned when a rounding mode cannot be parsed.
var ErrUnknownMode = errors.New("unknown rounding mode")

// ParseMode converts a configuration string into a rounding Mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeNone:
		return ModeNone, nil
	case ModeRound:
		return ModeRound, nil
	case ModeRoundUp:
		return ModeRoundUp, nil
	case ModeRoundDown:
		return ModeRoundDown, nil
	case ModeNearest:
		return ModeNearest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, value)
	}
}

// Rounding describes the currency-specific rounding behaviour applied to
// line prices and cart totals.
type Rounding struct {
	Mode      Mode
	Increment Money
}

// Apply rounds amount according to the configured mode. A zero or negative
// increment falls back to 1 so the identity modes stay safe.
func (r Rounding) Apply(amount Money) Money {
	inc := r.Increment
	if inc <= 0 {
		inc = 1
	}
	if r.Mode == ModeNone || r.Mode == "" {
		return amount
	}
	rem := amount % inc
	if rem == 0 {
		return amount
	}
	down := amount - rem
	if amount < 0 {
		down = amount - rem - inc
		rem += inc
	}
	switch r.Mode {
	case ModeRoundDown:
		return down
	case ModeRoundUp:
		return down + inc
	case ModeRound, ModeNearest:
		if rem*2 >= inc {
			return down + inc
		}
		return down
	default:
		return amount
	}
}

// PercentBps applies a basis-point percentage to an amount rounding half up.
// 10000 bps == 100%.
func PercentBps(amount Money, bps int64) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + 5000) / 10000
}

// Clamp floors an amount at zero. Prices and totals never go negative.
func Clamp(amount Money) Money {
	if amount < 0 {
		return 0
	}
	return amount
}

// Min returns the lower of two amounts.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}
