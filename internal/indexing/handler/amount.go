package handler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vietddude/steemstream/internal/core/domain"
)

const (
	unitVests = "VESTS"
	unitSBD   = "SBD"
)

// parseAsset parses a chain asset string such as "12.345678 VESTS".
func parseAsset(s, unit string) (decimal.Decimal, error) {
	amount, ok := strings.CutSuffix(strings.TrimSpace(s), " "+unit)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: expected %s amount, got %q", domain.ErrMalformedPayload, unit, s)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q: %v", domain.ErrMalformedPayload, s, err)
	}
	return d, nil
}

// vests truncates a VESTS amount to whole units.
func vests(s string) (int64, error) {
	d, err := parseAsset(s, unitVests)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

// postValue approximates a post's total payout from its curator payout,
// which is half of the total.
func postValue(curatorPayout string) (decimal.Decimal, error) {
	d, err := parseAsset(curatorPayout, unitSBD)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2).Mul(decimal.NewFromInt(2)), nil
}

// Reputation converts a raw chain reputation to the familiar 25-based score,
// rounded to two places.
func Reputation(raw string) float64 {
	raw = strings.TrimSpace(raw)
	digits := strings.TrimPrefix(raw, "-")
	if digits == "" || strings.Trim(digits, "0") == "" {
		return 25
	}

	leading, err := strconv.Atoi(digits[:min(4, len(digits))])
	if err != nil || leading <= 0 {
		return 25
	}
	l := math.Log10(float64(leading))
	out := float64(len(digits)-1) + (l - math.Trunc(l))
	if strings.HasPrefix(raw, "-") {
		out = -out
	}
	out = math.Max(out-9, 0)*9 + 25
	return math.Round(out*100) / 100
}
