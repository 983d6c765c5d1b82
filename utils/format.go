package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// NiceAmount renders base units as a human readable number with thousands
// separators, e.g. 1234567000000 with 6 decimals -> "1,234,567"
func NiceAmount(amount *uint256.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}

	s := decimal.NewFromBigInt(amount.ToBig(), -decimals).String()
	intPart, fracPart := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx:]
	}
	for idx := len(intPart) - 3; idx > 0; idx -= 3 {
		intPart = intPart[:idx] + "," + intPart[idx:]
	}

	return intPart + fracPart
}

// ParseAmount converts a human readable number into base units
func ParseAmount(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", s)
	}
	d = d.Shift(decimals)
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q has too many decimals", s)
	}
	amount, overflow := uint256.FromBig(d.BigInt())
	if overflow {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q overflows", s)
	}

	return amount, nil
}

// ParseBaseUnits parses a plain decimal integer, an empty string means zero
func ParseBaseUnits(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", s)
	}

	return amount, nil
}

func FormatDeadline(unix int64) string {
	if unix == 0 {
		return "not set"
	}

	return time.Unix(unix, 0).UTC().Format(time.RFC1123)
}

func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%v seconds", int64(d.Seconds()))
	}

	return d.Round(time.Second).String()
}
