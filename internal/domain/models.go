// Package domain provides core domain models and types shared by the ledger,
// the strategy modules and the token book.
package domain

import (
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Address is an opaque handle for strategies, assets, callers, the pool and recipients.
type Address string

// ParseAddress trims and validates an address handle.
func ParseAddress(raw string) (Address, error) {
	addr := Address(strings.TrimSpace(raw))
	if addr.IsZero() {
		return "", fmt.Errorf("empty address: %w", ErrInvalidAddress)
	}
	return addr, nil
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}

// Role is an access-control role held by an address.
type Role string

const (
	RoleGovernor Role = "governor"
	RoleGuardian Role = "guardian"
)

// MaxAllowance is the "effectively unlimited" allowance (2^256 - 1).
// Spending from an allowance at this value never decrements it.
var MaxAllowance = sdkmath.NewIntFromBigInt(
	new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
)

// ParseAmount parses a base-unit decimal integer string into a non-negative amount.
func ParseAmount(raw string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(strings.TrimSpace(raw))
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("malformed amount %q: %w", raw, ErrInvalidAmount)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("negative amount %q: %w", raw, ErrInvalidAmount)
	}
	return amount, nil
}

// MustAmount parses an amount and panics on malformed input. Used for constants and tests.
func MustAmount(raw string) sdkmath.Int {
	amount, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return amount
}

// Units returns whole * 10^decimals, e.g. Units(100, 18) for 100 tokens of an 18-decimal asset.
func Units(whole int64, decimals int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(whole, decimals)
}

// Asset describes a fungible asset known to the token book.
type Asset struct {
	Address  Address `json:"address"`
	Symbol   string  `json:"symbol"`
	Decimals int     `json:"decimals"`
}
