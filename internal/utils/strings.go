package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/treasury/internal/domain"
)

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// ParseAddressList parses a comma-separated list of addresses, e.g. GOVERNOR_ADDRESS
func ParseAddressList(s string) []domain.Address {
	values := ParseCSV(s)
	if values == nil {
		return nil
	}

	result := make([]domain.Address, len(values))
	for i, v := range values {
		result[i] = domain.Address(v)
	}
	return result
}

// ParseAssetList parses a comma-separated list of address:SYMBOL:decimals
// entries, e.g. TREASURY_ASSETS="0xusdc:USDC:6,0xweth:WETH:18"
func ParseAssetList(s string) ([]domain.Asset, error) {
	values := ParseCSV(s)
	if values == nil {
		return nil, nil
	}

	result := make([]domain.Asset, 0, len(values))
	seen := make(map[domain.Address]bool, len(values))
	for _, v := range values {
		parts := strings.Split(v, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("asset %q: expected address:SYMBOL:decimals", v)
		}
		addr := domain.Address(strings.TrimSpace(parts[0]))
		if addr.IsZero() {
			return nil, fmt.Errorf("asset %q: %w", v, domain.ErrInvalidAddress)
		}
		if seen[addr] {
			return nil, fmt.Errorf("asset %s listed twice", addr)
		}
		decimals, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || decimals < 0 || decimals > 36 {
			return nil, fmt.Errorf("asset %q: invalid decimals", v)
		}
		seen[addr] = true
		result = append(result, domain.Asset{
			Address:  addr,
			Symbol:   strings.TrimSpace(parts[1]),
			Decimals: decimals,
		})
	}
	return result, nil
}
