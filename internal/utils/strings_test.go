package utils

import (
	"testing"

	"github.com/aristath/treasury/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "0xgov",
			expected: []string{"0xgov"},
		},
		{
			name:     "varied spacing",
			input:    "0xa,  0xb , 0xc",
			expected: []string{"0xa", "0xb", "0xc"},
		},
		{
			name:     "only separators",
			input:    " , ,",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestParseAddressList(t *testing.T) {
	assert.Equal(t, []domain.Address{"0xa", "0xb"}, ParseAddressList("0xa, 0xb"))
	assert.Nil(t, ParseAddressList(""))
}

func TestParseAssetList(t *testing.T) {
	assets, err := ParseAssetList(" 0xusdc:USDC:6 ,0xdai:DAI:18")
	assert.NoError(t, err)
	assert.Equal(t, []domain.Asset{
		{Address: "0xusdc", Symbol: "USDC", Decimals: 6},
		{Address: "0xdai", Symbol: "DAI", Decimals: 18},
	}, assets)

	assets, err = ParseAssetList("")
	assert.NoError(t, err)
	assert.Nil(t, assets)

	invalid := []string{
		"0xusdc:USDC",
		":USDC:6",
		"0xusdc:USDC:six",
		"0xusdc:USDC:-1",
		"0xusdc:USDC:6,0xusdc:USDC:6",
	}
	for _, input := range invalid {
		_, err := ParseAssetList(input)
		assert.Error(t, err, input)
	}
}
