package testing

import (
	"github.com/aristath/treasury/internal/domain"
)

// Well-known addresses used across tests
const (
	Governor  domain.Address = "0xgovernor"
	Guardian  domain.Address = "0xguardian"
	Stranger  domain.Address = "0xstranger"
	Keeper    domain.Address = "0xkeeper"
	Pool      domain.Address = "0xtreasury-pool"
	Ledger    domain.Address = "0xallocation-ledger"
	Venue     domain.Address = "0xlending-venue"
	Recipient domain.Address = "0xrecipient"
	Strategy  domain.Address = "0xlending-strategy"
)

// Asset addresses
const (
	USDC domain.Address = "0xusdc"
	WETH domain.Address = "0xweth"
	DAI  domain.Address = "0xdai"
)

// NewAssetFixtures returns the set of test assets
func NewAssetFixtures() []domain.Asset {
	return []domain.Asset{
		{Address: USDC, Symbol: "USDC", Decimals: 6},
		{Address: WETH, Symbol: "WETH", Decimals: 18},
		{Address: DAI, Symbol: "DAI", Decimals: 18},
	}
}
