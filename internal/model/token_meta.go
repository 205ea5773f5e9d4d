package model

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// PairMeta is the on-chain view of a V2-compatible pair read by inspect.
type PairMeta struct {
	Address              string    `json:"address"`
	Token0               TokenMeta `json:"token0"`
	Token1               TokenMeta `json:"token1"`
	Reserve0             string    `json:"reserve0"`
	Reserve1             string    `json:"reserve1"`
	BlockTimestampLast   uint32    `json:"block_timestamp_last"`
	Price0CumulativeLast string    `json:"price0_cumulative_last"`
	Price1CumulativeLast string    `json:"price1_cumulative_last"`
	KLast                string    `json:"k_last"`
	TotalSupply          string    `json:"total_supply"`
	Balance0             string    `json:"balance0"`
	Balance1             string    `json:"balance1"`
}
