package model

// PoolState is a point-in-time copy of a pair's persisted fields.
type PoolState struct {
	Address             string            `json:"address"`
	TokenA              string            `json:"token_a"`
	TokenB              string            `json:"token_b"`
	ReserveA            string            `json:"reserve_a"`
	ReserveB            string            `json:"reserve_b"`
	KLast               string            `json:"k_last"`
	PriceACumulative    string            `json:"price_a_cumulative"`
	PriceBCumulative    string            `json:"price_b_cumulative"`
	LastUpdateTimestamp uint64            `json:"last_update_timestamp"`
	TotalShares         string            `json:"total_shares"`
	Balances            map[string]string `json:"balances"`
	Paused              bool              `json:"paused"`
}
