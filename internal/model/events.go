package model

// Amounts are base-10 strings so 256-bit values survive JSON untouched.

// MintEventData is the Mint event payload.
type MintEventData struct {
	Sender  string `json:"sender"`
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
}

// BurnEventData is the Burn event payload.
type BurnEventData struct {
	Sender  string `json:"sender"`
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
	To      string `json:"to"`
}

// SwapEventData is the Swap event payload.
type SwapEventData struct {
	Sender     string `json:"sender"`
	AmountAIn  string `json:"amount_a_in"`
	AmountBIn  string `json:"amount_b_in"`
	AmountAOut string `json:"amount_a_out"`
	AmountBOut string `json:"amount_b_out"`
	To         string `json:"to"`
}

// SyncEventData is the Sync event payload.
type SyncEventData struct {
	ReserveA string `json:"reserve_a"`
	ReserveB string `json:"reserve_b"`
}
