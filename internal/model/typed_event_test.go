package model

import (
	"encoding/json"
	"testing"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Sender:     "0x1111111111111111111111111111111111111111",
		AmountAIn:  "12345678901234567890123456789",
		AmountBIn:  "0",
		AmountAOut: "0",
		AmountBOut: "42",
		To:         "0x2222222222222222222222222222222222222222",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount_a_in", "amount_b_in", "amount_a_out", "amount_b_out"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestPoolStateOmitsNothing(t *testing.T) {
	data, err := json.Marshal(PoolState{Balances: map[string]string{}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"reserve_a", "reserve_b", "k_last", "price_a_cumulative", "price_b_cumulative", "total_shares"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %s", key)
		}
	}
}
