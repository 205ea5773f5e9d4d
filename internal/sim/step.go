package sim

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"ammPair/internal/numeric"
)

// Step operations.
const (
	OpFund           = "fund"
	OpDeposit        = "deposit"
	OpDonate         = "donate"
	OpMint           = "mint"
	OpBurn           = "burn"
	OpSwap           = "swap"
	OpSkim           = "skim"
	OpSync           = "sync"
	OpTransferShares = "transfer_shares"
	OpAdvance        = "advance"
	OpSetFeeTo       = "set_fee_to"
	OpPause          = "pause"
	OpUnpause        = "unpause"
)

// Step is one line of a scenario file. Accounts are hex addresses or names;
// a name maps to a stable address derived from it.
type Step struct {
	Op         string `json:"op"`
	Account    string `json:"account,omitempty"`
	To         string `json:"to,omitempty"`
	AmountA    string `json:"amount_a,omitempty"`
	AmountB    string `json:"amount_b,omitempty"`
	AmountAOut string `json:"amount_a_out,omitempty"`
	AmountBOut string `json:"amount_b_out,omitempty"`
	Shares     string `json:"shares,omitempty"`
	Seconds    uint64 `json:"seconds,omitempty"`
}

// ParseStep decodes one scenario line.
func ParseStep(line []byte) (Step, error) {
	var step Step
	dec := json.NewDecoder(strings.NewReader(string(line)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&step); err != nil {
		return Step{}, fmt.Errorf("parse step: %w", err)
	}
	step.Op = strings.ToLower(strings.TrimSpace(step.Op))
	switch step.Op {
	case OpFund, OpDeposit, OpDonate, OpMint, OpBurn, OpSwap, OpSkim, OpSync,
		OpTransferShares, OpAdvance, OpSetFeeTo, OpPause, OpUnpause:
	case "":
		return Step{}, fmt.Errorf("parse step: missing op")
	default:
		return Step{}, fmt.Errorf("parse step: unknown op %q", step.Op)
	}
	return step, nil
}

// AccountAddress resolves an account name or hex address.
func AccountAddress(name string) common.Address {
	name = strings.TrimSpace(name)
	if common.IsHexAddress(name) {
		return common.HexToAddress(name)
	}
	return common.BytesToAddress(crypto.Keccak256([]byte(strings.ToLower(name))))
}

type amounts struct {
	a, b *uint256.Int
}

func parseAmounts(a, b string) (amounts, error) {
	amountA, err := numeric.Parse(strings.TrimSpace(a))
	if err != nil {
		return amounts{}, fmt.Errorf("amount_a: %w", err)
	}
	amountB, err := numeric.Parse(strings.TrimSpace(b))
	if err != nil {
		return amounts{}, fmt.Errorf("amount_b: %w", err)
	}
	return amounts{a: amountA, b: amountB}, nil
}
