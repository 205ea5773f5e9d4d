package pair

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammPair/internal/numeric"
)

// protocolFeeDenominatorFactor sets the protocol's cut of invariant growth
// to 1/(factor+1). Changing it requires re-deriving the share formula.
var protocolFeeDenominatorFactor = uint256.NewInt(5)

// mintFee mints the protocol's share of sqrt(k) growth since kLast to the
// configured recipient. It reports whether the fee is on.
func (p *Pool) mintFee(reserveA, reserveB *uint256.Int) (bool, error) {
	recipient, feeOn := p.feeRecipient()
	kLast := p.KLast()

	if !feeOn {
		if !kLast.IsZero() {
			p.setKLast(new(uint256.Int))
		}
		return false, nil
	}
	if kLast.IsZero() {
		return true, nil
	}

	k, err := numeric.Mul("mint fee: k", reserveA, reserveB)
	if err != nil {
		return false, err
	}
	rootK := numeric.Sqrt(k)
	rootKLast := numeric.Sqrt(kLast)
	if !rootK.Gt(rootKLast) {
		return true, nil
	}

	growth := new(uint256.Int).Sub(rootK, rootKLast)
	numerator, err := numeric.Mul("mint fee: numerator", p.TotalShares(), growth)
	if err != nil {
		return false, err
	}
	scaled, err := numeric.Mul("mint fee: 5*root k", rootK, protocolFeeDenominatorFactor)
	if err != nil {
		return false, err
	}
	denominator, err := numeric.Add("mint fee: denominator", scaled, rootKLast)
	if err != nil {
		return false, err
	}
	liquidity, err := numeric.Div("mint fee", numerator, denominator)
	if err != nil {
		return false, err
	}
	if liquidity.IsZero() {
		return true, nil
	}
	if err := p.mintShares(recipient, liquidity); err != nil {
		return false, err
	}

	p.logger.Debug("protocol fee minted",
		zap.String("recipient", recipient.Hex()),
		zap.String("shares", numeric.String(liquidity)),
	)
	return true, nil
}

func (p *Pool) feeRecipient() (common.Address, bool) {
	if p.fees == nil {
		return common.Address{}, false
	}
	return p.fees.ProtocolFeeRecipient()
}

// refreshKLast records the product of the current reserves.
func (p *Pool) refreshKLast() error {
	reserveA, reserveB, _ := p.GetReserves()
	k, err := numeric.Mul("k last", reserveA, reserveB)
	if err != nil {
		return err
	}
	p.setKLast(k)
	return nil
}
