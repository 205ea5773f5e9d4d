package pair

import (
	"github.com/holiman/uint256"

	"ammPair/internal/numeric"
)

// update commits new balances as reserves and, when time has passed since
// the last update with both prior reserves non-zero, accumulates
// price * elapsed for both directions. Prices are truncating integer
// ratios of the prior reserves.
func (p *Pool) update(balanceA, balanceB, reserveA, reserveB *uint256.Int) error {
	if balanceA.Gt(numeric.MaxUint128) || balanceB.Gt(numeric.MaxUint128) {
		return ErrOverflow
	}

	now := p.clock.Now()
	_, _, last := p.GetReserves()
	ts := last
	if now > last {
		ts = now
		if !reserveA.IsZero() && !reserveB.IsZero() {
			if err := p.accumulate(reserveA, reserveB, now-last); err != nil {
				return err
			}
		}
	}

	p.setReserves(balanceA, balanceB, ts)
	p.emit(SyncEvent{ReserveA: balanceA.Clone(), ReserveB: balanceB.Clone()})
	return nil
}

func (p *Pool) accumulate(reserveA, reserveB *uint256.Int, elapsedSeconds uint64) error {
	elapsed := uint256.NewInt(elapsedSeconds)
	cumulativeA, cumulativeB := p.PriceCumulatives()

	priceA, err := numeric.Div("oracle: price a", reserveB, reserveA)
	if err != nil {
		return err
	}
	deltaA, err := numeric.Mul("oracle: price a * elapsed", priceA, elapsed)
	if err != nil {
		return err
	}
	nextA, err := numeric.Add("oracle: cumulative a", cumulativeA, deltaA)
	if err != nil {
		return err
	}

	priceB, err := numeric.Div("oracle: price b", reserveA, reserveB)
	if err != nil {
		return err
	}
	deltaB, err := numeric.Mul("oracle: price b * elapsed", priceB, elapsed)
	if err != nil {
		return err
	}
	nextB, err := numeric.Add("oracle: cumulative b", cumulativeB, deltaB)
	if err != nil {
		return err
	}

	p.setCumulatives(nextA, nextB)
	return nil
}
