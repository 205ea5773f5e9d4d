// Package oracle derives time-weighted average prices from a pool's
// cumulative price accumulators.
package oracle

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"ammPair/internal/numeric"
)

// ErrEmptyWindow is returned when two observations do not span any time.
var ErrEmptyWindow = errors.New("observation window is empty")

// Reader is the read side of a pool.
type Reader interface {
	GetReserves() (reserveA, reserveB *uint256.Int, lastUpdate uint64)
	PriceCumulatives() (priceA, priceB *uint256.Int)
}

// Observation is a reading of both accumulators at a point in time.
type Observation struct {
	Timestamp        uint64
	PriceACumulative *uint256.Int
	PriceBCumulative *uint256.Int
}

// Current returns the accumulators as they would read if the pool were
// updated at now, without touching the pool. A now at or before the last
// update returns the stored values.
func Current(r Reader, now uint64) (Observation, error) {
	reserveA, reserveB, last := r.GetReserves()
	priceA, priceB := r.PriceCumulatives()
	obs := Observation{Timestamp: last, PriceACumulative: priceA, PriceBCumulative: priceB}
	if now <= last {
		return obs, nil
	}
	obs.Timestamp = now
	if reserveA.IsZero() || reserveB.IsZero() {
		return obs, nil
	}

	elapsed := uint256.NewInt(now - last)
	var err error
	obs.PriceACumulative, err = advance("current: price a", priceA, reserveB, reserveA, elapsed)
	if err != nil {
		return Observation{}, err
	}
	obs.PriceBCumulative, err = advance("current: price b", priceB, reserveA, reserveB, elapsed)
	if err != nil {
		return Observation{}, err
	}
	return obs, nil
}

func advance(op string, cumulative, numer, denom, elapsed *uint256.Int) (*uint256.Int, error) {
	price, err := numeric.Div(op, numer, denom)
	if err != nil {
		return nil, err
	}
	delta, err := numeric.Mul(op, price, elapsed)
	if err != nil {
		return nil, err
	}
	return numeric.Add(op, cumulative, delta)
}

// Average returns the time-weighted average price of each direction
// between two observations.
func Average(older, newer Observation) (priceA, priceB *uint256.Int, err error) {
	if newer.Timestamp <= older.Timestamp {
		return nil, nil, fmt.Errorf("average %d..%d: %w", older.Timestamp, newer.Timestamp, ErrEmptyWindow)
	}
	window := uint256.NewInt(newer.Timestamp - older.Timestamp)

	deltaA, err := numeric.Sub("average: price a", newer.PriceACumulative, older.PriceACumulative)
	if err != nil {
		return nil, nil, err
	}
	deltaB, err := numeric.Sub("average: price b", newer.PriceBCumulative, older.PriceBCumulative)
	if err != nil {
		return nil, nil, err
	}
	return new(uint256.Int).Div(deltaA, window), new(uint256.Int).Div(deltaB, window), nil
}

// CurrentUQ112 is Current for pairs that keep UQ112x112 accumulators and
// 32-bit timestamps, as deployed Uniswap V2 pairs do. Both the timestamp
// difference and the accumulators wrap, matching the on-chain arithmetic.
func CurrentUQ112(r Reader, now uint32) Observation {
	reserveA, reserveB, last := r.GetReserves()
	priceA, priceB := r.PriceCumulatives()
	elapsed := now - uint32(last)
	obs := Observation{
		Timestamp:        last + uint64(elapsed),
		PriceACumulative: priceA.Clone(),
		PriceBCumulative: priceB.Clone(),
	}
	if elapsed == 0 || reserveA.IsZero() || reserveB.IsZero() {
		return obs
	}
	dt := uint256.NewInt(uint64(elapsed))
	obs.PriceACumulative.Add(obs.PriceACumulative, uq112Delta(reserveB, reserveA, dt))
	obs.PriceBCumulative.Add(obs.PriceBCumulative, uq112Delta(reserveA, reserveB, dt))
	return obs
}

func uq112Delta(numer, denom, elapsed *uint256.Int) *uint256.Int {
	price := new(uint256.Int).Lsh(numer, 112)
	price.Div(price, denom)
	return price.Mul(price, elapsed)
}
