package pair

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammPair/internal/numeric"
)

var (
	feeScale    = uint256.NewInt(1000)
	feeNumer    = uint256.NewInt(3)
	feeScaleSqr = uint256.NewInt(1000 * 1000)
)

// Swap sends the requested outputs to to and requires the caller to have
// paid enough input, net of the 0.3% fee, to keep the product of reserves
// from decreasing.
func (p *Pool) Swap(ctx context.Context, sender common.Address, amountAOut, amountBOut *uint256.Int, to common.Address) error {
	return p.execute("swap", func() error {
		return p.swap(ctx, sender, amountAOut, amountBOut, to, nil, nil)
	})
}

// FlashSwap is Swap with a callback to callee between the optimistic
// transfers and the invariant check. The callee repays within the call.
func (p *Pool) FlashSwap(ctx context.Context, sender common.Address, amountAOut, amountBOut *uint256.Int, to common.Address, callee FlashCallee, data []byte) error {
	return p.execute("flash swap", func() error {
		return p.swap(ctx, sender, amountAOut, amountBOut, to, callee, data)
	})
}

func (p *Pool) swap(ctx context.Context, sender common.Address, amountAOut, amountBOut *uint256.Int, to common.Address, callee FlashCallee, data []byte) error {
	if amountAOut == nil {
		amountAOut = new(uint256.Int)
	}
	if amountBOut == nil {
		amountBOut = new(uint256.Int)
	}
	if amountAOut.IsZero() && amountBOut.IsZero() {
		return ErrInsufficientOutputAmount
	}
	reserveA, reserveB, _ := p.GetReserves()
	if !amountAOut.Lt(reserveA) || !amountBOut.Lt(reserveB) {
		return ErrInsufficientLiquidity
	}
	if to == p.tokenA.Address() || to == p.tokenB.Address() {
		return ErrInvalidRecipient
	}

	// Suspension point: outputs leave before inputs are checked.
	if !amountAOut.IsZero() {
		if err := p.tokenA.Transfer(ctx, p.cfg.Account, to, amountAOut); err != nil {
			return fmt.Errorf("transfer token a: %w", err)
		}
	}
	if !amountBOut.IsZero() {
		if err := p.tokenB.Transfer(ctx, p.cfg.Account, to, amountBOut); err != nil {
			return fmt.Errorf("transfer token b: %w", err)
		}
	}
	if callee != nil {
		// Suspension point: the callee is arbitrary code.
		if err := callee.OnFlashSwap(ctx, sender, amountAOut.Clone(), amountBOut.Clone(), data); err != nil {
			return fmt.Errorf("flash swap callback: %w", err)
		}
	}

	balanceA, balanceB, err := p.tokenBalances(ctx)
	if err != nil {
		return err
	}
	amountAIn := surplus(balanceA, reserveA, amountAOut)
	amountBIn := surplus(balanceB, reserveB, amountBOut)
	if amountAIn.IsZero() && amountBIn.IsZero() {
		return ErrInsufficientInputAmount
	}

	adjustedA, err := adjustBalance("swap: adjusted a", balanceA, amountAIn)
	if err != nil {
		return err
	}
	adjustedB, err := adjustBalance("swap: adjusted b", balanceB, amountBIn)
	if err != nil {
		return err
	}
	k, err := numeric.Mul("swap: k", reserveA, reserveB)
	if err != nil {
		return err
	}
	if numeric.ProductLess(adjustedA, adjustedB, k, feeScaleSqr) {
		return ErrKInvariant
	}

	if err := p.update(balanceA, balanceB, reserveA, reserveB); err != nil {
		return err
	}
	p.emit(SwapEvent{
		Sender:     sender,
		AmountAIn:  amountAIn,
		AmountBIn:  amountBIn,
		AmountAOut: amountAOut.Clone(),
		AmountBOut: amountBOut.Clone(),
		To:         to,
	})
	p.logger.Debug("swap",
		zap.String("to", to.Hex()),
		zap.String("amount_a_in", numeric.String(amountAIn)),
		zap.String("amount_b_in", numeric.String(amountBIn)),
		zap.String("amount_a_out", numeric.String(amountAOut)),
		zap.String("amount_b_out", numeric.String(amountBOut)),
	)
	return nil
}

// surplus returns balance - (reserve - out), or zero if there is none.
// out < reserve is checked by the caller.
func surplus(balance, reserve, out *uint256.Int) *uint256.Int {
	remaining := new(uint256.Int).Sub(reserve, out)
	if !balance.Gt(remaining) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(balance, remaining)
}

// adjustBalance returns balance*1000 - in*3.
func adjustBalance(op string, balance, in *uint256.Int) (*uint256.Int, error) {
	scaled, err := numeric.Mul(op, balance, feeScale)
	if err != nil {
		return nil, err
	}
	fee, err := numeric.Mul(op, in, feeNumer)
	if err != nil {
		return nil, err
	}
	return numeric.Sub(op, scaled, fee)
}

// Skim sends any token balance above the recorded reserves to to.
func (p *Pool) Skim(ctx context.Context, sender, to common.Address) error {
	return p.execute("skim", func() error {
		reserveA, reserveB, _ := p.GetReserves()
		balanceA, balanceB, err := p.tokenBalances(ctx)
		if err != nil {
			return err
		}
		excessA := surplus(balanceA, reserveA, new(uint256.Int))
		excessB := surplus(balanceB, reserveB, new(uint256.Int))

		// Suspension point.
		if !excessA.IsZero() {
			if err := p.tokenA.Transfer(ctx, p.cfg.Account, to, excessA); err != nil {
				return fmt.Errorf("transfer token a: %w", err)
			}
		}
		if !excessB.IsZero() {
			if err := p.tokenB.Transfer(ctx, p.cfg.Account, to, excessB); err != nil {
				return fmt.Errorf("transfer token b: %w", err)
			}
		}
		p.logger.Debug("skim",
			zap.String("sender", sender.Hex()),
			zap.String("to", to.Hex()),
			zap.String("excess_a", numeric.String(excessA)),
			zap.String("excess_b", numeric.String(excessB)),
		)
		return nil
	})
}

// Sync sets the reserves to the current token balances.
func (p *Pool) Sync(ctx context.Context, sender common.Address) error {
	return p.execute("sync", func() error {
		reserveA, reserveB, _ := p.GetReserves()
		balanceA, balanceB, err := p.tokenBalances(ctx)
		if err != nil {
			return err
		}
		p.logger.Debug("sync", zap.String("sender", sender.Hex()))
		return p.update(balanceA, balanceB, reserveA, reserveB)
	})
}
