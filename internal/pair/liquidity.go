package pair

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammPair/internal/numeric"
)

// Mint issues shares to to for the tokens deposited since the last update.
// The caller transfers both tokens to the pool account first.
func (p *Pool) Mint(ctx context.Context, sender, to common.Address) (*uint256.Int, error) {
	var minted *uint256.Int
	err := p.execute("mint", func() error {
		reserveA, reserveB, _ := p.GetReserves()
		balanceA, balanceB, err := p.tokenBalances(ctx)
		if err != nil {
			return err
		}
		if balanceA.Lt(reserveA) || balanceB.Lt(reserveB) {
			return ErrInsufficientInputAmount
		}
		amountA := new(uint256.Int).Sub(balanceA, reserveA)
		amountB := new(uint256.Int).Sub(balanceB, reserveB)

		feeOn, err := p.mintFee(reserveA, reserveB)
		if err != nil {
			return err
		}

		total := p.TotalShares()
		var shares *uint256.Int
		if total.IsZero() {
			product, err := numeric.Mul("mint: genesis product", amountA, amountB)
			if err != nil {
				return err
			}
			root := numeric.Sqrt(product)
			if !root.Gt(minimumLiquidity) {
				return ErrInsufficientLiquidityMinted
			}
			shares = new(uint256.Int).Sub(root, minimumLiquidity)
			if err := p.mintShares(BurnAccount, minimumLiquidity); err != nil {
				return err
			}
		} else {
			byA, err := numeric.MulDiv("mint: share of a", amountA, total, reserveA)
			if err != nil {
				return err
			}
			byB, err := numeric.MulDiv("mint: share of b", amountB, total, reserveB)
			if err != nil {
				return err
			}
			shares = numeric.Min(byA, byB)
		}
		if shares.IsZero() {
			return ErrInsufficientLiquidityMinted
		}

		if err := p.mintShares(to, shares); err != nil {
			return err
		}
		if err := p.update(balanceA, balanceB, reserveA, reserveB); err != nil {
			return err
		}
		if feeOn {
			if err := p.refreshKLast(); err != nil {
				return err
			}
		}

		p.emit(MintEvent{Sender: sender, AmountA: amountA, AmountB: amountB})
		p.logger.Debug("mint",
			zap.String("to", to.Hex()),
			zap.String("amount_a", numeric.String(amountA)),
			zap.String("amount_b", numeric.String(amountB)),
			zap.String("shares", numeric.String(shares)),
		)
		minted = shares
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// Burn redeems every share held by the pool account and pays the
// proportional token amounts to to. The caller transfers the shares to the
// pool account first.
func (p *Pool) Burn(ctx context.Context, sender, to common.Address) (amountA, amountB *uint256.Int, err error) {
	err = p.execute("burn", func() error {
		reserveA, reserveB, _ := p.GetReserves()
		balanceA, balanceB, err := p.tokenBalances(ctx)
		if err != nil {
			return err
		}
		liquidity := p.SharesOf(p.cfg.Account)

		feeOn, err := p.mintFee(reserveA, reserveB)
		if err != nil {
			return err
		}

		total := p.TotalShares()
		if total.IsZero() {
			return ErrInsufficientLiquidityBurned
		}
		outA, err := numeric.MulDiv("burn: amount a", liquidity, balanceA, total)
		if err != nil {
			return err
		}
		outB, err := numeric.MulDiv("burn: amount b", liquidity, balanceB, total)
		if err != nil {
			return err
		}
		if outA.IsZero() || outB.IsZero() {
			return ErrInsufficientLiquidityBurned
		}

		if err := p.burnShares(p.cfg.Account, liquidity); err != nil {
			return err
		}

		// Suspension point: token transfers may call back into the pool.
		if err := p.tokenA.Transfer(ctx, p.cfg.Account, to, outA); err != nil {
			return fmt.Errorf("transfer token a: %w", err)
		}
		if err := p.tokenB.Transfer(ctx, p.cfg.Account, to, outB); err != nil {
			return fmt.Errorf("transfer token b: %w", err)
		}

		balanceA, balanceB, err = p.tokenBalances(ctx)
		if err != nil {
			return err
		}
		if err := p.update(balanceA, balanceB, reserveA, reserveB); err != nil {
			return err
		}
		if feeOn {
			if err := p.refreshKLast(); err != nil {
				return err
			}
		}

		p.emit(BurnEvent{Sender: sender, AmountA: outA, AmountB: outB, To: to})
		p.logger.Debug("burn",
			zap.String("to", to.Hex()),
			zap.String("shares", numeric.String(liquidity)),
			zap.String("amount_a", numeric.String(outA)),
			zap.String("amount_b", numeric.String(outB)),
		)
		amountA, amountB = outA, outB
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}
