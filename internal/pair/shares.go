package pair

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammPair/internal/numeric"
)

// TotalShares returns the outstanding supply of liquidity shares.
func (p *Pool) TotalShares() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalShares.Clone()
}

// SharesOf returns holder's share balance.
func (p *Pool) SharesOf(holder common.Address) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balanceLocked(holder)
}

// Allowance returns how many of owner's shares spender may move.
func (p *Pool) Allowance(owner, spender common.Address) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if amount, ok := p.allowances[owner][spender]; ok {
		return amount.Clone()
	}
	return new(uint256.Int)
}

// TransferShares moves amount of sender's shares to to.
func (p *Pool) TransferShares(sender, to common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.moveLocked(sender, to, amount); err != nil {
		return &OpError{Op: "transfer shares", Err: err}
	}
	p.logger.Debug("shares transferred",
		zap.String("from", sender.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", numeric.String(amount)),
	)
	return nil
}

// ApproveShares lets spender move up to amount of owner's shares.
func (p *Pool) ApproveShares(owner, spender common.Address, amount *uint256.Int) error {
	if owner == BurnAccount {
		return &OpError{Op: "approve shares", Err: ErrBurnAccount}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setAllowanceLocked(owner, spender, amount.Clone())
	return nil
}

// TransferSharesFrom moves amount of from's shares to to on behalf of spender.
func (p *Pool) TransferSharesFrom(spender, from, to common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	allowed := new(uint256.Int)
	if current, ok := p.allowances[from][spender]; ok {
		allowed = current
	}
	if allowed.Lt(amount) {
		return &OpError{Op: "transfer shares from", Err: ErrInsufficientAllowance}
	}
	if err := p.moveLocked(from, to, amount); err != nil {
		return &OpError{Op: "transfer shares from", Err: err}
	}
	p.setAllowanceLocked(from, spender, new(uint256.Int).Sub(allowed, amount))
	return nil
}

// mintShares credits to and grows the supply.
func (p *Pool) mintShares(to common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	supply, err := numeric.Add("mint shares: supply", p.totalShares, amount)
	if err != nil {
		return err
	}
	balance, err := numeric.Add("mint shares: balance", p.balanceLocked(to), amount)
	if err != nil {
		return err
	}
	p.setSupplyLocked(supply)
	p.setBalanceLocked(to, balance)
	return nil
}

// burnShares debits from and shrinks the supply.
func (p *Pool) burnShares(from common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if from == BurnAccount {
		return ErrBurnAccount
	}
	balance, err := numeric.Sub("burn shares: balance", p.balanceLocked(from), amount)
	if err != nil {
		return ErrInsufficientShares
	}
	supply, err := numeric.Sub("burn shares: supply", p.totalShares, amount)
	if err != nil {
		return err
	}
	p.setSupplyLocked(supply)
	p.setBalanceLocked(from, balance)
	return nil
}

func (p *Pool) moveLocked(from, to common.Address, amount *uint256.Int) error {
	if from == BurnAccount {
		return ErrBurnAccount
	}
	fromBalance := p.balanceLocked(from)
	if fromBalance.Lt(amount) {
		return ErrInsufficientShares
	}
	if from == to {
		return nil
	}
	toBalance, err := numeric.Add("transfer shares: balance", p.balanceLocked(to), amount)
	if err != nil {
		return err
	}
	p.setBalanceLocked(from, new(uint256.Int).Sub(fromBalance, amount))
	p.setBalanceLocked(to, toBalance)
	return nil
}

func (p *Pool) balanceLocked(holder common.Address) *uint256.Int {
	if amount, ok := p.balances[holder]; ok {
		return amount.Clone()
	}
	return new(uint256.Int)
}

func (p *Pool) setBalanceLocked(holder common.Address, amount *uint256.Int) {
	prev, had := p.balances[holder]
	p.journal.record(func() {
		if had {
			p.balances[holder] = prev
		} else {
			delete(p.balances, holder)
		}
	})
	p.balances[holder] = amount
}

func (p *Pool) setSupplyLocked(supply *uint256.Int) {
	prev := p.totalShares
	p.journal.record(func() { p.totalShares = prev })
	p.totalShares = supply
}

func (p *Pool) setAllowanceLocked(owner, spender common.Address, amount *uint256.Int) {
	spenders, ok := p.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*uint256.Int)
		p.allowances[owner] = spenders
	}
	prev, had := spenders[spender]
	p.journal.record(func() {
		if had {
			spenders[spender] = prev
		} else {
			delete(spenders, spender)
		}
	})
	spenders[spender] = amount
}
