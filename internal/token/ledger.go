// Package token is an in-memory fungible token ledger with go-ethereum
// style snapshots. It backs the simulator and the pool tests.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ammPair/internal/numeric"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Hook runs after every successful transfer, outside the ledger lock.
// A non-nil error fails the transfer; the transfer itself is not undone
// unless the caller reverts to a snapshot.
type Hook func(ctx context.Context, from, to common.Address, amount *uint256.Int) error

type revision struct {
	id           int
	journalIndex int
}

// Ledger is safe for concurrent use.
type Ledger struct {
	address common.Address
	symbol  string

	mu         sync.Mutex
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
	hook       Hook

	journal        []func()
	validRevisions []revision
	nextRevisionID int
}

func New(address common.Address, symbol string) *Ledger {
	return &Ledger{
		address:    address,
		symbol:     symbol,
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (l *Ledger) Address() common.Address { return l.address }

func (l *Ledger) Symbol() string { return l.symbol }

// SetHook installs hook; nil removes it.
func (l *Ledger) SetHook(hook Hook) {
	l.mu.Lock()
	l.hook = hook
	l.mu.Unlock()
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply.Clone()
}

func (l *Ledger) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(account), nil
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount, ok := l.allowances[owner][spender]; ok {
		return amount.Clone()
	}
	return new(uint256.Int)
}

// Mint creates amount out of thin air for to.
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	supply, err := numeric.Add(l.symbol+" mint: supply", l.supply, amount)
	if err != nil {
		return err
	}
	balance, err := numeric.Add(l.symbol+" mint: balance", l.balanceLocked(to), amount)
	if err != nil {
		return err
	}
	prev := l.supply
	l.record(func() { l.supply = prev })
	l.supply = supply
	l.setBalanceLocked(to, balance)
	return nil
}

func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAllowanceLocked(owner, spender, amount.Clone())
}

func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	err := l.moveLocked(from, to, amount)
	hook := l.hook
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s transfer: %w", l.symbol, err)
	}
	return l.runHook(ctx, hook, from, to, amount)
}

func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	allowed := new(uint256.Int)
	if current, ok := l.allowances[from][spender]; ok {
		allowed = current
	}
	var err error
	switch {
	case spender != from && allowed.Lt(amount):
		err = ErrInsufficientAllowance
	default:
		err = l.moveLocked(from, to, amount)
		if err == nil && spender != from {
			l.setAllowanceLocked(from, spender, new(uint256.Int).Sub(allowed, amount))
		}
	}
	hook := l.hook
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s transfer from: %w", l.symbol, err)
	}
	return l.runHook(ctx, hook, from, to, amount)
}

func (l *Ledger) runHook(ctx context.Context, hook Hook, from, to common.Address, amount *uint256.Int) error {
	if hook == nil {
		return nil
	}
	if err := hook(ctx, from, to, amount.Clone()); err != nil {
		return fmt.Errorf("%s hook: %w", l.symbol, err)
	}
	return nil
}

// Snapshot returns an identifier for the current ledger revision.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextRevisionID
	l.nextRevisionID++
	l.validRevisions = append(l.validRevisions, revision{id: id, journalIndex: len(l.journal)})
	return id
}

// RevertToSnapshot undoes every write made since the snapshot was taken.
// Unknown or already reverted ids are ignored.
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := -1
	for i, rev := range l.validRevisions {
		if rev.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	target := l.validRevisions[idx].journalIndex
	for i := len(l.journal) - 1; i >= target; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:target]
	l.validRevisions = l.validRevisions[:idx]
}

// DiscardSnapshot drops the snapshot and every later one, keeping their
// writes. Once no snapshot is live the journal is released.
func (l *Ledger) DiscardSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, rev := range l.validRevisions {
		if rev.id == id {
			l.validRevisions = l.validRevisions[:i]
			break
		}
	}
	if len(l.validRevisions) == 0 {
		l.journal = nil
	}
}

// record journals an undo step while a snapshot is live.
func (l *Ledger) record(undo func()) {
	if len(l.validRevisions) == 0 {
		return
	}
	l.journal = append(l.journal, undo)
}

func (l *Ledger) moveLocked(from, to common.Address, amount *uint256.Int) error {
	fromBalance := l.balanceLocked(from)
	if fromBalance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := numeric.Add(l.symbol+" transfer: balance", l.balanceLocked(to), amount)
	if err != nil {
		return err
	}
	l.setBalanceLocked(from, new(uint256.Int).Sub(fromBalance, amount))
	l.setBalanceLocked(to, toBalance)
	return nil
}

func (l *Ledger) balanceLocked(account common.Address) *uint256.Int {
	if amount, ok := l.balances[account]; ok {
		return amount.Clone()
	}
	return new(uint256.Int)
}

func (l *Ledger) setBalanceLocked(account common.Address, amount *uint256.Int) {
	prev, had := l.balances[account]
	l.record(func() {
		if had {
			l.balances[account] = prev
		} else {
			delete(l.balances, account)
		}
	})
	l.balances[account] = amount
}

func (l *Ledger) setAllowanceLocked(owner, spender common.Address, amount *uint256.Int) {
	spenders, ok := l.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*uint256.Int)
		l.allowances[owner] = spenders
	}
	prev, had := spenders[spender]
	l.record(func() {
		if had {
			spenders[spender] = prev
		} else {
			delete(spenders, spender)
		}
	})
	spenders[spender] = amount
}
