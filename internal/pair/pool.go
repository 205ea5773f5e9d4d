// Package pair implements the constant-product pair engine: a two-asset
// reserve with fungible liquidity shares, a fee-adjusted price invariant and
// cumulative price accumulators.
//
// The host is expected to serialize calls against one pool. A concurrent or
// reentrant mutating call is rejected with ErrReentrant rather than queued.
// Getters are safe to call at any time, including from token callbacks.
package pair

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammPair/internal/model"
	"ammPair/internal/numeric"
)

// MinimumLiquidity is permanently locked at BurnAccount by the genesis mint.
const MinimumLiquidity = 1000

const burnAccountHex = "0x000000000000000000000000000000000000dEaD"

// BurnAccount holds the genesis MinimumLiquidity shares. Its shares can
// never be transferred or burned.
var BurnAccount = common.HexToAddress(burnAccountHex)

var minimumLiquidity = uint256.NewInt(MinimumLiquidity)

// Config holds the identity of a pool.
type Config struct {
	// Account is the pool's own account on the token ledgers.
	Account common.Address
	// Deployer is the only account allowed to Initialize, Pause or Unpause.
	Deployer common.Address
}

// Pool is a single constant-product market between two tokens.
type Pool struct {
	cfg    Config
	fees   FeeSource
	clock  Clock
	sink   EventSink
	logger *zap.Logger

	guard   Guard
	journal journal
	pending []Event

	mu               sync.RWMutex
	initialized      bool
	paused           bool
	tokenA           TokenLedger
	tokenB           TokenLedger
	reserveA         *uint256.Int
	reserveB         *uint256.Int
	kLast            *uint256.Int
	priceACumulative *uint256.Int
	priceBCumulative *uint256.Int
	lastUpdate       uint64
	totalShares      *uint256.Int
	balances         map[common.Address]*uint256.Int
	allowances       map[common.Address]map[common.Address]*uint256.Int
}

// NewPool builds an uninitialized pool. A nil fees disables the protocol
// fee, a nil clock reads the wall clock and a nil sink discards events.
func NewPool(cfg Config, fees FeeSource, clock Clock, sink EventSink, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if sink == nil {
		sink = discardSink{}
	}
	return &Pool{
		cfg:              cfg,
		fees:             fees,
		clock:            clock,
		sink:             sink,
		logger:           logger.With(zap.String("pool", cfg.Account.Hex())),
		reserveA:         new(uint256.Int),
		reserveB:         new(uint256.Int),
		kLast:            new(uint256.Int),
		priceACumulative: new(uint256.Int),
		priceBCumulative: new(uint256.Int),
		totalShares:      new(uint256.Int),
		balances:         make(map[common.Address]*uint256.Int),
		allowances:       make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Account returns the pool's own account.
func (p *Pool) Account() common.Address {
	return p.cfg.Account
}

// Initialize binds the two token ledgers. Only the deployer may call it,
// and only once.
func (p *Pool) Initialize(caller common.Address, tokenA, tokenB TokenLedger) error {
	if caller != p.cfg.Deployer {
		return &OpError{Op: "initialize", Err: ErrUnauthorized}
	}
	if tokenA == nil || tokenB == nil {
		return &OpError{Op: "initialize", Err: fmt.Errorf("token ledger is nil")}
	}
	if tokenA.Address() == tokenB.Address() {
		return &OpError{Op: "initialize", Err: ErrIdenticalTokens}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return &OpError{Op: "initialize", Err: ErrAlreadyInitialized}
	}
	p.tokenA = tokenA
	p.tokenB = tokenB
	p.initialized = true

	p.logger.Info("pool initialized",
		zap.String("token_a", tokenA.Address().Hex()),
		zap.String("token_b", tokenB.Address().Hex()),
	)
	return nil
}

// Pause rejects mutating calls until Unpause.
func (p *Pool) Pause(caller common.Address) error {
	return p.setPaused("pause", caller, true)
}

// Unpause lifts a Pause.
func (p *Pool) Unpause(caller common.Address) error {
	return p.setPaused("unpause", caller, false)
}

func (p *Pool) setPaused(op string, caller common.Address, paused bool) error {
	if caller != p.cfg.Deployer {
		return &OpError{Op: op, Err: ErrUnauthorized}
	}
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	p.logger.Info("pause state changed", zap.Bool("paused", paused))
	return nil
}

// GetReserves returns copies of the reserves and the last update time.
func (p *Pool) GetReserves() (reserveA, reserveB *uint256.Int, lastUpdate uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reserveA.Clone(), p.reserveB.Clone(), p.lastUpdate
}

// PriceCumulatives returns the running price-time integrals.
func (p *Pool) PriceCumulatives() (priceA, priceB *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.priceACumulative.Clone(), p.priceBCumulative.Clone()
}

// KLast returns reserveA*reserveB as of the last liquidity event with the
// protocol fee on, or zero.
func (p *Pool) KLast() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.kLast.Clone()
}

// TokenA returns the first pooled token's identifier.
func (p *Pool) TokenA() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tokenA == nil {
		return common.Address{}
	}
	return p.tokenA.Address()
}

// TokenB returns the second pooled token's identifier.
func (p *Pool) TokenB() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tokenB == nil {
		return common.Address{}
	}
	return p.tokenB.Address()
}

// Paused reports whether mutating calls are currently rejected.
func (p *Pool) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// GuardState reports whether a mutating call is in flight.
func (p *Pool) GuardState() GuardState {
	return p.guard.State()
}

// Snapshot returns a copy of the pool's persisted fields.
func (p *Pool) Snapshot() model.PoolState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	balances := make(map[string]string, len(p.balances))
	for holder, amount := range p.balances {
		if amount.IsZero() {
			continue
		}
		balances[holder.Hex()] = numeric.String(amount)
	}

	state := model.PoolState{
		Address:             p.cfg.Account.Hex(),
		ReserveA:            numeric.String(p.reserveA),
		ReserveB:            numeric.String(p.reserveB),
		KLast:               numeric.String(p.kLast),
		PriceACumulative:    numeric.String(p.priceACumulative),
		PriceBCumulative:    numeric.String(p.priceBCumulative),
		LastUpdateTimestamp: p.lastUpdate,
		TotalShares:         numeric.String(p.totalShares),
		Balances:            balances,
		Paused:              p.paused,
	}
	if p.tokenA != nil {
		state.TokenA = p.tokenA.Address().Hex()
		state.TokenB = p.tokenB.Address().Hex()
	}
	return state
}

// execute runs fn under the guard. On failure every write made by fn,
// in the pool and in reverting token ledgers, is rolled back and no event
// is emitted.
func (p *Pool) execute(op string, fn func() error) error {
	if !p.guard.Enter() {
		p.logger.Warn("reentrant call rejected", zap.String("op", op))
		return &OpError{Op: op, Err: ErrReentrant}
	}
	defer p.guard.Exit()

	p.mu.RLock()
	initialized, paused := p.initialized, p.paused
	tokens := []TokenLedger{p.tokenA, p.tokenB}
	p.mu.RUnlock()
	if !initialized {
		return &OpError{Op: op, Err: ErrNotInitialized}
	}
	if paused {
		return &OpError{Op: op, Err: ErrPaused}
	}

	snapshots := make([]tokenSnapshot, 0, len(tokens))
	for _, token := range tokens {
		if r, ok := token.(Reverter); ok {
			snapshots = append(snapshots, tokenSnapshot{reverter: r, id: r.Snapshot()})
		}
	}

	p.pending = p.pending[:0]
	p.mu.Lock()
	p.journal.begin()
	p.mu.Unlock()

	defer func() {
		// A panicking collaborator must not leave half-applied state behind.
		if r := recover(); r != nil {
			p.rollback(snapshots)
			panic(r)
		}
	}()

	if err := fn(); err != nil {
		p.rollback(snapshots)
		p.logger.Debug("call reverted", zap.String("op", op), zap.Error(err))
		return &OpError{Op: op, Err: err}
	}

	p.mu.Lock()
	p.journal.discard()
	p.mu.Unlock()
	for i := len(snapshots) - 1; i >= 0; i-- {
		snapshots[i].reverter.DiscardSnapshot(snapshots[i].id)
	}

	events := p.pending
	p.pending = nil
	for _, event := range events {
		p.sink.Emit(event)
	}
	return nil
}

type tokenSnapshot struct {
	reverter Reverter
	id       int
}

func (p *Pool) rollback(snapshots []tokenSnapshot) {
	p.mu.Lock()
	p.journal.revert()
	p.mu.Unlock()
	for i := len(snapshots) - 1; i >= 0; i-- {
		snapshots[i].reverter.RevertToSnapshot(snapshots[i].id)
	}
	p.pending = p.pending[:0]
}

func (p *Pool) emit(event Event) {
	p.pending = append(p.pending, event)
}

// tokenBalances reads the pool's balance on both ledgers.
// Suspension point: both reads call into external ledgers.
func (p *Pool) tokenBalances(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	balanceA, err := p.tokenA.BalanceOf(ctx, p.cfg.Account)
	if err != nil {
		return nil, nil, fmt.Errorf("balance of token a: %w", err)
	}
	balanceB, err := p.tokenB.BalanceOf(ctx, p.cfg.Account)
	if err != nil {
		return nil, nil, fmt.Errorf("balance of token b: %w", err)
	}
	if balanceA == nil || balanceB == nil {
		return nil, nil, fmt.Errorf("token ledger returned nil balance")
	}
	return balanceA, balanceB, nil
}

func (p *Pool) setKLast(k *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.kLast
	p.journal.record(func() { p.kLast = prev })
	p.kLast = k.Clone()
}

func (p *Pool) setReserves(reserveA, reserveB *uint256.Int, ts uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prevA, prevB, prevTs := p.reserveA, p.reserveB, p.lastUpdate
	p.journal.record(func() {
		p.reserveA, p.reserveB, p.lastUpdate = prevA, prevB, prevTs
	})
	p.reserveA, p.reserveB, p.lastUpdate = reserveA.Clone(), reserveB.Clone(), ts
}

func (p *Pool) setCumulatives(priceA, priceB *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prevA, prevB := p.priceACumulative, p.priceBCumulative
	p.journal.record(func() {
		p.priceACumulative, p.priceBCumulative = prevA, prevB
	})
	p.priceACumulative, p.priceBCumulative = priceA, priceB
}
