// Package sim replays scenario files of pool operations against an
// in-memory pair and forwards the resulting events to storage sinks.
package sim

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"ammPair/internal/dex"
	"ammPair/internal/model"
	"ammPair/internal/numeric"
	"ammPair/internal/pair"
	"ammPair/internal/storage"
	"ammPair/internal/token"
)

// Fixed identities of the simulated deployment.
var (
	Deployer   = AccountAddress("deployer")
	PoolAddr   = AccountAddress("pair")
	TokenAAddr = AccountAddress("token_a")
	TokenBAddr = AccountAddress("token_b")
)

// Options configure a Simulator.
type Options struct {
	ChainID   uint64
	StartTime uint64
	SymbolA   string
	SymbolB   string
	// FeeTo enables the protocol fee from the start when non-zero.
	FeeTo common.Address
}

// Sinks receive the records produced by a run. Either may be nil.
type Sinks struct {
	Logs   storage.LogSink
	Events storage.EventSink
}

// StepResult reports the outcome of one scenario line.
type StepResult struct {
	Line   int
	Op     string
	OK     bool
	Err    error
	Events int
}

// Summary counts the outcome of a run.
type Summary struct {
	Steps  int
	OK     int
	Failed int
	Events int
}

// Simulator owns a pool, its two token ledgers and a manual clock.
type Simulator struct {
	opts    Options
	logger  *zap.Logger
	pool    *pair.Pool
	tokenA  *token.Ledger
	tokenB  *token.Ledger
	clock   *Clock
	fees    *FeeSwitch
	decoder *dex.PairDecoder
	events  *eventBuffer

	block uint64
}

// New deploys and initializes a simulated pair.
func New(opts Options, logger *zap.Logger) (*Simulator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SymbolA == "" {
		opts.SymbolA = "TKA"
	}
	if opts.SymbolB == "" {
		opts.SymbolB = "TKB"
	}
	decoder, err := dex.NewPairDecoder(dex.DecoderConfig{})
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		opts:    opts,
		logger:  logger,
		tokenA:  token.New(TokenAAddr, opts.SymbolA),
		tokenB:  token.New(TokenBAddr, opts.SymbolB),
		clock:   NewClock(opts.StartTime),
		fees:    &FeeSwitch{},
		decoder: decoder,
		events:  &eventBuffer{},
	}
	s.fees.Set(opts.FeeTo)
	s.pool = pair.NewPool(pair.Config{Account: PoolAddr, Deployer: Deployer}, s.fees, s.clock, s.events, logger)
	if err := s.pool.Initialize(Deployer, s.tokenA, s.tokenB); err != nil {
		return nil, err
	}
	return s, nil
}

// Pool exposes the simulated pool for inspection.
func (s *Simulator) Pool() *pair.Pool { return s.pool }

// Token returns the ledger for "a" or "b".
func (s *Simulator) Token(side string) *token.Ledger {
	if strings.EqualFold(side, "b") {
		return s.tokenB
	}
	return s.tokenA
}

// Run executes every step read from r. A failing step is logged and counted
// and the run continues. Only malformed input or a sink failure stops it.
func (s *Simulator) Run(ctx context.Context, r io.Reader, sinks Sinks) (Summary, error) {
	var summary Summary
	err := storage.ScanJSONL(r, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		step, err := ParseStep(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		res, err := s.Apply(ctx, lineNo, step, sinks)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		summary.Steps++
		summary.Events += res.Events
		if res.OK {
			summary.OK++
		} else {
			summary.Failed++
			s.logger.Info("step failed", zap.Int("line", lineNo), zap.String("op", step.Op), zap.Error(res.Err))
		}
		return nil
	})
	return summary, err
}

// Apply runs one step as a single transaction: token movements of a failed
// step are reverted. Each step is one block, so the events of a step share
// a block number and transaction hash. The returned error is reserved for
// sink failures; the step's own failure is in StepResult.Err.
func (s *Simulator) Apply(ctx context.Context, lineNo int, step Step, sinks Sinks) (StepResult, error) {
	s.block++
	res := StepResult{Line: lineNo, Op: step.Op}

	s.events.reset()
	snapA, snapB := s.tokenA.Snapshot(), s.tokenB.Snapshot()
	res.Err = s.apply(ctx, step)
	res.OK = res.Err == nil
	if res.OK {
		s.tokenB.DiscardSnapshot(snapB)
		s.tokenA.DiscardSnapshot(snapA)
	} else {
		s.tokenB.RevertToSnapshot(snapB)
		s.tokenA.RevertToSnapshot(snapA)
	}

	emitted := s.events.drain()
	if len(emitted) == 0 {
		return res, nil
	}
	logs, events := s.encode(emitted)
	res.Events = len(events)
	if sinks.Logs != nil {
		if err := sinks.Logs.PutLogBatch(logs); err != nil {
			return res, fmt.Errorf("store logs: %w", err)
		}
	}
	if sinks.Events != nil {
		if err := sinks.Events.PutEvents(ctx, events); err != nil {
			return res, fmt.Errorf("store events: %w", err)
		}
	}
	return res, nil
}

func (s *Simulator) apply(ctx context.Context, step Step) error {
	actor := s.resolve(step.Account)
	to := actor
	if step.To != "" {
		to = s.resolve(step.To)
	}

	switch step.Op {
	case OpAdvance:
		s.clock.Advance(step.Seconds)
		return nil
	case OpSetFeeTo:
		if step.To == "" {
			s.fees.Set(common.Address{})
		} else {
			s.fees.Set(to)
		}
		return nil
	case OpPause:
		return s.pool.Pause(actor)
	case OpUnpause:
		return s.pool.Unpause(actor)
	case OpSkim:
		return s.pool.Skim(ctx, actor, to)
	case OpSync:
		return s.pool.Sync(ctx, actor)
	case OpMint:
		_, err := s.pool.Mint(ctx, actor, to)
		return err
	case OpBurn:
		return s.burn(ctx, actor, to, step.Shares)
	case OpTransferShares:
		shares, err := numeric.Parse(step.Shares)
		if err != nil {
			return fmt.Errorf("shares: %w", err)
		}
		return s.pool.TransferShares(actor, to, shares)
	}

	amts, err := parseAmounts(step.AmountA, step.AmountB)
	if err != nil {
		return err
	}
	switch step.Op {
	case OpFund:
		if err := s.tokenA.Mint(to, amts.a); err != nil {
			return err
		}
		return s.tokenB.Mint(to, amts.b)
	case OpDonate:
		if err := s.tokenA.Mint(PoolAddr, amts.a); err != nil {
			return err
		}
		return s.tokenB.Mint(PoolAddr, amts.b)
	case OpDeposit:
		return s.deposit(ctx, actor, amts)
	case OpSwap:
		return s.swap(ctx, actor, to, amts, step)
	}
	return fmt.Errorf("unhandled op %q", step.Op)
}

func (s *Simulator) deposit(ctx context.Context, from common.Address, amts amounts) error {
	if !amts.a.IsZero() {
		if err := s.tokenA.Transfer(ctx, from, PoolAddr, amts.a); err != nil {
			return fmt.Errorf("deposit token a: %w", err)
		}
	}
	if !amts.b.IsZero() {
		if err := s.tokenB.Transfer(ctx, from, PoolAddr, amts.b); err != nil {
			return fmt.Errorf("deposit token b: %w", err)
		}
	}
	return nil
}

// burn returns shares to the pool and burns them. An empty amount or "all"
// burns every share the actor holds.
func (s *Simulator) burn(ctx context.Context, actor, to common.Address, shares string) error {
	amount := s.pool.SharesOf(actor)
	if shares != "" && !strings.EqualFold(shares, "all") {
		var err error
		if amount, err = numeric.Parse(shares); err != nil {
			return fmt.Errorf("shares: %w", err)
		}
	}
	if !amount.IsZero() {
		if err := s.pool.TransferShares(actor, PoolAddr, amount); err != nil {
			return err
		}
	}
	if _, _, err := s.pool.Burn(ctx, actor, to); err != nil {
		if !amount.IsZero() {
			if undo := s.pool.TransferShares(PoolAddr, actor, amount); undo != nil {
				s.logger.Warn("return shares after failed burn", zap.Error(undo))
			}
		}
		return err
	}
	return nil
}

// swap deposits the given inputs and withdraws the requested outputs. When
// no output is given and only one input is, the output is the largest the
// 0.3% fee allows.
func (s *Simulator) swap(ctx context.Context, actor, to common.Address, in amounts, step Step) error {
	out, err := parseAmounts(step.AmountAOut, step.AmountBOut)
	if err != nil {
		return err
	}
	if out.a.IsZero() && out.b.IsZero() {
		reserveA, reserveB, _ := s.pool.GetReserves()
		switch {
		case !in.a.IsZero() && in.b.IsZero():
			if out.b, err = numeric.AmountOut(in.a, reserveA, reserveB); err != nil {
				return fmt.Errorf("quote: %w", err)
			}
		case !in.b.IsZero() && in.a.IsZero():
			if out.a, err = numeric.AmountOut(in.b, reserveB, reserveA); err != nil {
				return fmt.Errorf("quote: %w", err)
			}
		}
	}
	if err := s.deposit(ctx, actor, in); err != nil {
		return err
	}
	return s.pool.Swap(ctx, actor, out.a, out.b, to)
}

func (s *Simulator) resolve(name string) common.Address {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "deployer":
		return Deployer
	case "pool", "pair":
		return PoolAddr
	case "token_a":
		return TokenAAddr
	case "token_b":
		return TokenBAddr
	case "burn", "dead":
		return pair.BurnAccount
	}
	return AccountAddress(name)
}

// encode renders the step's events as chain logs and decodes them back, so
// stored events go through the same codec as events read from a chain.
func (s *Simulator) encode(emitted []pair.Event) ([]model.LogRecord, []model.TypedEvent) {
	txHash := crypto.Keccak256Hash([]byte(fmt.Sprintf("sim:%d:%d", s.opts.ChainID, s.block))).Hex()
	logs := make([]model.LogRecord, 0, len(emitted))
	events := make([]model.TypedEvent, 0, len(emitted))
	for i, event := range emitted {
		pos := dex.LogPosition{
			ChainID:     s.opts.ChainID,
			BlockNumber: s.block,
			TxHash:      txHash,
			LogIndex:    uint64(i),
			Timestamp:   s.clock.Now(),
		}
		record, err := dex.EncodeEvent(PoolAddr, event, pos)
		if err != nil {
			s.logger.Warn("encode event", zap.String("event", event.EventName()), zap.Error(err))
			events = append(events, model.TypedEvent{
				ChainID:     pos.ChainID,
				BlockNumber: pos.BlockNumber,
				TxHash:      pos.TxHash,
				LogIndex:    pos.LogIndex,
				Address:     PoolAddr.Hex(),
				EventName:   event.EventName(),
				Timestamp:   pos.Timestamp,
				Decoded:     event.Payload(),
			})
			continue
		}
		logs = append(logs, record)
		typed, err := s.decoder.Decode(record, dex.DecodeContext{Logger: s.logger})
		if err != nil {
			s.logger.Warn("decode event", zap.String("event", event.EventName()), zap.Error(err))
			continue
		}
		events = append(events, *typed)
	}
	return logs, events
}

// eventBuffer collects the events a pool flushes during one step.
type eventBuffer struct {
	mu     sync.Mutex
	events []pair.Event
}

func (b *eventBuffer) Emit(event pair.Event) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

func (b *eventBuffer) reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

func (b *eventBuffer) drain() []pair.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// FeeSwitch is a FeeSource whose recipient can change between calls.
type FeeSwitch struct {
	mu sync.RWMutex
	to common.Address
}

func (f *FeeSwitch) Set(to common.Address) {
	f.mu.Lock()
	f.to = to
	f.mu.Unlock()
}

func (f *FeeSwitch) ProtocolFeeRecipient() (common.Address, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.to, f.to != (common.Address{})
}

// Clock is a manually advanced pair.Clock.
type Clock struct {
	mu  sync.Mutex
	now uint64
}

func NewClock(start uint64) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(seconds uint64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}

var _ pair.EventSink = (*eventBuffer)(nil)
var _ pair.FeeSource = (*FeeSwitch)(nil)
var _ pair.Clock = (*Clock)(nil)
