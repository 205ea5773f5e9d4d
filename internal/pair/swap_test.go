package pair

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"ammPair/internal/numeric"
)

// reservesAt1000 leaves the pool at (1000, 1000) with only the locked
// minimum outstanding.
func reservesAt1000(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, nil)
	h.seed(2000, 2000)
	require.NoError(t, h.pool.TransferShares(alice, poolAccount, u(1000)))
	_, _, err := h.pool.Burn(h.ctx, alice, alice)
	require.NoError(t, err)
	ra, rb := h.reserves()
	require.Equal(t, uint64(1000), ra)
	require.Equal(t, uint64(1000), rb)
	h.events.events = nil
	return h
}

func TestSwapExactInput(t *testing.T) {
	h := reservesAt1000(t)
	h.fund(bob, 100, 0)
	h.deposit(bob, 100, 0)

	out, err := numeric.AmountOut(u(100), u(1000), u(1000))
	require.NoError(t, err)
	require.Equal(t, uint64(90), out.Uint64())

	require.NoError(t, h.pool.Swap(h.ctx, bob, u(0), out, bob))

	ra, rb := h.reserves()
	require.Equal(t, uint64(1100), ra)
	require.Equal(t, uint64(1000-90), rb)
	require.Equal(t, uint64(90), h.balanceB(bob))
	require.Equal(t, []string{EventSync, EventSwap}, h.events.names())

	swap := h.events.events[1].(SwapEvent)
	require.Equal(t, uint64(100), swap.AmountAIn.Uint64())
	require.True(t, swap.AmountBIn.IsZero())
	require.Equal(t, uint64(90), swap.AmountBOut.Uint64())
	h.requireConsistent()
}

func TestSwapBelowFeeAdjustedInvariantFails(t *testing.T) {
	h := reservesAt1000(t)
	h.fund(bob, 100, 0)
	h.deposit(bob, 100, 0)

	// 1099700 * 909000 < 1000 * 1000 * 1000^2
	err := h.pool.Swap(h.ctx, bob, u(0), u(91), bob)
	require.ErrorIs(t, err, ErrKInvariant)

	require.Zero(t, h.balanceB(bob))
	ra, rb := h.reserves()
	require.Equal(t, uint64(1000), ra)
	require.Equal(t, uint64(1000), rb)
	require.Empty(t, h.events.events)
}

func TestSwapOutputAtReserveFailsBeforeTransfer(t *testing.T) {
	h := reservesAt1000(t)
	transfers := 0
	h.tokenA.SetHook(func(context.Context, common.Address, common.Address, *uint256.Int) error {
		transfers++
		return nil
	})

	err := h.pool.Swap(h.ctx, bob, u(1000), u(0), bob)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	require.Zero(t, transfers)

	err = h.pool.Swap(h.ctx, bob, u(0), u(5000), bob)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	h.requireConsistent()
}

func TestSwapRejectsTokenRecipient(t *testing.T) {
	h := reservesAt1000(t)

	require.ErrorIs(t, h.pool.Swap(h.ctx, bob, u(1), u(0), tokenAAddr), ErrInvalidRecipient)
	require.ErrorIs(t, h.pool.Swap(h.ctx, bob, u(1), u(0), tokenBAddr), ErrInvalidRecipient)
}

func TestSwapWithoutInputIsRolledBack(t *testing.T) {
	h := reservesAt1000(t)

	err := h.pool.Swap(h.ctx, bob, u(10), u(0), bob)
	require.ErrorIs(t, err, ErrInsufficientInputAmount)

	require.Zero(t, h.balanceA(bob), "optimistic transfer must be undone")
	require.Empty(t, h.events.events)
	h.requireConsistent()
}

func TestSwapsNeverDecreaseProduct(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(100_000, 100_000)
	h.fund(bob, 1_000_000, 1_000_000)

	for i := 0; i < 20; i++ {
		ra, rb := h.reserves()
		before := new(uint256.Int).Mul(u(ra), u(rb))
		in := uint64(1000 + i*137)

		if i%2 == 0 {
			out, err := numeric.AmountOut(u(in), u(ra), u(rb))
			require.NoError(t, err)
			h.deposit(bob, in, 0)
			require.NoError(t, h.pool.Swap(h.ctx, bob, u(0), out, bob))
		} else {
			out, err := numeric.AmountOut(u(in), u(rb), u(ra))
			require.NoError(t, err)
			h.deposit(bob, 0, in)
			require.NoError(t, h.pool.Swap(h.ctx, bob, out, u(0), bob))
		}

		ra, rb = h.reserves()
		after := new(uint256.Int).Mul(u(ra), u(rb))
		require.False(t, after.Lt(before), "step %d: k fell from %s to %s", i, before, after)
		h.requireConsistent()
	}
}

func TestReentrantSwapRejected(t *testing.T) {
	h := reservesAt1000(t)
	h.fund(bob, 100, 0)
	h.deposit(bob, 100, 0)

	var innerErr error
	var seen [2]uint64
	h.tokenB.SetHook(func(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
		if from != poolAccount {
			return nil
		}
		seen[0], seen[1] = h.reserves()
		innerErr = h.pool.Swap(ctx, bob, u(1), u(0), bob)
		return nil
	})

	require.NoError(t, h.pool.Swap(h.ctx, bob, u(0), u(90), bob))
	require.ErrorIs(t, innerErr, ErrReentrant)
	require.Equal(t, [2]uint64{1000, 1000}, seen, "getters work mid-call")

	ra, rb := h.reserves()
	require.Equal(t, uint64(1100), ra)
	require.Equal(t, uint64(910), rb)
	require.Len(t, h.events.events, 2)
	h.requireConsistent()
}

func TestFailedCallbackRevertsEverything(t *testing.T) {
	h := reservesAt1000(t)
	h.fund(bob, 100, 0)
	h.deposit(bob, 100, 0)

	h.tokenB.SetHook(func(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
		return h.pool.Sync(ctx, bob)
	})

	err := h.pool.Swap(h.ctx, bob, u(0), u(90), bob)
	require.ErrorIs(t, err, ErrReentrant)

	require.Zero(t, h.balanceB(bob))
	ra, rb := h.reserves()
	require.Equal(t, uint64(1000), ra)
	require.Equal(t, uint64(1000), rb)
	require.Empty(t, h.events.events)
	require.Equal(t, Unlocked, h.pool.GuardState())
}

type repayingCallee struct {
	h      *harness
	repayB uint64
	calls  int
}

func (c *repayingCallee) OnFlashSwap(ctx context.Context, sender common.Address, amountAOut, amountBOut *uint256.Int, data []byte) error {
	c.calls++
	if string(data) != "loan" {
		return errors.New("unexpected data")
	}
	return c.h.tokenB.Transfer(ctx, bob, poolAccount, u(c.repayB))
}

func TestFlashSwapRepaidInSameToken(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(10_000, 10_000)
	h.fund(bob, 0, 1)

	// Borrow 100 and repay 101: 997*101 >= 1000*100.
	callee := &repayingCallee{h: h, repayB: 101}
	require.NoError(t, h.pool.FlashSwap(h.ctx, bob, u(0), u(100), bob, callee, []byte("loan")))
	require.Equal(t, 1, callee.calls)

	ra, rb := h.reserves()
	require.Equal(t, uint64(10_000), ra)
	require.Equal(t, uint64(10_001), rb)
	require.Zero(t, h.balanceB(bob))
	h.requireConsistent()
}

func TestFlashSwapUnderpaidFails(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(10_000, 10_000)
	h.fund(bob, 0, 1)

	callee := &repayingCallee{h: h, repayB: 100}
	err := h.pool.FlashSwap(h.ctx, bob, u(0), u(100), bob, callee, []byte("loan"))
	require.ErrorIs(t, err, ErrKInvariant)

	require.Equal(t, uint64(1), h.balanceB(bob))
	require.Equal(t, uint64(10_000), h.balanceB(poolAccount))
	h.requireConsistent()
}

func TestSkimSendsExcess(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(2000, 2000)
	h.events.events = nil

	h.fund(bob, 500, 0)
	h.deposit(bob, 500, 0)
	require.NoError(t, h.pool.Skim(h.ctx, bob, bob))

	require.Equal(t, uint64(500), h.balanceA(bob))
	ra, rb := h.reserves()
	require.Equal(t, uint64(2000), ra)
	require.Equal(t, uint64(2000), rb)
	require.Empty(t, h.events.events)
	h.requireConsistent()
}

func TestSyncAdoptsBalances(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(2000, 2000)

	h.fund(bob, 0, 300)
	h.deposit(bob, 0, 300)
	require.NoError(t, h.pool.Sync(h.ctx, bob))

	_, rb := h.reserves()
	require.Equal(t, uint64(2300), rb)
	sync := h.events.events[len(h.events.events)-1].(SyncEvent)
	require.Equal(t, uint64(2300), sync.ReserveB.Uint64())
	h.requireConsistent()
}
