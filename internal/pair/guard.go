package pair

import "sync/atomic"

// GuardState is the state of a reentrancy guard.
type GuardState int

const (
	Unlocked GuardState = iota
	Locked
)

func (s GuardState) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// Guard admits one mutating call at a time. A call that finds it Locked
// must fail with ErrReentrant.
type Guard struct {
	locked atomic.Bool
}

// Enter moves Unlocked -> Locked and reports whether it succeeded.
func (g *Guard) Enter() bool {
	return g.locked.CompareAndSwap(false, true)
}

// Exit moves back to Unlocked.
func (g *Guard) Exit() {
	g.locked.Store(false)
}

func (g *Guard) State() GuardState {
	if g.locked.Load() {
		return Locked
	}
	return Unlocked
}
