package budget

import (
	"sync"

	"github.com/veridex/veridex/internal/model"
)

// Kind identifies what resource a consume call spends
type Kind string

const (
	KindIteration Kind = "iteration"
	KindToken     Kind = "token"
)

// Decision is the outcome of one consume call
type Decision struct {
	OK        bool
	Remaining int
	Exhausted bool // Global cap hit (sticky for the rest of the run)
}

// Tracker is the single point of truth for iteration/token budgets across
// the run. Consume is serialized under one mutex so concurrent research
// workers cannot overrun the global cap. Once the global cap for a kind is
// hit, every later consume of that kind fails for the rest of the run;
// there is no mid-run refill.
type Tracker struct {
	mu sync.Mutex

	mode model.BudgetMode

	globalRemaining map[Kind]int
	globalExhausted map[Kind]bool

	perClaimCap       map[Kind]int
	perClaimRemaining map[Kind]map[string]int
}

// NewTracker builds a tracker from the run configuration
func NewTracker(cfg model.BudgetConfig) *Tracker {
	return &Tracker{
		mode: cfg.Mode,
		globalRemaining: map[Kind]int{
			KindIteration: cfg.GlobalIterations,
			KindToken:     cfg.GlobalTokens,
		},
		globalExhausted: make(map[Kind]bool),
		perClaimCap: map[Kind]int{
			KindIteration: cfg.PerClaimIterations,
			KindToken:     cfg.PerClaimTokens,
		},
		perClaimRemaining: map[Kind]map[string]int{
			KindIteration: make(map[string]int),
			KindToken:     make(map[string]int),
		},
	}
}

// Consume spends amount of the given kind against both the global cap and
// the per-claim cap (claimID may be empty for run-level work). In soft mode
// consumption never fails; the caller is expected to log the decision.
func (t *Tracker) Consume(kind Kind, claimID string, amount int) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.globalExhausted[kind] {
		if t.mode == model.BudgetModeSoft {
			return Decision{OK: true, Remaining: 0, Exhausted: true}
		}
		return Decision{OK: false, Remaining: 0, Exhausted: true}
	}

	globalLeft := t.globalRemaining[kind]
	claimLeft := t.claimRemainingLocked(kind, claimID)

	if globalLeft < amount {
		// Drain whatever is left so remaining stays monotone, then latch.
		t.globalRemaining[kind] = 0
		t.globalExhausted[kind] = true
		if t.mode == model.BudgetModeSoft {
			return Decision{OK: true, Remaining: 0, Exhausted: true}
		}
		return Decision{OK: false, Remaining: 0, Exhausted: true}
	}

	if claimID != "" && claimLeft < amount {
		if t.mode == model.BudgetModeSoft {
			t.globalRemaining[kind] = globalLeft - amount
			return Decision{OK: true, Remaining: t.globalRemaining[kind]}
		}
		return Decision{OK: false, Remaining: globalLeft}
	}

	t.globalRemaining[kind] = globalLeft - amount
	if claimID != "" {
		t.perClaimRemaining[kind][claimID] = claimLeft - amount
	}

	return Decision{OK: true, Remaining: t.globalRemaining[kind]}
}

// Remaining reports the global budget left for a kind
func (t *Tracker) Remaining(kind Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalRemaining[kind]
}

// Exhausted reports whether the global cap for a kind has been hit.
// Stage 2 checks this after every iteration as a cooperative cancellation
// signal so in-flight per-claim loops stop promptly.
func (t *Tracker) Exhausted(kind Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalExhausted[kind]
}

// Reset restores all budgets to their configured caps (new run only)
func (t *Tracker) Reset(cfg model.BudgetConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mode = cfg.Mode
	t.globalRemaining = map[Kind]int{
		KindIteration: cfg.GlobalIterations,
		KindToken:     cfg.GlobalTokens,
	}
	t.globalExhausted = make(map[Kind]bool)
	t.perClaimCap = map[Kind]int{
		KindIteration: cfg.PerClaimIterations,
		KindToken:     cfg.PerClaimTokens,
	}
	t.perClaimRemaining = map[Kind]map[string]int{
		KindIteration: make(map[string]int),
		KindToken:     make(map[string]int),
	}
}

func (t *Tracker) claimRemainingLocked(kind Kind, claimID string) int {
	if claimID == "" {
		return 0
	}
	if left, seen := t.perClaimRemaining[kind][claimID]; seen {
		return left
	}
	return t.perClaimCap[kind]
}
