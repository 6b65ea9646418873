package budget

import (
	"sync"
	"testing"

	"github.com/veridex/veridex/internal/model"
)

func hardConfig(global, perClaim int) model.BudgetConfig {
	return model.BudgetConfig{
		Mode:               model.BudgetModeHard,
		GlobalIterations:   global,
		PerClaimIterations: perClaim,
		GlobalTokens:       1000,
		PerClaimTokens:     500,
	}
}

func TestTracker_RemainingIsMonotone(t *testing.T) {
	tracker := NewTracker(hardConfig(10, 10))

	prev := tracker.Remaining(KindIteration)
	for i := 0; i < 15; i++ {
		d := tracker.Consume(KindIteration, "c1", 1)
		if d.Remaining > prev {
			t.Errorf("remaining increased from %d to %d at consume %d", prev, d.Remaining, i)
		}
		prev = d.Remaining
	}
}

func TestTracker_ExhaustionIsSticky(t *testing.T) {
	tracker := NewTracker(hardConfig(3, 100))

	for i := 0; i < 3; i++ {
		if d := tracker.Consume(KindIteration, "", 1); !d.OK {
			t.Fatalf("consume %d should succeed", i)
		}
	}

	first := tracker.Consume(KindIteration, "", 1)
	if first.OK {
		t.Fatal("expected denial once global cap is hit")
	}
	if !first.Exhausted {
		t.Error("expected exhausted flag on the denying decision")
	}

	// No refill mid-run: every later same-kind consume must also fail.
	for i := 0; i < 5; i++ {
		if d := tracker.Consume(KindIteration, "", 1); d.OK {
			t.Errorf("consume after exhaustion succeeded at attempt %d", i)
		}
	}

	if !tracker.Exhausted(KindIteration) {
		t.Error("Exhausted should report true after the cap is hit")
	}
}

func TestTracker_KindsAreIndependent(t *testing.T) {
	tracker := NewTracker(hardConfig(1, 10))

	tracker.Consume(KindIteration, "", 1)
	tracker.Consume(KindIteration, "", 1) // exhausts iterations

	if d := tracker.Consume(KindToken, "c1", 100); !d.OK {
		t.Error("token budget should be unaffected by iteration exhaustion")
	}
}

func TestTracker_PerClaimCap(t *testing.T) {
	tracker := NewTracker(hardConfig(100, 2))

	if d := tracker.Consume(KindIteration, "c1", 1); !d.OK {
		t.Fatal("first per-claim consume should succeed")
	}
	if d := tracker.Consume(KindIteration, "c1", 1); !d.OK {
		t.Fatal("second per-claim consume should succeed")
	}
	if d := tracker.Consume(KindIteration, "c1", 1); d.OK {
		t.Error("third consume should be denied by the per-claim cap")
	}

	// A different claim still has its own allowance.
	if d := tracker.Consume(KindIteration, "c2", 1); !d.OK {
		t.Error("per-claim cap on c1 should not affect c2")
	}
}

func TestTracker_SoftModeNeverDenies(t *testing.T) {
	cfg := hardConfig(2, 1)
	cfg.Mode = model.BudgetModeSoft
	tracker := NewTracker(cfg)

	for i := 0; i < 6; i++ {
		if d := tracker.Consume(KindIteration, "c1", 1); !d.OK {
			t.Errorf("soft mode denied consumption at attempt %d", i)
		}
	}
}

func TestTracker_ConcurrentConsumeDoesNotOverrun(t *testing.T) {
	const cap = 50
	tracker := NewTracker(hardConfig(cap, cap))

	var wg sync.WaitGroup
	granted := make(chan struct{}, cap*4)

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < cap; i++ {
				if d := tracker.Consume(KindIteration, "", 1); d.OK {
					granted <- struct{}{}
				}
			}
		}()
	}
	wg.Wait()
	close(granted)

	total := 0
	for range granted {
		total++
	}
	if total != cap {
		t.Errorf("expected exactly %d grants under concurrency, got %d", cap, total)
	}
}

func TestTracker_ResetRestoresBudget(t *testing.T) {
	cfg := hardConfig(1, 1)
	tracker := NewTracker(cfg)

	tracker.Consume(KindIteration, "", 1)
	tracker.Consume(KindIteration, "", 1)
	if !tracker.Exhausted(KindIteration) {
		t.Fatal("setup: expected exhaustion")
	}

	tracker.Reset(cfg)
	if tracker.Exhausted(KindIteration) {
		t.Error("reset should clear exhaustion for a new run")
	}
	if d := tracker.Consume(KindIteration, "", 1); !d.OK {
		t.Error("consume after reset should succeed")
	}
}
