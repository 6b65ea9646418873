package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veridex/veridex/internal/budget"
	"github.com/veridex/veridex/internal/evidence"
	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
	"golang.org/x/sync/errgroup"
)

// Researcher runs the claim-driven evidence-gathering loop. Claims are
// researched concurrently up to a bounded limit; each claim's loop owns its
// evidence slice exclusively and results are merged only after the loop ends.
// The budget tracker is the one piece of shared mutable state and doubles as
// a cooperative cancellation signal, checked on every iteration.
type Researcher struct {
	gateway *llm.Gateway
	svc     *evidence.Service
	oracle  evidence.Oracle
	tracker *budget.Tracker
	cfg     model.ResearchConfig
	model   string

	// sleep is injectable for retry/backoff tests
	sleep func(time.Duration)
}

// New creates a researcher
func New(gateway *llm.Gateway, svc *evidence.Service, oracle evidence.Oracle, tracker *budget.Tracker, cfg model.ResearchConfig, llmModel string) *Researcher {
	return &Researcher{
		gateway: gateway,
		svc:     svc,
		oracle:  oracle,
		tracker: tracker,
		cfg:     cfg,
		model:   llmModel,
		sleep:   time.Sleep,
	}
}

// Result is the Stage 2 output
type Result struct {
	Pool       *model.EvidencePool
	Warnings   []model.Warning
	Iterations int
	LLMCalls   int
	TokensUsed int
}

// claimOutcome is one claim loop's private output, merged after completion
type claimOutcome struct {
	claimID    string
	items      []model.EvidenceItem
	warnings   []model.Warning
	iterations int
	llmCalls   int
	tokens     int
}

// Research gathers evidence for every claim. It never returns an error:
// per-claim failures degrade into warnings and empty pools, which the
// verdict stage turns into INSUFFICIENT outcomes.
func (r *Researcher) Research(ctx context.Context, claims []model.Claim) *Result {
	result := &Result{Pool: model.NewEvidencePool()}

	concurrency := r.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, claim := range claims {
		claim := claim
		g.Go(func() error {
			outcome := r.researchClaim(gctx, claim)
			mu.Lock()
			defer mu.Unlock()
			for _, item := range outcome.items {
				result.Pool.Add(item)
			}
			result.Warnings = append(result.Warnings, outcome.warnings...)
			result.Iterations += outcome.iterations
			result.LLMCalls += outcome.llmCalls
			result.TokensUsed += outcome.tokens
			return nil
		})
	}
	_ = g.Wait()

	if r.tracker.Exhausted(budget.KindIteration) {
		result.Warnings = append(result.Warnings, model.Warning{
			Code:    model.WarnBudgetExhausted,
			Stage:   "research",
			Message: "global iteration budget exhausted; research stopped early",
		})
	}

	return result
}

// researchClaim runs one claim's loop: supporting searches until the
// evidence minimum is met, then the reserved contradiction searches.
// The contradiction pass is mandatory, not best-effort.
func (r *Researcher) researchClaim(ctx context.Context, claim model.Claim) *claimOutcome {
	out := &claimOutcome{claimID: claim.ID}

	queries := supportQueries(claim)
	attempted := 0

	for i := 0; qualifyingEvidence(out.items) < r.cfg.MinEvidencePerClaim && i < len(queries); i++ {
		if !r.spendIteration(claim.ID, out) {
			return out
		}
		attempted++
		r.runQuery(ctx, claim, queries[i], false, out)
	}

	for i := 0; i < r.cfg.ContradictionIterations; i++ {
		if !r.spendIteration(claim.ID, out) {
			return out
		}
		attempted++
		r.runQuery(ctx, claim, contradictionQuery(claim, i), true, out)
	}

	if attempted > 0 && len(out.items) == 0 {
		out.warnings = append(out.warnings, model.Warning{
			Code:    model.WarnSourceAcquisitionCollapse,
			Stage:   "research",
			ClaimID: claim.ID,
			Message: fmt.Sprintf("no usable sources after %d attempts", attempted),
		})
	} else if n := qualifyingEvidence(out.items); n < r.cfg.MinEvidencePerClaim {
		out.warnings = append(out.warnings, model.Warning{
			Code:    model.WarnEvidenceShortfall,
			Stage:   "research",
			ClaimID: claim.ID,
			Message: fmt.Sprintf("gathered %d of %d minimum qualifying evidence items", n, r.cfg.MinEvidencePerClaim),
		})
	}

	return out
}

// qualifyingEvidence counts items that satisfy the per-claim minimum.
// Syndicated copies of an already-gathered source add nothing to
// corroboration, so derivatives never count toward sufficiency.
func qualifyingEvidence(items []model.EvidenceItem) int {
	n := 0
	for _, item := range items {
		if !item.IsDerivative {
			n++
		}
	}
	return n
}

// spendIteration consumes one iteration and reports whether the loop may
// continue. Budget denial ends the loop quietly; the run-level warning is
// attached once by Research.
func (r *Researcher) spendIteration(claimID string, out *claimOutcome) bool {
	d := r.tracker.Consume(budget.KindIteration, claimID, 1)
	if !d.OK {
		return false
	}
	out.iterations++
	return true
}

// runQuery executes one search-gather-extract iteration for a claim
func (r *Researcher) runQuery(ctx context.Context, claim model.Claim, query string, contradiction bool, out *claimOutcome) {
	docs, err := r.gatherWithRetry(ctx, query)
	if err != nil {
		// Persistent failure for one query is recorded by the caller's
		// collapse/shortfall accounting; it never aborts the claim loop.
		return
	}

	facts, call, fail := r.extractFacts(ctx, claim, docs, contradiction)
	out.llmCalls++
	out.tokens += call.TokensUsed
	r.tracker.Consume(budget.KindToken, claim.ID, call.TokensUsed)
	if fail != nil {
		return
	}

	for _, fact := range facts {
		item := model.EvidenceItem{
			ID:                 uuid.NewString(),
			SourceURL:          fact.SourceURL,
			ExcerptText:        fact.Excerpt,
			SupportingClaimIDs: []string{claim.ID},
			Stance:             fact.stance(),
			Scope:              fact.scope(),
			FromContradiction:  contradiction,
			Reliability:        r.oracle.Evaluate(ctx, fact.SourceURL),
		}
		item.IsDerivative = isDerivative(item, out.items)
		out.items = append(out.items, item)
	}
}

// gatherWithRetry retries transport failures with exponential backoff.
// ErrNoResults is a clean outcome, never retried.
func (r *Researcher) gatherWithRetry(ctx context.Context, query string) ([]evidence.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.FetchRetries; attempt++ {
		if attempt > 0 {
			r.sleep(r.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1)))
		}
		docs, err := r.svc.Gather(ctx, query)
		if err == nil {
			return docs, nil
		}
		if errors.Is(err, evidence.ErrNoResults) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("gather after %d retries: %w", r.cfg.FetchRetries, lastErr)
}
