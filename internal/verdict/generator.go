package verdict

import (
	"context"

	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
	"github.com/veridex/veridex/internal/worker"
)

// Generator produces one verdict per (claim, boundary) pair via an
// adversarial debate. Debates are independent across pairs and run on a
// bounded worker pool when parallel generation is enabled.
type Generator struct {
	gateway *llm.Gateway
	cfg     model.VerdictConfig
	model   string
}

// New creates a generator
func New(gateway *llm.Gateway, cfg model.VerdictConfig, llmModel string) *Generator {
	return &Generator{gateway: gateway, cfg: cfg, model: llmModel}
}

// Result is the Stage 4 output
type Result struct {
	Verdicts   []model.ClaimVerdict
	Warnings   []model.Warning
	Debates    int
	LLMCalls   int
	TokensUsed int
}

// debateJob pairs one claim with one boundary's claim-relevant evidence
type debateJob struct {
	gen      *Generator
	claim    model.Claim
	boundary model.Boundary
	items    []model.EvidenceItem
}

// debateResult carries a finished debate back from the pool
type debateResult struct {
	verdict  model.ClaimVerdict
	warnings []model.Warning
	llmCalls int
	tokens   int
	err      error
}

func (r *debateResult) GetError() error { return r.err }

func (j *debateJob) Execute(ctx context.Context) worker.Result {
	return j.gen.runDebate(ctx, j.claim, j.boundary, j.items)
}

// Generate runs every debate and emits UNVERIFIED/INSUFFICIENT verdicts for
// claims that have no evidence in any boundary. A failed debate degrades to
// an UNVERIFIED verdict; it never blocks the other pairs.
func (g *Generator) Generate(ctx context.Context, claims []model.Claim, boundaries []model.Boundary, pool *model.EvidencePool) *Result {
	res := &Result{}

	var jobs []*debateJob
	covered := make(map[string]bool)

	for _, claim := range claims {
		for _, boundary := range boundaries {
			items := boundaryItemsForClaim(pool, boundary, claim.ID)
			if len(items) == 0 {
				continue
			}
			covered[claim.ID] = true
			jobs = append(jobs, &debateJob{gen: g, claim: claim, boundary: boundary, items: items})
		}
	}

	for _, claim := range claims {
		if !covered[claim.ID] {
			res.Verdicts = append(res.Verdicts, insufficientVerdict(claim.ID, "", "no usable evidence was gathered for this claim"))
		}
	}

	res.Debates = len(jobs)

	if g.cfg.ParallelDebates && len(jobs) > 1 {
		wp := worker.NewPool(g.cfg.Concurrency)
		wp.Start(ctx)
		for _, job := range jobs {
			wp.Submit(job)
		}
		for _, r := range wp.Wait() {
			collect(res, r.(*debateResult))
		}
	} else {
		for _, job := range jobs {
			collect(res, job.Execute(ctx).(*debateResult))
		}
	}

	return res
}

func collect(res *Result, dr *debateResult) {
	res.Verdicts = append(res.Verdicts, dr.verdict)
	res.Warnings = append(res.Warnings, dr.warnings...)
	res.LLMCalls += dr.llmCalls
	res.TokensUsed += dr.tokens
}

// boundaryItemsForClaim returns the boundary's members that bear on the claim
func boundaryItemsForClaim(pool *model.EvidencePool, boundary model.Boundary, claimID string) []model.EvidenceItem {
	var items []model.EvidenceItem
	for _, item := range pool.ForClaim(claimID) {
		if boundary.Contains(item.ID) {
			items = append(items, item)
		}
	}
	return items
}

// insufficientVerdict is the degrade path: never fabricate, never block
func insufficientVerdict(claimID, boundaryID, reasoning string) model.ClaimVerdict {
	return model.ClaimVerdict{
		ClaimID:         claimID,
		BoundaryID:      boundaryID,
		Label:           model.VerdictUnverified,
		TruthPercentage: 50,
		Tier:            model.TierInsufficient,
		Reasoning:       reasoning,
	}
}
