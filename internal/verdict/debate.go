package verdict

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
)

// advocateOutput is the strongest evidence-grounded case FOR the claim
type advocateOutput struct {
	Argument         string   `json:"argument"`
	CitedEvidenceIDs []string `json:"cited_evidence_ids"`
}

// challengerOutput is the strongest case AGAINST, with a reading of what
// kind of counter material exists. "counter_type" distinguishes
// evidence-backed contradiction from opinion-only criticism.
type challengerOutput struct {
	Argument         string   `json:"argument"`
	CitedEvidenceIDs []string `json:"cited_evidence_ids"`
	CounterType      string   `json:"counter_type"`              // evidence, opinion, none
	CounterKind      string   `json:"counter_kind,omitempty"`    // legacy alias
}

func (o *challengerOutput) counterType() string {
	if o.CounterType != "" {
		return o.CounterType
	}
	return o.CounterKind
}

// reconcileOutput is the judge's synthesis of both arguments
type reconcileOutput struct {
	TruthPercentage  float64  `json:"truth_percentage"`
	ConfidenceTier   string   `json:"confidence_tier"`
	Reasoning        string   `json:"reasoning"`
	CitedEvidenceIDs []string `json:"cited_evidence_ids"`
	ClaimSupported   bool     `json:"claim_supported"`
	Supported        *bool    `json:"supported,omitempty"` // legacy alias
}

func (o *reconcileOutput) supported() bool {
	if o.Supported != nil {
		return *o.Supported
	}
	return o.ClaimSupported
}

func (o *reconcileOutput) tier() model.ConfidenceTier {
	switch strings.ToUpper(strings.TrimSpace(o.ConfidenceTier)) {
	case "HIGH":
		return model.TierHigh
	case "MEDIUM":
		return model.TierMedium
	case "LOW":
		return model.TierLow
	default:
		return model.TierInsufficient
	}
}

// runDebate executes the full adversarial sequence for one (claim, boundary)
// pair: advocate, challenger, reconciliation, an independent second
// reconciliation for self-consistency, then deterministic validation. Every
// failure path degrades to UNVERIFIED/INSUFFICIENT instead of fabricating.
func (g *Generator) runDebate(ctx context.Context, claim model.Claim, boundary model.Boundary, items []model.EvidenceItem) *debateResult {
	dr := &debateResult{}
	var trace []model.DebateStep

	degrade := func(reason string) *debateResult {
		dr.warnings = append(dr.warnings, model.Warning{
			Code:    model.WarnDebateDegraded,
			Stage:   "verdict",
			ClaimID: claim.ID,
			Message: reason,
		})
		v := insufficientVerdict(claim.ID, boundary.ID, "debate could not complete: "+reason)
		v.DebateTrace = trace
		v.Contested, v.Doubted = contestedFromItems(items), false
		dr.verdict = v
		return dr
	}

	// Step 1: advocate
	var adv advocateOutput
	call, fail := g.gateway.CallStructured(ctx, llm.Request{
		System: debateSystemPrompt,
		Prompt: buildAdvocatePrompt(claim, boundary, items),
		Model:  g.model,
	}, &adv)
	dr.llmCalls++
	dr.tokens += call.TokensUsed
	if fail != nil {
		return degrade(fmt.Sprintf("advocate step failed: %s", fail.Kind))
	}
	trace = append(trace, model.DebateStep{Role: "advocate", Argument: adv.Argument, CitedEvidenceID: adv.CitedEvidenceIDs, Model: call.Model})

	// Step 2: challenger
	var chal challengerOutput
	call, fail = g.gateway.CallStructured(ctx, llm.Request{
		System: debateSystemPrompt,
		Prompt: buildChallengerPrompt(claim, boundary, items, adv.Argument),
		Model:  g.model,
	}, &chal)
	dr.llmCalls++
	dr.tokens += call.TokensUsed
	if fail != nil {
		return degrade(fmt.Sprintf("challenger step failed: %s", fail.Kind))
	}
	trace = append(trace, model.DebateStep{Role: "challenger", Argument: chal.Argument, CitedEvidenceID: chal.CitedEvidenceIDs, Model: call.Model})

	// Step 3: reconciliation
	first, res, fail := g.reconcile(ctx, claim, boundary, items, adv, chal, "")
	dr.llmCalls++
	dr.tokens += res.TokensUsed
	if fail != nil {
		return degrade(fmt.Sprintf("reconciliation failed: %s", fail.Kind))
	}
	trace = append(trace, model.DebateStep{Role: "reconciliation", Argument: first.Reasoning, CitedEvidenceID: first.CitedEvidenceIDs, Model: res.Model})

	// Step 4: independent second pass; disagreement beyond the threshold is
	// an instability signal, handled by demotion rather than averaging away.
	second, res, fail := g.reconcile(ctx, claim, boundary, items, adv, chal, "")
	dr.llmCalls++
	dr.tokens += res.TokensUsed

	spread := 0.0
	tier := first.tier()
	if fail == nil {
		spread = math.Abs(first.TruthPercentage - second.TruthPercentage)
		trace = append(trace, model.DebateStep{Role: "self_consistency", Argument: fmt.Sprintf("second pass scored %.0f (spread %.0f)", second.TruthPercentage, spread), Model: res.Model})
		if spread > g.cfg.SpreadDemotionAbove {
			tier = tier.Demote()
		}
	} else {
		// A failed consistency check cannot confirm stability
		tier = tier.Demote()
		trace = append(trace, model.DebateStep{Role: "self_consistency", Argument: "second pass unavailable; confidence demoted"})
	}

	// Step 5: deterministic validation
	chosen := first
	violations := validate(claim, items, chosen)
	if len(violations) > 0 {
		trace = append(trace, model.DebateStep{Role: "validation", Argument: "violations: " + strings.Join(violations, "; ")})
		corrected, res, fail := g.reconcile(ctx, claim, boundary, items, adv, chal, strings.Join(violations, "; "))
		dr.llmCalls++
		dr.tokens += res.TokensUsed
		if fail == nil && len(validate(claim, items, corrected)) == 0 {
			chosen = corrected
			tier = chosen.tier()
			if spread > g.cfg.SpreadDemotionAbove {
				tier = tier.Demote()
			}
			trace = append(trace, model.DebateStep{Role: "validation", Argument: "corrective reconciliation accepted", Model: res.Model})
		} else {
			// Persistent violations: report honestly rather than repair silently
			tier = model.TierInsufficient
			trace = append(trace, model.DebateStep{Role: "validation", Argument: "violations persisted; confidence set to insufficient"})
		}
	} else {
		trace = append(trace, model.DebateStep{Role: "validation", Argument: "passed"})
	}

	pct := clampPct(chosen.TruthPercentage)
	label := model.LabelForPercentage(pct)
	if tier == model.TierInsufficient {
		label = model.VerdictUnverified
	}

	contested, doubted := counterFlags(items, &chal)

	dr.verdict = model.ClaimVerdict{
		ClaimID:               claim.ID,
		BoundaryID:            boundary.ID,
		Label:                 label,
		TruthPercentage:       pct,
		Tier:                  tier,
		Reasoning:             chosen.Reasoning,
		DebateTrace:           trace,
		SelfConsistencySpread: spread,
		CitedEvidenceIDs:      keepKnown(chosen.CitedEvidenceIDs, items),
		Contested:             contested,
		Doubted:               doubted,
	}
	return dr
}

// reconcile runs the judge step; correction is non-empty on the single
// re-run after a validation failure
func (g *Generator) reconcile(ctx context.Context, claim model.Claim, boundary model.Boundary, items []model.EvidenceItem, adv advocateOutput, chal challengerOutput, correction string) (reconcileOutput, llm.CallResult, *llm.CallFailure) {
	var out reconcileOutput
	call, fail := g.gateway.CallStructured(ctx, llm.Request{
		System: debateSystemPrompt,
		Prompt: buildReconcilePrompt(claim, boundary, items, adv, chal, correction),
		Model:  g.model,
	}, &out)
	return out, call, fail
}

// validate applies the deterministic checks no model output can waive:
// cited evidence must exist in the boundary, and the stated direction must
// agree with the score.
func validate(claim model.Claim, items []model.EvidenceItem, out reconcileOutput) []string {
	var violations []string

	if len(keepKnown(out.CitedEvidenceIDs, items)) == 0 && out.tier() != model.TierInsufficient {
		violations = append(violations, "no cited evidence id matches the boundary's evidence")
	}

	if out.supported() != (out.TruthPercentage >= 50) {
		violations = append(violations, fmt.Sprintf("stated direction (supported=%v) contradicts the score %.0f", out.supported(), out.TruthPercentage))
	}

	if claim.HarmPotential && out.tier() == model.TierHigh && len(keepKnown(out.CitedEvidenceIDs, items)) < 2 {
		violations = append(violations, "high confidence on a harm-potential claim requires at least two cited sources")
	}

	return violations
}

// keepKnown drops citation IDs that do not exist in the boundary's evidence
func keepKnown(ids []string, items []model.EvidenceItem) []string {
	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}
	var kept []string
	for _, id := range ids {
		if known[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

// counterFlags derives contested/doubted. Contradicting evidence items make
// the claim contested regardless of the challenger's self-report; the
// challenger's reading only upgrades or classifies what the items show.
func counterFlags(items []model.EvidenceItem, chal *challengerOutput) (contested, doubted bool) {
	contested = contestedFromItems(items)
	switch chal.counterType() {
	case "evidence":
		contested = true
	case "opinion":
		doubted = true
	}
	return contested, doubted
}

func contestedFromItems(items []model.EvidenceItem) bool {
	for _, item := range items {
		if item.Stance == model.StanceContradicts {
			return true
		}
	}
	return false
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
