package aggregate

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/veridex/veridex/internal/model"
)

// boundaryDisagreementSpread is the cross-boundary score gap, in percentage
// points, above which the same claim is reported as boundary-dependent
const boundaryDisagreementSpread = 25.0

// Result is the Stage 5 output. Compute is pure: same inputs, same output,
// no model calls and no clock reads.
type Result struct {
	Assessment *model.AggregatedAssessment
	Warnings   []model.Warning
}

// Compute folds per-claim verdicts into one article-level assessment.
// INSUFFICIENT verdicts are excluded from the average rather than dragged
// toward the middle; a failing quality gate is surfaced, never discarded.
func Compute(claims []model.Claim, boundaries []model.Boundary, verdicts []model.ClaimVerdict, pool *model.EvidencePool, cfg model.AggregateConfig) *Result {
	res := &Result{Assessment: &model.AggregatedAssessment{}}
	claimByID := make(map[string]model.Claim, len(claims))
	for _, c := range claims {
		claimByID[c.ID] = c
	}

	var weightSum, scoreSum float64
	for _, v := range verdicts {
		w := effectiveWeight(v, claimByID[v.ClaimID], pool, cfg)
		weightSum += w
		scoreSum += w * v.TruthPercentage
	}

	if weightSum > 0 {
		pct := scoreSum / weightSum
		res.Assessment.OverallTruthPercentage = pct
		res.Assessment.OverallLabel = model.LabelForPercentage(pct)
	} else {
		res.Assessment.OverallTruthPercentage = 50
		res.Assessment.OverallLabel = model.VerdictUnverified
	}

	res.Assessment.Narrative.BoundaryDisagreements = boundaryDisagreements(claims, boundaries, verdicts)
	res.Assessment.TriangulationScore = triangulation(claims, verdicts, pool, cfg)
	res.Assessment.CoverageMatrix = coverageMatrix(claims, boundaries, verdicts, pool)

	gate := qualityGate(claims, verdicts, pool, cfg, res.Assessment.OverallTruthPercentage)
	res.Assessment.QualityGate = gate
	if !gate.Passed {
		for _, check := range gate.Checks {
			if !check.Passed {
				res.Warnings = append(res.Warnings, model.Warning{
					Code:    model.WarnGate4Failed,
					Stage:   "aggregate",
					Message: fmt.Sprintf("quality gate check %q failed: observed %.2f, required %.2f", check.Name, check.Observed, check.Required),
				})
			}
		}
	}

	return res
}

// effectiveWeight is the deliberate weighting policy for one verdict:
//
//	1.0 x central x harm x contested x tier x reliability
//
// Contested (evidence-backed counter-claims) down-weights hard; doubted
// (opinion-only criticism) does not change the weight at all.
func effectiveWeight(v model.ClaimVerdict, claim model.Claim, pool *model.EvidencePool, cfg model.AggregateConfig) float64 {
	w := 1.0
	if claim.IsCentral {
		w *= cfg.CentralMultiplier
	}
	if claim.HarmPotential {
		w *= cfg.HarmMultiplier
	}
	if v.Contested {
		w *= cfg.ContestedMultiplier
	}
	w *= v.Tier.Weight()
	w *= reliabilityFactor(v.CitedEvidenceIDs, pool)
	return w
}

// reliabilityFactor averages the cited sources' reliability, pulled toward
// neutral by the oracle's own confidence: 0.5 + (score - 0.5) * confidence.
// Unknown sources therefore weigh exactly neutral, never punished.
func reliabilityFactor(citedIDs []string, pool *model.EvidencePool) float64 {
	if len(citedIDs) == 0 || pool == nil {
		return 0.5
	}
	var sum float64
	n := 0
	for _, id := range citedIDs {
		item, ok := pool.Get(id)
		if !ok {
			continue
		}
		r := item.Reliability
		sum += 0.5 + (r.Score-0.5)*r.Confidence
		n++
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// boundaryDisagreements reports claims whose verdicts diverge materially
// across boundaries. These are findings, not errors: "true under frame A,
// false under frame B" is the whole point of boundary-aware assessment.
func boundaryDisagreements(claims []model.Claim, boundaries []model.Boundary, verdicts []model.ClaimVerdict) []string {
	labelByBoundary := make(map[string]string, len(boundaries))
	for _, b := range boundaries {
		labelByBoundary[b.ID] = b.Label
	}

	type span struct {
		min, max   float64
		minB, maxB string
		n          int
	}
	spans := make(map[string]*span)
	for _, v := range verdicts {
		if v.Tier == model.TierInsufficient {
			continue
		}
		s, ok := spans[v.ClaimID]
		if !ok {
			s = &span{min: v.TruthPercentage, max: v.TruthPercentage, minB: v.BoundaryID, maxB: v.BoundaryID}
			spans[v.ClaimID] = s
		}
		if v.TruthPercentage < s.min {
			s.min, s.minB = v.TruthPercentage, v.BoundaryID
		}
		if v.TruthPercentage > s.max {
			s.max, s.maxB = v.TruthPercentage, v.BoundaryID
		}
		s.n++
	}

	var out []string
	for _, claim := range claims {
		s, ok := spans[claim.ID]
		if !ok || s.n < 2 || s.max-s.min <= boundaryDisagreementSpread {
			continue
		}
		out = append(out, fmt.Sprintf("%q scores %.0f under %q but %.0f under %q",
			claim.Text, s.max, labelByBoundary[s.maxB], s.min, labelByBoundary[s.minB]))
	}
	return out
}

// triangulation scores 0..1 how well the assessment is corroborated:
// per claim, independent non-derivative source breadth times cross-boundary
// agreement, averaged over all claims
func triangulation(claims []model.Claim, verdicts []model.ClaimVerdict, pool *model.EvidencePool, cfg model.AggregateConfig) float64 {
	if len(claims) == 0 {
		return 0
	}
	// Breadth is measured against the MEDIUM bar: the corroboration a
	// middling-confidence verdict is expected to carry.
	minSources := cfg.Gate4.Medium.MinSources
	if minSources < 1 {
		minSources = 1
	}

	pctsByClaim := make(map[string][]float64)
	for _, v := range verdicts {
		if v.Tier == model.TierInsufficient {
			continue
		}
		pctsByClaim[v.ClaimID] = append(pctsByClaim[v.ClaimID], v.TruthPercentage)
	}

	var sum float64
	for _, claim := range claims {
		breadth := float64(independentSources(claim.ID, pool)) / float64(minSources)
		if breadth > 1 {
			breadth = 1
		}

		agreement := 1.0
		if pcts := pctsByClaim[claim.ID]; len(pcts) >= 2 {
			minP, maxP := pcts[0], pcts[0]
			for _, p := range pcts[1:] {
				if p < minP {
					minP = p
				}
				if p > maxP {
					maxP = p
				}
			}
			agreement = 1 - (maxP-minP)/100
		} else if len(pcts) == 0 {
			agreement = 0
		}

		sum += breadth * agreement
	}
	return sum / float64(len(claims))
}

// independentSources counts distinct hosts behind non-derivative evidence
// for the claim. Syndicated copies of one report corroborate nothing.
func independentSources(claimID string, pool *model.EvidencePool) int {
	if pool == nil {
		return 0
	}
	hosts := make(map[string]bool)
	for _, item := range pool.ForClaim(claimID) {
		if item.IsDerivative {
			continue
		}
		hosts[hostOf(item.SourceURL)] = true
	}
	delete(hosts, "")
	return len(hosts)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// qualityGate runs the final checks. Failing the gate keeps the assessment
// and attaches the failure; silence would hide exactly what the reader
// needs to know. Each confidence tier carries its own bar: a HIGH verdict
// must be corroborated more strongly than a LOW one.
func qualityGate(claims []model.Claim, verdicts []model.ClaimVerdict, pool *model.EvidencePool, cfg model.AggregateConfig, overallPct float64) model.QualityGateResult {
	gate := model.QualityGateResult{Passed: true}

	sourcesByClaim := make(map[string]int, len(claims))
	minObserved := -1
	for _, claim := range claims {
		n := independentSources(claim.ID, pool)
		sourcesByClaim[claim.ID] = n
		if minObserved < 0 || n < minObserved {
			minObserved = n
		}
	}
	if minObserved < 0 {
		minObserved = 0
	}

	// Floor: every claim needs at least one independent source, whatever
	// tier its verdicts reached
	gate.Checks = append(gate.Checks, model.GateCheck{
		Name:     "independent_sources_per_claim",
		Observed: float64(minObserved),
		Required: 1,
		Passed:   minObserved >= 1,
	})

	for _, tier := range []model.ConfidenceTier{model.TierHigh, model.TierMedium, model.TierLow} {
		var tierVerdicts []model.ClaimVerdict
		for _, v := range verdicts {
			if v.Tier == tier {
				tierVerdicts = append(tierVerdicts, v)
			}
		}
		if len(tierVerdicts) == 0 {
			continue
		}
		threshold := cfg.Gate4.For(tier)
		name := strings.ToLower(string(tier))

		minSources := -1
		for _, v := range tierVerdicts {
			if n := sourcesByClaim[v.ClaimID]; minSources < 0 || n < minSources {
				minSources = n
			}
		}
		gate.Checks = append(gate.Checks, model.GateCheck{
			Name:     "independent_sources_" + name + "_tier",
			Observed: float64(minSources),
			Required: float64(threshold.MinSources),
			Passed:   minSources >= threshold.MinSources,
		})

		agreeing := 0
		for _, v := range tierVerdicts {
			if (v.TruthPercentage >= 50) == (overallPct >= 50) {
				agreeing++
			}
		}
		agreement := float64(agreeing) / float64(len(tierVerdicts))
		gate.Checks = append(gate.Checks, model.GateCheck{
			Name:     "direction_agreement_" + name + "_tier",
			Observed: agreement,
			Required: threshold.MinAgreement,
			Passed:   agreement >= threshold.MinAgreement,
		})
	}

	for _, check := range gate.Checks {
		if !check.Passed {
			gate.Passed = false
		}
	}
	return gate
}

// coverageMatrix records evidence density and assessment status for every
// (claim, boundary) cell. An unassessed cell stays in the matrix: "not
// assessed here" is information, not absence.
func coverageMatrix(claims []model.Claim, boundaries []model.Boundary, verdicts []model.ClaimVerdict, pool *model.EvidencePool) []model.CoverageCell {
	assessed := make(map[string]bool, len(verdicts))
	for _, v := range verdicts {
		assessed[v.ClaimID+"/"+v.BoundaryID] = true
	}

	var cells []model.CoverageCell
	for _, claim := range claims {
		for _, boundary := range boundaries {
			count := 0
			if pool != nil {
				for _, item := range pool.ForClaim(claim.ID) {
					if boundary.Contains(item.ID) {
						count++
					}
				}
			}
			cells = append(cells, model.CoverageCell{
				ClaimID:       claim.ID,
				BoundaryID:    boundary.ID,
				EvidenceCount: count,
				Assessed:      assessed[claim.ID+"/"+boundary.ID],
			})
		}
	}
	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].ClaimID != cells[j].ClaimID {
			return cells[i].ClaimID < cells[j].ClaimID
		}
		return cells[i].BoundaryID < cells[j].BoundaryID
	})
	return cells
}
