package cluster

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
)

// Clusterer groups the evidence pool into assessment boundaries: coherent
// evaluative frames (same methodology, timeframe, jurisdiction) within
// which evidence is mutually comparable. Boundaries emerge from the
// evidence; nothing is pre-declared before the pool exists.
type Clusterer struct {
	gateway *llm.Gateway
	cfg     model.ClusterConfig
	model   string
}

// New creates a clusterer
func New(gateway *llm.Gateway, cfg model.ClusterConfig, llmModel string) *Clusterer {
	return &Clusterer{gateway: gateway, cfg: cfg, model: llmModel}
}

// Result is the Stage 3 output
type Result struct {
	Boundaries []model.Boundary
	Warnings   []model.Warning
	LLMCalls   int
	TokensUsed int
}

// candidate is a scope-compatible evidence grouping awaiting coherence review
type candidate struct {
	key       string
	items     []model.EvidenceItem
	label     string
	coherence float64
	mergeWith []string // keys the coherence review judged near-duplicates
}

// Cluster groups the pool into capped boundaries. Clustering never fails
// the pipeline: an LLM failure falls back to one default boundary holding
// all evidence, with a warning.
func (c *Clusterer) Cluster(ctx context.Context, pool *model.EvidencePool) *Result {
	res := &Result{}

	if len(pool.Items) == 0 {
		return res
	}

	candidates := groupByScope(pool.Items)

	// Mutually compatible evidence collapses to exactly one boundary;
	// no coherence call is needed to avoid spurious splitting.
	if len(candidates) == 1 {
		res.Boundaries = []model.Boundary{toBoundary(candidates[0], 1.0, singleLabel(candidates[0]))}
		return res
	}

	assessed, call, fail := c.assessCoherence(ctx, candidates)
	res.LLMCalls++
	res.TokensUsed += call.TokensUsed
	if fail != nil {
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnClusteringFallback,
			Stage:   "cluster",
			Message: fmt.Sprintf("coherence assessment failed (%s); using single default boundary", fail.Kind),
		})
		res.Boundaries = []model.Boundary{defaultBoundary(pool.Items)}
		return res
	}

	merged := applyMerges(assessed)
	merged = mergeSharedSources(merged, c.cfg.MergeOverlapAbove)
	merged = foldIncoherent(merged, c.cfg.MinCoherence)
	merged = enforceCap(merged, c.cfg.MaxBoundaries)

	for _, cand := range merged {
		res.Boundaries = append(res.Boundaries, toBoundary(cand, cand.coherence, cand.label))
	}
	return res
}

// groupByScope proposes candidates by compatible evidence scope, in a
// stable order
func groupByScope(items []model.EvidenceItem) []candidate {
	byKey := make(map[string]*candidate)
	var order []string

	for _, item := range items {
		key := item.Scope.Key()
		if _, seen := byKey[key]; !seen {
			byKey[key] = &candidate{key: key}
			order = append(order, key)
		}
		byKey[key].items = append(byKey[key].items, item)
	}

	out := make([]candidate, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// applyMerges folds candidates the coherence review judged near-duplicates.
// Merge targets chain through union-find style resolution so A->B, B->C
// collapses all three.
func applyMerges(cands []candidate) []candidate {
	byKey := make(map[string]*candidate, len(cands))
	var order []string
	for i := range cands {
		byKey[cands[i].key] = &cands[i]
		order = append(order, cands[i].key)
	}

	mergedInto := make(map[string]string)
	resolve := func(key string) string {
		for {
			next, ok := mergedInto[key]
			if !ok {
				return key
			}
			key = next
		}
	}

	for _, key := range order {
		cand := byKey[key]
		for _, otherKey := range cand.mergeWith {
			if _, ok := byKey[otherKey]; !ok || otherKey == key {
				continue
			}
			src, dst := resolve(otherKey), resolve(key)
			if src == dst {
				continue
			}
			mergedInto[src] = dst
		}
	}

	var out []candidate
	for _, key := range order {
		if resolve(key) != key {
			continue
		}
		surviving := *byKey[key]
		for _, otherKey := range order {
			if otherKey != key && resolve(otherKey) == key {
				absorbed := byKey[otherKey]
				surviving.items = append(surviving.items, absorbed.items...)
				if absorbed.coherence < surviving.coherence {
					surviving.coherence = absorbed.coherence
				}
			}
		}
		out = append(out, surviving)
	}
	return out
}

// hostsOf returns the candidate's distinct source hosts
func hostsOf(cand candidate) map[string]bool {
	hosts := make(map[string]bool)
	for _, item := range cand.items {
		u, err := url.Parse(item.SourceURL)
		if err != nil {
			continue
		}
		h := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if h != "" {
			hosts[h] = true
		}
	}
	return hosts
}

// sourceOverlap is the fraction of shared source hosts relative to the
// smaller candidate. Scope groups never share evidence items, so frame
// similarity shows up in shared sources instead.
func sourceOverlap(a, b candidate) float64 {
	ha, hb := hostsOf(a), hostsOf(b)
	if len(ha) == 0 || len(hb) == 0 {
		return 0
	}
	small, large := ha, hb
	if len(hb) < len(ha) {
		small, large = hb, ha
	}
	shared := 0
	for h := range small {
		if large[h] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// absorb merges src's evidence into dst, keeping the weaker coherence score
func absorb(dst, src candidate) candidate {
	dst.items = append(dst.items, src.items...)
	if src.coherence < dst.coherence {
		dst.coherence = src.coherence
	}
	return dst
}

// closestNeighbor picks the candidate sharing the most sources with
// cands[idx], breaking ties toward the lowest coherence
func closestNeighbor(cands []candidate, idx int) int {
	best, bestOverlap := -1, -1.0
	for i := range cands {
		if i == idx {
			continue
		}
		ov := sourceOverlap(cands[idx], cands[i])
		switch {
		case ov > bestOverlap:
			best, bestOverlap = i, ov
		case ov == bestOverlap && best >= 0 && cands[i].coherence < cands[best].coherence:
			best = i
		}
	}
	return best
}

// mergeSharedSources folds frames drawn from essentially the same sources,
// even when the coherence review did not flag them as duplicates
func mergeSharedSources(cands []candidate, above float64) []candidate {
	if above <= 0 || above > 1 {
		return cands
	}
	for {
		merged := false
		for i := 0; i < len(cands) && !merged; i++ {
			for j := i + 1; j < len(cands); j++ {
				if sourceOverlap(cands[i], cands[j]) >= above {
					cands[i] = absorb(cands[i], cands[j])
					cands = append(cands[:j], cands[j+1:]...)
					merged = true
					break
				}
			}
		}
		if !merged {
			return cands
		}
	}
}

// foldIncoherent merges groups that failed the coherence floor into their
// closest neighbor: a group the review distrusts does not stand as its own
// assessment frame. The surviving group keeps its own score; the folded
// group's score was already judged unreliable.
func foldIncoherent(cands []candidate, minCoherence float64) []candidate {
	if minCoherence <= 0 {
		return cands
	}
	for len(cands) > 1 {
		idx := -1
		for i, cand := range cands {
			if cand.coherence < minCoherence && (idx < 0 || cand.coherence < cands[idx].coherence) {
				idx = i
			}
		}
		if idx < 0 {
			return cands
		}
		into := closestNeighbor(cands, idx)
		cands[into].items = append(cands[into].items, cands[idx].items...)
		cands = append(cands[:idx], cands[idx+1:]...)
	}
	return cands
}

// enforceCap merges least-coherent candidates together until the boundary
// count fits the configured cap, preventing fragmentation into
// nearly-identical groups. The least coherent group folds into whichever
// neighbor shares the most sources with it.
func enforceCap(cands []candidate, max int) []candidate {
	if max <= 0 {
		max = 1
	}
	for len(cands) > max {
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].coherence < cands[j].coherence
		})
		into := closestNeighbor(cands, 0)
		cands[into] = absorb(cands[into], cands[0])
		cands = cands[1:]
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].key < cands[j].key })
	return cands
}

func toBoundary(cand candidate, coherence float64, label string) model.Boundary {
	ids := make([]string, len(cand.items))
	for i, item := range cand.items {
		ids[i] = item.ID
	}
	return model.Boundary{
		ID:                uuid.NewString(),
		Label:             label,
		MemberEvidenceIDs: ids,
		CoherenceScore:    coherence,
		ScopeKey:          cand.key,
	}
}

func defaultBoundary(items []model.EvidenceItem) model.Boundary {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return model.Boundary{
		ID:                uuid.NewString(),
		Label:             "All evidence",
		MemberEvidenceIDs: ids,
		CoherenceScore:    0.5,
		IsDefault:         true,
	}
}

func singleLabel(cand candidate) string {
	if cand.key == "any|any|any" {
		return "All evidence"
	}
	return "Shared frame: " + cand.key
}
