package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/veridex/veridex/internal/llm"
)

// coherenceOutput is the LLM's review of the candidate boundaries.
// "group_key" is a legacy alias for "key".
type coherenceOutput struct {
	Boundaries []coherenceEntry `json:"boundaries"`
}

type coherenceEntry struct {
	Key       string   `json:"key"`
	GroupKey  string   `json:"group_key,omitempty"` // legacy alias
	Label     string   `json:"label"`
	Coherence float64  `json:"coherence"`
	MergeWith []string `json:"merge_with,omitempty"`
}

// assessCoherence runs one LLM review over all candidates: it labels each
// group, scores internal consistency, and flags near-duplicate groups for
// merging
func (c *Clusterer) assessCoherence(ctx context.Context, cands []candidate) ([]candidate, llm.CallResult, *llm.CallFailure) {
	var out coherenceOutput
	call, fail := c.gateway.CallStructured(ctx, llm.Request{
		System: "You review groupings of evidence for internal coherence. Respond with JSON only.",
		Prompt: buildCoherencePrompt(cands),
		Model:  c.model,
	}, &out)
	if fail != nil {
		return nil, call, fail
	}

	byKey := make(map[string]coherenceEntry)
	for _, entry := range out.Boundaries {
		key := entry.Key
		if key == "" {
			key = entry.GroupKey
		}
		byKey[key] = entry
	}

	assessed := make([]candidate, len(cands))
	for i, cand := range cands {
		assessed[i] = cand
		if entry, ok := byKey[cand.key]; ok {
			assessed[i].label = entry.Label
			assessed[i].coherence = clamp01(entry.Coherence)
			assessed[i].mergeWith = entry.MergeWith
		} else {
			// The model skipped a group; keep it with a neutral score
			assessed[i].label = singleLabel(cand)
			assessed[i].coherence = 0.5
		}
		if assessed[i].label == "" {
			assessed[i].label = singleLabel(cand)
		}
	}
	return assessed, call, nil
}

func buildCoherencePrompt(cands []candidate) string {
	var b strings.Builder

	b.WriteString(`Evidence has been grouped by its stated evaluative frame (methodology | time window | jurisdiction). For each group below:
1. Give a short human-readable "label" for the frame.
2. Score "coherence" 0-1: how internally consistent the group's evidence is.
3. If two groups describe essentially the same frame, list the other group's key in "merge_with".

Respond with JSON:
{"boundaries": [{"key": "<group key>", "label": "...", "coherence": 0.8, "merge_with": []}]}

GROUPS:
`)

	for _, cand := range cands {
		fmt.Fprintf(&b, "\nKEY: %s\n", cand.key)
		for i, item := range cand.items {
			if i >= 5 {
				fmt.Fprintf(&b, "  ... and %d more items\n", len(cand.items)-5)
				break
			}
			fmt.Fprintf(&b, "  - [%s] %s\n", item.Stance, truncate(item.ExcerptText, 200))
		}
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
