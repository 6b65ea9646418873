package extract

import (
	"fmt"
	"strings"

	"github.com/veridex/veridex/internal/model"
)

// applyGate runs Gate 1: drops pure-opinion, low-specificity, and
// non-faithful claims. If the gate would filter everything, the single
// best-scoring claim is rescued so the pipeline never collapses to zero
// claims on edge-case input.
func (e *Extractor) applyGate(input string, claims []model.Claim, res *Result) []model.Claim {
	var passed []model.Claim
	bestIdx := -1
	bestScore := -1.0

	for i := range claims {
		claims[i].PassedFidelity = faithfulToInput(input, claims[i].Text)

		score := claims[i].Specificity - claims[i].OpinionScore
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}

		if claims[i].OpinionScore > e.cfg.MaxOpinionScore {
			continue
		}
		if claims[i].Specificity < e.cfg.MinSpecificity {
			continue
		}
		if !claims[i].PassedFidelity {
			continue
		}
		passed = append(passed, claims[i])
	}

	if len(passed) == 0 && bestIdx >= 0 {
		rescued := claims[bestIdx]
		rescued.Heuristic = "rescue"
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnClaimRescue,
			Stage:   "extract",
			Message: fmt.Sprintf("gate filtered all %d claims; rescued best-scoring claim", len(claims)),
		})
		return []model.Claim{rescued}
	}

	return passed
}

// faithfulToInput checks that a claim's thesis is traceable to the original
// input: the majority of its content words must appear in the input. Evidence
// may refine specificity, but a claim built from evidence-only scope fails here.
func faithfulToInput(input, claimText string) bool {
	inputTokens := contentTokens(input)
	claimTokens := contentTokens(claimText)
	if len(claimTokens) == 0 {
		return false
	}

	matched := 0
	for tok := range claimTokens {
		if inputTokens[tok] {
			matched++
		}
	}
	return float64(matched)/float64(len(claimTokens)) >= 0.5
}

var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"from": true, "have": true, "has": true, "was": true, "were": true,
	"are": true, "for": true, "not": true, "but": true, "its": true,
	"their": true, "been": true, "will": true, "would": true, "about": true,
	"which": true, "there": true, "when": true, "where": true, "into": true,
}

func contentTokens(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if len(word) < 3 || stopwords[word] {
			continue
		}
		tokens[word] = true
	}
	return tokens
}
