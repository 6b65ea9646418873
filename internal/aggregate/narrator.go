package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
)

// Narrator fills the descriptive fields of the narrative. It runs after the
// numbers are final and can never change them; a failed narration degrades
// to a generated summary line plus a warning.
type Narrator struct {
	gateway *llm.Gateway
	model   string
}

// NewNarrator creates a narrator
func NewNarrator(gateway *llm.Gateway, llmModel string) *Narrator {
	return &Narrator{gateway: gateway, model: llmModel}
}

type narrativeOutput struct {
	Headline    string   `json:"headline"`
	KeyFinding  string   `json:"key_finding"`
	Summary     string   `json:"summary,omitempty"` // legacy alias for key_finding
	Limitations []string `json:"limitations"`
}

func (o *narrativeOutput) keyFinding() string {
	if o.KeyFinding != "" {
		return o.KeyFinding
	}
	return o.Summary
}

// NarrateResult carries the call accounting back to the pipeline
type NarrateResult struct {
	Warnings   []model.Warning
	LLMCalls   int
	TokensUsed int
}

// Narrate writes headline, key finding, and limitations into the assessment.
// BoundaryDisagreements are computed deterministically upstream and left
// untouched here.
func (n *Narrator) Narrate(ctx context.Context, claims []model.Claim, verdicts []model.ClaimVerdict, assessment *model.AggregatedAssessment) *NarrateResult {
	res := &NarrateResult{}

	var out narrativeOutput
	call, fail := n.gateway.CallStructured(ctx, llm.Request{
		System: "You summarize completed fact-check results for readers. You describe the verdicts given to you; you never change or second-guess them. Respond with JSON only.",
		Prompt: buildNarrativePrompt(claims, verdicts, assessment),
		Model:  n.model,
	}, &out)
	res.LLMCalls++
	res.TokensUsed += call.TokensUsed

	if fail != nil || out.Headline == "" {
		reason := "empty headline"
		if fail != nil {
			reason = string(fail.Kind)
		}
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnNarrativeSkipped,
			Stage:   "aggregate",
			Message: fmt.Sprintf("narrative generation failed (%s); using generated summary", reason),
		})
		assessment.Narrative.Headline = fallbackHeadline(assessment)
		return res
	}

	assessment.Narrative.Headline = out.Headline
	assessment.Narrative.KeyFinding = out.keyFinding()
	assessment.Narrative.Limitations = out.Limitations
	return res
}

func fallbackHeadline(assessment *model.AggregatedAssessment) string {
	return fmt.Sprintf("Overall assessment: %s (%.0f%% weighted truth score)",
		assessment.OverallLabel, assessment.OverallTruthPercentage)
}

func buildNarrativePrompt(claims []model.Claim, verdicts []model.ClaimVerdict, assessment *model.AggregatedAssessment) string {
	var b strings.Builder

	claimText := make(map[string]string, len(claims))
	for _, c := range claims {
		claimText[c.ID] = c.Text
	}

	fmt.Fprintf(&b, "OVERALL VERDICT: %s (%.0f%%)\n\nPER-CLAIM VERDICTS:\n", assessment.OverallLabel, assessment.OverallTruthPercentage)
	for _, v := range verdicts {
		fmt.Fprintf(&b, "- %q: %s (%.0f%%, confidence %s)\n", claimText[v.ClaimID], v.Label, v.TruthPercentage, v.Tier)
	}
	if len(assessment.Narrative.BoundaryDisagreements) > 0 {
		b.WriteString("\nBOUNDARY DISAGREEMENTS:\n")
		for _, d := range assessment.Narrative.BoundaryDisagreements {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	b.WriteString(`
Write for a general reader. Respond with JSON:
{"headline": "one sentence", "key_finding": "the single most decision-relevant finding", "limitations": ["what this assessment could not check"]}`)

	return b.String()
}
