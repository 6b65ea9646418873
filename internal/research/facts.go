package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/veridex/veridex/internal/evidence"
	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
)

// extractedFact is the LLM's structured reading of one document passage.
// "position" is a legacy alias for "stance" kept for older prompt revisions.
type extractedFact struct {
	SourceURL string `json:"source_url"`
	Excerpt   string `json:"excerpt"`
	Stance    string `json:"stance"`
	Position  string `json:"position,omitempty"` // legacy alias

	Methodology    string            `json:"methodology,omitempty"`
	TemporalWindow string            `json:"temporal_window,omitempty"`
	Jurisdiction   string            `json:"jurisdiction,omitempty"`
	Dimensions     map[string]string `json:"additional_dimensions,omitempty"`
}

func (f *extractedFact) stance() model.Stance {
	s := f.Stance
	if s == "" {
		s = f.Position
	}
	switch strings.ToLower(s) {
	case "supports", "support", "supporting":
		return model.StanceSupports
	case "contradicts", "contradict", "refutes", "opposes":
		return model.StanceContradicts
	default:
		return model.StanceNeutral
	}
}

// scope returns nil when the fact carries no framing metadata, so unscoped
// evidence stays mutually compatible during clustering
func (f *extractedFact) scope() *model.EvidenceScope {
	if f.Methodology == "" && f.TemporalWindow == "" && f.Jurisdiction == "" && len(f.Dimensions) == 0 {
		return nil
	}
	return &model.EvidenceScope{
		Methodology:          f.Methodology,
		TemporalWindow:       f.TemporalWindow,
		Jurisdiction:         f.Jurisdiction,
		AdditionalDimensions: f.Dimensions,
	}
}

type factsOutput struct {
	Facts []extractedFact `json:"facts"`
}

// extractFacts asks the model to read gathered documents against one claim
// and emit structured facts with explicit evidence-scope metadata
func (r *Researcher) extractFacts(ctx context.Context, claim model.Claim, docs []evidence.Document, contradiction bool) ([]extractedFact, llm.CallResult, *llm.CallFailure) {
	var out factsOutput
	call, fail := r.gateway.CallStructured(ctx, llm.Request{
		System: "You read source documents and extract structured facts bearing on a claim. Respond with JSON only.",
		Prompt: buildFactsPrompt(claim, docs, contradiction),
		Model:  r.model,
	}, &out)
	if fail != nil {
		return nil, call, fail
	}

	// Facts without a source or excerpt cannot be cited downstream
	kept := out.Facts[:0]
	for _, f := range out.Facts {
		if f.SourceURL != "" && f.Excerpt != "" {
			kept = append(kept, f)
		}
	}
	return kept, call, nil
}

func buildFactsPrompt(claim model.Claim, docs []evidence.Document, contradiction bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Read the documents below and extract facts bearing on this claim:

CLAIM: %s

`, claim.Text)

	if contradiction {
		b.WriteString("Focus on COUNTER-EVIDENCE: passages that contradict, qualify, or undermine the claim. Evidence-backed counter-claims matter most; mere opinion should be marked \"neutral\".\n\n")
	}

	b.WriteString(`For each relevant passage emit one fact:
- "source_url": the document URL
- "excerpt": a short verbatim passage (max 2 sentences)
- "stance": "supports", "contradicts", or "neutral" relative to the claim
- "methodology", "temporal_window", "jurisdiction": the frame this evidence operates under, when the document states or implies one. When a document's methodology or time window differs from the claim's framing, capture it explicitly instead of merging it away.
- "additional_dimensions": other framing metadata as string key/values

Respond with JSON: {"facts": [...]}. Emit no fact when nothing is relevant.

DOCUMENTS:
`)

	for i, doc := range docs {
		fmt.Fprintf(&b, "[%d] URL: %s\n%s\n\n", i+1, doc.URL, truncate(doc.Text, 1500))
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
