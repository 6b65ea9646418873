package verdict

import (
	"fmt"
	"strings"

	"github.com/veridex/veridex/internal/model"
)

const debateSystemPrompt = `You are one side of a structured adversarial fact-checking debate. Argue only from the evidence provided. Cite evidence by its ID. Respond with JSON only, no prose outside the JSON.`

func buildAdvocatePrompt(claim model.Claim, boundary model.Boundary, items []model.EvidenceItem) string {
	var b strings.Builder

	b.WriteString("ROLE: ADVOCATE. Build the strongest honest case that the claim is TRUE, using only the evidence below.\n\n")
	writeClaimAndEvidence(&b, claim, boundary, items)
	b.WriteString(`
Respond with JSON:
{"argument": "...", "cited_evidence_ids": ["..."]}
Cite only IDs that appear above. If the evidence cannot support the claim, say so in the argument.`)

	return b.String()
}

func buildChallengerPrompt(claim model.Claim, boundary model.Boundary, items []model.EvidenceItem, advocateArgument string) string {
	var b strings.Builder

	b.WriteString("ROLE: CHALLENGER. Build the strongest honest case AGAINST the claim, attacking the advocate's argument where it overreaches.\n\n")
	writeClaimAndEvidence(&b, claim, boundary, items)
	fmt.Fprintf(&b, "\nADVOCATE ARGUED:\n%s\n", advocateArgument)
	b.WriteString(`
Respond with JSON:
{"argument": "...", "cited_evidence_ids": ["..."], "counter_type": "evidence|opinion|none"}
"counter_type" is "evidence" when documented counter-evidence exists, "opinion" when the only pushback is commentary or criticism without evidence, "none" otherwise.`)

	return b.String()
}

func buildReconcilePrompt(claim model.Claim, boundary model.Boundary, items []model.EvidenceItem, adv advocateOutput, chal challengerOutput, correction string) string {
	var b strings.Builder

	b.WriteString("ROLE: JUDGE. Weigh both arguments against the evidence and score the claim.\n\n")
	writeClaimAndEvidence(&b, claim, boundary, items)
	fmt.Fprintf(&b, "\nADVOCATE:\n%s\n\nCHALLENGER:\n%s\n", adv.Argument, chal.Argument)

	if correction != "" {
		fmt.Fprintf(&b, "\nYOUR PREVIOUS ANSWER WAS REJECTED: %s\nProduce a corrected answer that fixes every listed problem.\n", correction)
	}

	b.WriteString(`
Respond with JSON:
{"truth_percentage": 0-100, "confidence_tier": "HIGH|MEDIUM|LOW|INSUFFICIENT", "reasoning": "...", "cited_evidence_ids": ["..."], "claim_supported": true|false}
"claim_supported" must match the score: true when truth_percentage >= 50. Cite only IDs that appear above. Use INSUFFICIENT when the evidence cannot settle the claim; never guess.`)

	return b.String()
}

func writeClaimAndEvidence(b *strings.Builder, claim model.Claim, boundary model.Boundary, items []model.EvidenceItem) {
	fmt.Fprintf(b, "CLAIM: %s\n", claim.Text)
	if boundary.Label != "" {
		fmt.Fprintf(b, "ASSESSMENT FRAME: %s\n", boundary.Label)
	}
	if claim.HarmPotential {
		b.WriteString("NOTE: this claim touches health, safety, or legal consequences; hold it to a high evidentiary bar.\n")
	}

	b.WriteString("\nEVIDENCE:\n")
	for _, item := range items {
		fmt.Fprintf(b, "- ID: %s [%s] (%s)\n  %s\n", item.ID, item.Stance, item.SourceURL, truncateExcerpt(item.ExcerptText, 400))
	}
}

func truncateExcerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
