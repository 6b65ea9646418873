package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/veridex/veridex/internal/model"
)

// Renderer writes assessment envelopes as JSON, Markdown, and a terminal summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the full envelope as indented JSON
func (r *Renderer) RenderJSON(env *model.Envelope, path string) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes a human-readable report
func (r *Renderer) RenderMarkdown(env *model.Envelope, path string) error {
	var b strings.Builder

	b.WriteString("# Claim Assessment Report\n\n")

	if env.Assessment != nil {
		a := env.Assessment
		if a.Narrative.Headline != "" {
			fmt.Fprintf(&b, "**%s**\n\n", a.Narrative.Headline)
		}
		fmt.Fprintf(&b, "- **Overall verdict:** %s (%.0f%%)\n", a.OverallLabel, a.OverallTruthPercentage)
		fmt.Fprintf(&b, "- **Triangulation:** %.2f\n", a.TriangulationScore)
		fmt.Fprintf(&b, "- **Quality gate:** %s\n\n", passFail(a.QualityGate.Passed))

		if a.Narrative.KeyFinding != "" {
			fmt.Fprintf(&b, "**Key finding:** %s\n\n", a.Narrative.KeyFinding)
		}
	}

	b.WriteString("## Claims\n\n")
	b.WriteString("| Claim | Central | Harm |\n|---|---|---|\n")
	for _, c := range env.Claims {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", escapePipes(c.Text), yesNo(c.IsCentral), yesNo(c.HarmPotential))
	}
	b.WriteString("\n")

	if len(env.Boundaries) > 0 {
		b.WriteString("## Assessment Boundaries\n\n")
		for _, boundary := range env.Boundaries {
			fmt.Fprintf(&b, "- **%s** (%d evidence items, coherence %.2f)\n",
				boundary.Label, len(boundary.MemberEvidenceIDs), boundary.CoherenceScore)
		}
		b.WriteString("\n")
	}

	if len(env.Verdicts) > 0 {
		claimText := make(map[string]string, len(env.Claims))
		for _, c := range env.Claims {
			claimText[c.ID] = c.Text
		}
		boundaryLabel := make(map[string]string, len(env.Boundaries))
		for _, bd := range env.Boundaries {
			boundaryLabel[bd.ID] = bd.Label
		}

		b.WriteString("## Verdicts\n\n")
		b.WriteString("| Claim | Boundary | Verdict | Score | Confidence |\n|---|---|---|---|---|\n")
		for _, v := range env.Verdicts {
			label := boundaryLabel[v.BoundaryID]
			if label == "" {
				label = "—"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %.0f%% | %s |\n",
				escapePipes(claimText[v.ClaimID]), escapePipes(label), v.Label, v.TruthPercentage, v.Tier)
		}
		b.WriteString("\n")
	}

	if env.Assessment != nil && len(env.Assessment.Narrative.BoundaryDisagreements) > 0 {
		b.WriteString("## Boundary Disagreements\n\n")
		for _, d := range env.Assessment.Narrative.BoundaryDisagreements {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if env.Assessment != nil && len(env.Assessment.Narrative.Limitations) > 0 {
		b.WriteString("## Limitations\n\n")
		for _, l := range env.Assessment.Narrative.Limitations {
			fmt.Fprintf(&b, "- %s\n", l)
		}
		b.WriteString("\n")
	}

	if len(env.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range env.Warnings {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", w.Code, w.Stage, w.Message)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "---\n\nGenerated by Veridex · run `%s`\n", env.Metadata.RunID)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderSummary prints a short result block to stdout
func (r *Renderer) RenderSummary(env *model.Envelope) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("  Assessment Summary")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println()

	if env.Assessment != nil {
		fmt.Printf("  Verdict:        %s (%.0f%%)\n", env.Assessment.OverallLabel, env.Assessment.OverallTruthPercentage)
		fmt.Printf("  Triangulation:  %.2f\n", env.Assessment.TriangulationScore)
		fmt.Printf("  Quality gate:   %s\n", passFail(env.Assessment.QualityGate.Passed))
		if env.Assessment.Narrative.Headline != "" {
			fmt.Printf("  Headline:       %s\n", env.Assessment.Narrative.Headline)
		}
	}
	fmt.Printf("  Claims:         %d\n", len(env.Claims))
	fmt.Printf("  Evidence:       %d items\n", len(env.Evidence.Items))
	fmt.Printf("  Boundaries:     %d\n", len(env.Boundaries))
	if len(env.Warnings) > 0 {
		fmt.Printf("  Warnings:       %d\n", len(env.Warnings))
	}
	fmt.Println()
}

func passFail(passed bool) string {
	if passed {
		return "PASSED"
	}
	return "FAILED"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
