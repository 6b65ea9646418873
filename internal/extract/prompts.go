package extract

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You extract discrete, checkable factual claims from text. You respond with JSON only, no prose.`

func buildPass1Prompt(input string, maxClaims int) string {
	return fmt.Sprintf(`Extract up to %d atomic factual claims from the text below. A claim is atomic when it asserts exactly one checkable fact. Also propose short web search queries that would help verify the claims.

Respond with JSON:
{"claims": [{"text": "...", "is_central": true}], "search_queries": ["..."]}

"is_central" marks claims core to the author's thesis.

TEXT:
%s`, maxClaims, input)
}

func buildPass2Prompt(input string, pass1Claims []string, grounding []string, maxClaims int) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Re-extract up to %d atomic factual claims from the ORIGINAL TEXT below.

Rules:
1. Every claim's thesis must come from the ORIGINAL TEXT alone. The background excerpts may sharpen wording (dates, names, figures) but must NEVER introduce subject matter the original text does not assert.
2. Rate each claim: "opinion_score" 0-1 (how much it is opinion or prediction rather than checkable fact) and "specificity" 0-1 (how precisely it can be verified).
3. Mark claims core to the author's thesis with "is_central": true.

Respond with JSON:
{"claims": [{"text": "...", "is_central": true, "opinion_score": 0.1, "specificity": 0.8}]}

ORIGINAL TEXT:
%s

FIRST-PASS CLAIMS:
`, maxClaims, input)

	for _, c := range pass1Claims {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	if len(grounding) > 0 {
		b.WriteString("\nBACKGROUND EXCERPTS (wording refinement only, never new scope):\n")
		for i, g := range grounding {
			if i >= 6 {
				break
			}
			fmt.Fprintf(&b, "[%d] %s\n", i+1, g)
		}
	}

	return b.String()
}
