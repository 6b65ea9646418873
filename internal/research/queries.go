package research

import (
	"net/url"
	"strings"

	"github.com/veridex/veridex/internal/model"
)

// supportQueries derives the ordered confirming-search queries for a claim.
// Formulation is deterministic; the LLM spends its calls on reading the
// gathered documents rather than on phrasing searches.
func supportQueries(claim model.Claim) []string {
	base := strings.TrimSpace(claim.Text)
	return []string{
		base,
		base + " evidence",
		base + " report",
		base + " official statement",
		base + " investigation findings",
	}
}

// contradictionQuery derives the reserved counter-evidence searches
func contradictionQuery(claim model.Claim, iteration int) string {
	base := strings.TrimSpace(claim.Text)
	variants := []string{
		base + " false OR debunked OR disputed",
		base + " criticism OR contradicts OR inaccurate",
	}
	return variants[iteration%len(variants)]
}

// isDerivative flags republishes/syndications of an already-collected
// source: same host, or a near-duplicate excerpt. Stage 5 excludes
// derivatives from independent-source counts.
func isDerivative(item model.EvidenceItem, existing []model.EvidenceItem) bool {
	host := hostOf(item.SourceURL)
	excerpt := normalizeExcerpt(item.ExcerptText)

	for _, prev := range existing {
		if host != "" && host == hostOf(prev.SourceURL) {
			return true
		}
		if excerpt != "" && excerpt == normalizeExcerpt(prev.ExcerptText) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

// normalizeExcerpt reduces an excerpt to a comparable prefix: lowercase,
// collapsed whitespace, punctuation stripped
func normalizeExcerpt(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
		if b.Len() >= 120 {
			break
		}
	}
	return b.String()
}
