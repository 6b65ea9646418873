package evidence

import (
	"context"
	"net/url"
	"strings"

	"github.com/veridex/veridex/internal/model"
)

// Oracle is the source-reliability collaborator contract. Unknown sources
// must default to neutral weight, never penalized as unreliable.
type Oracle interface {
	Evaluate(ctx context.Context, url string) model.SourceReliability
}

// TLDOracle is a built-in oracle that rates sources by their domain class.
// It is deliberately coarse; a production deployment injects a real scoring
// service behind the Oracle interface.
type TLDOracle struct{}

// Evaluate rates a URL; anything unrecognized comes back neutral
func (TLDOracle) Evaluate(_ context.Context, rawURL string) model.SourceReliability {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.NeutralReliability()
	}

	host := parsed.Hostname()
	switch {
	case strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".mil"):
		return model.SourceReliability{Score: 0.9, Confidence: 0.8, Known: true}
	case strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk"):
		return model.SourceReliability{Score: 0.8, Confidence: 0.7, Known: true}
	case strings.HasSuffix(host, ".org"):
		return model.SourceReliability{Score: 0.6, Confidence: 0.4, Known: true}
	default:
		return model.NeutralReliability()
	}
}
