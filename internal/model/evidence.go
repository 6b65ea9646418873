package model

// EvidenceItem is one piece of gathered evidence.
// Items are append-only: once created by the research stage they are never mutated.
type EvidenceItem struct {
	ID                 string            `json:"id"`
	SourceURL          string            `json:"source_url"`
	ExcerptText        string            `json:"excerpt_text"`
	SupportingClaimIDs []string          `json:"supporting_claim_ids"`
	Stance             Stance            `json:"stance"`
	Scope              *EvidenceScope    `json:"scope,omitempty"`
	IsDerivative       bool              `json:"is_derivative"` // Republish/syndication of an already-collected source
	Reliability        SourceReliability `json:"reliability"`
	FromContradiction  bool              `json:"from_contradiction_search,omitempty"`
}

// EvidenceScope describes the evaluative frame an evidence item operates under.
// Items whose scopes are mutually incompatible must not be silently merged;
// the boundary clusterer groups on this metadata.
type EvidenceScope struct {
	Methodology          string            `json:"methodology,omitempty"`
	TemporalWindow       string            `json:"temporal_window,omitempty"`
	Jurisdiction         string            `json:"jurisdiction,omitempty"`
	AdditionalDimensions map[string]string `json:"additional_dimensions,omitempty"`
}

// Key returns a normalized grouping key for boundary candidate formation.
// Empty dimensions collapse to "any" so unscoped evidence is mutually compatible.
func (s *EvidenceScope) Key() string {
	if s == nil {
		return "any|any|any"
	}
	return orAny(s.Methodology) + "|" + orAny(s.TemporalWindow) + "|" + orAny(s.Jurisdiction)
}

func orAny(v string) string {
	if v == "" {
		return "any"
	}
	return v
}

// SourceReliability is the oracle's judgment of a source, attached at gather time.
// Unknown sources default to neutral (0.5 score, 0 confidence), never penalized.
type SourceReliability struct {
	Score      float64 `json:"score"`      // 0..1
	Confidence float64 `json:"confidence"` // 0..1
	Known      bool    `json:"known"`
}

// NeutralReliability is the default weight for sources the oracle cannot rate
func NeutralReliability() SourceReliability {
	return SourceReliability{Score: 0.5, Confidence: 0, Known: false}
}

// EvidencePool holds all gathered evidence, indexed per claim.
// Per-claim slices are owned exclusively by that claim's research loop
// during gathering; after the research stage the pool is read-only.
type EvidencePool struct {
	Items   []EvidenceItem      `json:"items"`
	ByClaim map[string][]string `json:"by_claim"` // claim ID -> evidence IDs
}

// NewEvidencePool creates an empty pool
func NewEvidencePool() *EvidencePool {
	return &EvidencePool{ByClaim: make(map[string][]string)}
}

// Add appends an item and indexes it under its supporting claims
func (p *EvidencePool) Add(item EvidenceItem) {
	p.Items = append(p.Items, item)
	for _, claimID := range item.SupportingClaimIDs {
		p.ByClaim[claimID] = append(p.ByClaim[claimID], item.ID)
	}
}

// Get returns the item with the given ID
func (p *EvidencePool) Get(id string) (EvidenceItem, bool) {
	for _, item := range p.Items {
		if item.ID == id {
			return item, true
		}
	}
	return EvidenceItem{}, false
}

// ForClaim returns all evidence items bearing on the given claim
func (p *EvidencePool) ForClaim(claimID string) []EvidenceItem {
	ids := p.ByClaim[claimID]
	items := make([]EvidenceItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := p.Get(id); ok {
			items = append(items, item)
		}
	}
	return items
}
