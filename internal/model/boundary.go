package model

// Boundary is an evidence-emergent grouping: a coherent evaluative frame
// (distinct methodology, jurisdiction, or time period) under which a subset
// of evidence is mutually comparable. Boundaries are never pre-declared;
// they exist only after the clustering stage has seen the evidence pool.
type Boundary struct {
	ID                string   `json:"id"`
	Label             string   `json:"label"`
	MemberEvidenceIDs []string `json:"member_evidence_ids"`
	CoherenceScore    float64  `json:"coherence_score"` // 0..1 internal consistency
	ScopeKey          string   `json:"scope_key,omitempty"`
	IsDefault         bool     `json:"is_default,omitempty"` // Fallback boundary after clustering failure
}

// Contains reports whether the boundary holds the given evidence item
func (b *Boundary) Contains(evidenceID string) bool {
	for _, id := range b.MemberEvidenceIDs {
		if id == evidenceID {
			return true
		}
	}
	return false
}
