package model

// VerdictLabel is the 7-point truth scale plus a distinct insufficient-evidence state
type VerdictLabel string

const (
	VerdictTrue         VerdictLabel = "TRUE"
	VerdictMostlyTrue   VerdictLabel = "MOSTLY-TRUE"
	VerdictLeaningTrue  VerdictLabel = "LEANING-TRUE"
	VerdictMixed        VerdictLabel = "MIXED"
	VerdictLeaningFalse VerdictLabel = "LEANING-FALSE"
	VerdictMostlyFalse  VerdictLabel = "MOSTLY-FALSE"
	VerdictFalse        VerdictLabel = "FALSE"
	VerdictUnverified   VerdictLabel = "UNVERIFIED"
)

// LabelForPercentage maps a continuous truth percentage onto the 7-point scale
func LabelForPercentage(pct float64) VerdictLabel {
	switch {
	case pct >= 90:
		return VerdictTrue
	case pct >= 75:
		return VerdictMostlyTrue
	case pct >= 60:
		return VerdictLeaningTrue
	case pct >= 40:
		return VerdictMixed
	case pct >= 25:
		return VerdictLeaningFalse
	case pct >= 10:
		return VerdictMostlyFalse
	default:
		return VerdictFalse
	}
}

// ConfidenceTier expresses how much the verdict can be trusted
type ConfidenceTier string

const (
	TierHigh         ConfidenceTier = "HIGH"
	TierMedium       ConfidenceTier = "MEDIUM"
	TierLow          ConfidenceTier = "LOW"
	TierInsufficient ConfidenceTier = "INSUFFICIENT"
)

// Demote lowers a tier by one step as a stability penalty
func (t ConfidenceTier) Demote() ConfidenceTier {
	switch t {
	case TierHigh:
		return TierMedium
	case TierMedium:
		return TierLow
	default:
		return TierInsufficient
	}
}

// Weight returns the aggregation multiplier for the tier.
// INSUFFICIENT verdicts carry zero weight and are excluded from the average.
func (t ConfidenceTier) Weight() float64 {
	switch t {
	case TierHigh:
		return 1.0
	case TierMedium:
		return 0.75
	case TierLow:
		return 0.5
	default:
		return 0
	}
}

// DebateStep records one step of the adversarial debate
type DebateStep struct {
	Role            string   `json:"role"` // advocate, challenger, reconciliation, self_consistency, validation
	Argument        string   `json:"argument,omitempty"`
	CitedEvidenceID []string `json:"cited_evidence_ids,omitempty"`
	Model           string   `json:"model,omitempty"`
}

// ClaimVerdict is the outcome of one debate for a (claim, boundary) pair.
// Immutable once produced; a new debate, not a mutation, changes it.
type ClaimVerdict struct {
	ClaimID               string         `json:"claim_id"`
	BoundaryID            string         `json:"boundary_id"`
	Label                 VerdictLabel   `json:"label"`
	TruthPercentage       float64        `json:"truth_percentage"` // 0..100
	Tier                  ConfidenceTier `json:"confidence_tier"`
	Reasoning             string         `json:"reasoning"`
	DebateTrace           []DebateStep   `json:"debate_trace,omitempty"`
	SelfConsistencySpread float64        `json:"self_consistency_spread"`
	CitedEvidenceIDs      []string       `json:"cited_evidence_ids"`
	Contested             bool           `json:"contested"` // Evidence-backed counter-claims exist
	Doubted               bool           `json:"doubted"`   // Opinion-only criticism exists
}
