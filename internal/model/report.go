package model

import "time"

// WarningCode is a stable machine-readable code consumers can react to
type WarningCode string

const (
	WarnSourceAcquisitionCollapse WarningCode = "source_acquisition_collapse"
	WarnBudgetExhausted           WarningCode = "budget_exhausted"
	WarnGate4Failed               WarningCode = "gate4_failed"
	WarnSoftRefusal               WarningCode = "soft_refusal_recovered"
	WarnSchemaDegraded            WarningCode = "schema_validation_degraded"
	WarnClusteringFallback        WarningCode = "clustering_fallback"
	WarnClaimRescue               WarningCode = "claim_rescue_applied"
	WarnEvidenceShortfall         WarningCode = "evidence_below_minimum"
	WarnDebateDegraded            WarningCode = "debate_degraded"
	WarnNarrativeSkipped          WarningCode = "narrative_skipped"
)

// Warning is a structured, non-fatal condition recorded during a run
type Warning struct {
	Code    WarningCode `json:"code"`
	Stage   string      `json:"stage"`
	ClaimID string      `json:"claim_id,omitempty"`
	Message string      `json:"message"`
}

// Narrative is the structured explanation of the aggregated verdict.
// It is descriptive only and never alters any numeric verdict it describes.
type Narrative struct {
	Headline              string   `json:"headline"`
	KeyFinding            string   `json:"key_finding"`
	BoundaryDisagreements []string `json:"boundary_disagreements,omitempty"`
	Limitations           []string `json:"limitations,omitempty"`
}

// GateCheck is one quality-gate criterion with its observed value
type GateCheck struct {
	Name     string  `json:"name"`
	Passed   bool    `json:"passed"`
	Observed float64 `json:"observed"`
	Required float64 `json:"required"`
}

// QualityGateResult is the Gate 4 outcome. A failing gate does not discard
// the assessment; it is surfaced to the consumer.
type QualityGateResult struct {
	Passed bool        `json:"passed"`
	Checks []GateCheck `json:"checks"`
}

// CoverageCell records evidence density for one claim in one boundary
type CoverageCell struct {
	ClaimID       string `json:"claim_id"`
	BoundaryID    string `json:"boundary_id"`
	EvidenceCount int    `json:"evidence_count"`
	Assessed      bool   `json:"assessed"` // false means "not assessed in this boundary", not zero/false
}

// AggregatedAssessment is the terminal article-level artifact of a run
type AggregatedAssessment struct {
	OverallLabel           VerdictLabel      `json:"overall_verdict_label"`
	OverallTruthPercentage float64           `json:"overall_truth_percentage"`
	TriangulationScore     float64           `json:"triangulation_score"`
	Narrative              Narrative         `json:"verdict_narrative"`
	QualityGate            QualityGateResult `json:"quality_gate_result"`
	CoverageMatrix         []CoverageCell    `json:"coverage_matrix"`
}

// StageMetadata records which model handled a stage and how it behaved
type StageMetadata struct {
	Model      string        `json:"model,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	Iterations int           `json:"iterations,omitempty"`
	LLMCalls   int           `json:"llm_calls,omitempty"`
}

// RunMetadata is per-run bookkeeping for downstream consumers
type RunMetadata struct {
	RunID      string                   `json:"run_id"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Stages     map[string]StageMetadata `json:"stages"`
}

// Envelope is the sole boundary artifact handed to persistence/UI layers
type Envelope struct {
	Input      string                `json:"input"`
	Claims     []Claim               `json:"claims"`
	Evidence   *EvidencePool         `json:"evidence"`
	Boundaries []Boundary            `json:"boundaries"`
	Verdicts   []ClaimVerdict        `json:"verdicts"`
	Assessment *AggregatedAssessment `json:"assessment,omitempty"`
	Warnings   []Warning             `json:"warnings"`
	Metadata   RunMetadata           `json:"metadata"`
}

// HasWarning reports whether a warning with the given code was recorded
func (e *Envelope) HasWarning(code WarningCode) bool {
	for _, w := range e.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
