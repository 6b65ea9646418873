package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/veridex/veridex/internal/aggregate"
	"github.com/veridex/veridex/internal/budget"
	"github.com/veridex/veridex/internal/cluster"
	"github.com/veridex/veridex/internal/evidence"
	"github.com/veridex/veridex/internal/extract"
	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
	"github.com/veridex/veridex/internal/research"
	"github.com/veridex/veridex/internal/verdict"
)

// stageProvider answers each LLM call by recognizing which stage's prompt it
// received, keeping the full run deterministic
type stageProvider struct {
	pass1     string
	pass2     string
	facts     string
	counter   string // contradiction-search facts
	coherence string
	narrative string
	judge     func(prompt string) string // optional per-boundary override
}

func (p *stageProvider) Name() string                       { return "stage" }
func (p *stageProvider) IsAvailable(_ context.Context) bool { return true }

func (p *stageProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	var text string
	switch {
	case strings.Contains(req.Prompt, "Extract up to"):
		text = p.pass1
	case strings.Contains(req.Prompt, "Re-extract up to"):
		text = p.pass2
	case strings.Contains(req.Prompt, "COUNTER-EVIDENCE"):
		text = p.counter
	case strings.Contains(req.Prompt, "extract facts bearing on this claim"):
		text = p.facts
	case strings.Contains(req.Prompt, "Evidence has been grouped"):
		text = p.coherence
	case strings.Contains(req.Prompt, "ROLE: ADVOCATE"):
		text = fmt.Sprintf(`{"argument": "the sources confirm it", "cited_evidence_ids": [%s]}`, quotedEvidenceIDs(req.Prompt, 1))
	case strings.Contains(req.Prompt, "ROLE: CHALLENGER"):
		text = `{"argument": "nothing substantial against", "cited_evidence_ids": [], "counter_type": "none"}`
	case strings.Contains(req.Prompt, "ROLE: JUDGE"):
		if p.judge != nil {
			text = p.judge(req.Prompt)
		} else {
			text = fmt.Sprintf(`{"truth_percentage": 92, "confidence_tier": "HIGH", "reasoning": "well supported", "cited_evidence_ids": [%s], "claim_supported": true}`, quotedEvidenceIDs(req.Prompt, 2))
		}
	case strings.Contains(req.Prompt, "OVERALL VERDICT"):
		text = p.narrative
	}
	return &llm.Response{Text: text, Model: "stage", TokensUsed: 10}, nil
}

// quotedEvidenceIDs pulls up to n evidence IDs listed in a debate prompt,
// quoted and comma-joined for embedding in scripted JSON
func quotedEvidenceIDs(prompt string, n int) string {
	const marker = "- ID: "
	var ids []string
	rest := prompt
	for len(ids) < n {
		i := strings.Index(rest, marker)
		if i < 0 {
			break
		}
		rest = rest[i+len(marker):]
		j := strings.IndexByte(rest, ' ')
		if j <= 0 {
			break
		}
		ids = append(ids, fmt.Sprintf("%q", rest[:j]))
		rest = rest[j:]
	}
	return strings.Join(ids, ",")
}

type listSearcher struct {
	results []evidence.SearchResult
	err     error
}

func (s *listSearcher) Search(_ context.Context, _ string) ([]evidence.SearchResult, error) {
	return s.results, s.err
}

type bodyFetcher struct{}

func (bodyFetcher) Fetch(_ context.Context, url string) (*evidence.Document, error) {
	return &evidence.Document{URL: url, Text: "document body text"}, nil
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.LLM.Model = "strong"
	cfg.LLM.QuickModel = "quick"
	cfg.Extract.PreliminaryQueries = 0
	cfg.Research.Concurrency = 1
	cfg.Research.FetchRetries = 0
	cfg.Verdict.ParallelDebates = false
	return cfg
}

func newTestPipeline(provider llm.Provider, searcher evidence.Searcher, cfg *model.Config) *Pipeline {
	gateway := llm.NewGateway(provider, cfg.LLM.MaxRetries)
	svc := evidence.NewService(searcher, bodyFetcher{}, nil, 0)
	tracker := budget.NewTracker(cfg.Budget)

	p := &Pipeline{
		extractor:  extract.New(gateway, svc, tracker, cfg.Extract, cfg.LLM.QuickModel, cfg.LLM.Model),
		researcher: research.New(gateway, svc, evidence.TLDOracle{}, tracker, cfg.Research, cfg.LLM.Model),
		clusterer:  cluster.New(gateway, cfg.Cluster, cfg.LLM.Model),
		generator:  verdict.New(gateway, cfg.Verdict, cfg.LLM.Model),
		narrator:   aggregate.NewNarrator(gateway, cfg.LLM.Model),
		tracker:    tracker,
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		config:     cfg,
	}
	return p
}

const happyInput = "The dam failed in 2021, killing 12 people."

func happyProvider() *stageProvider {
	return &stageProvider{
		pass1: `{"claims": [{"text": "The dam failed in 2021, killing 12 people.", "is_central": true}], "search_queries": ["dam failure 2021"]}`,
		pass2: `{"claims": [{"text": "The dam failed in 2021, killing 12 people.", "is_central": true, "opinion_score": 0.05, "specificity": 0.9}]}`,
		facts: `{"facts": [
			{"source_url": "https://a.example/report", "excerpt": "The dam failed in 2021.", "stance": "supports"},
			{"source_url": "https://b.example/news", "excerpt": "Twelve people died in the 2021 failure.", "stance": "supports"},
			{"source_url": "https://c.example/archive", "excerpt": "Official records confirm the 2021 collapse.", "stance": "supports"}
		]}`,
		counter:   `{"facts": []}`,
		coherence: `{"boundaries": []}`,
		narrative: `{"headline": "The claim is well supported", "key_finding": "all sources agree", "limitations": ["single-language sources"]}`,
	}
}

func TestPipeline_FullRunSingleBoundary(t *testing.T) {
	searcher := &listSearcher{results: []evidence.SearchResult{
		{URL: "https://a.example/report"}, {URL: "https://b.example/news"}, {URL: "https://c.example/archive"},
	}}
	p := newTestPipeline(happyProvider(), searcher, testConfig())

	env, err := p.Assess(context.Background(), happyInput)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	if len(env.Claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(env.Claims))
	}
	claim := env.Claims[0]
	if !claim.IsCentral {
		t.Error("claim should be central")
	}
	if !claim.HarmPotential {
		t.Error("a claim about deaths must be flagged harm-potential")
	}

	if got := len(env.Evidence.ForClaim(claim.ID)); got != 3 {
		t.Errorf("expected 3 evidence items, got %d", got)
	}

	// All evidence is unscoped: one boundary, no clustering model call.
	if len(env.Boundaries) != 1 {
		t.Fatalf("expected 1 boundary, got %d", len(env.Boundaries))
	}

	if len(env.Verdicts) != 1 {
		t.Fatalf("expected 1 verdict, got %d", len(env.Verdicts))
	}
	v := env.Verdicts[0]
	if v.Label != model.VerdictTrue || v.Tier != model.TierHigh {
		t.Errorf("expected TRUE/HIGH, got %s/%s", v.Label, v.Tier)
	}

	if env.Assessment == nil {
		t.Fatal("assessment missing")
	}
	if env.Assessment.OverallLabel != model.VerdictTrue {
		t.Errorf("expected overall TRUE, got %s", env.Assessment.OverallLabel)
	}
	if !env.Assessment.QualityGate.Passed {
		t.Errorf("gate should pass with 3 independent sources: %+v", env.Assessment.QualityGate)
	}
	if env.Assessment.Narrative.Headline != "The claim is well supported" {
		t.Errorf("narrative not applied: %+v", env.Assessment.Narrative)
	}

	if env.Metadata.RunID == "" {
		t.Error("run ID missing")
	}
	for _, stage := range []string{"extract", "research", "cluster", "verdict", "aggregate"} {
		if _, ok := env.Metadata.Stages[stage]; !ok {
			t.Errorf("stage metadata missing for %q", stage)
		}
	}
}

func TestPipeline_SplitJurisdictionsProduceTwoBoundaries(t *testing.T) {
	const input = "The company was found liable for patent infringement in 2022."

	provider := &stageProvider{
		pass1: fmt.Sprintf(`{"claims": [{"text": %q, "is_central": true}], "search_queries": ["patent infringement ruling 2022"]}`, input),
		pass2: fmt.Sprintf(`{"claims": [{"text": %q, "is_central": true, "opinion_score": 0.05, "specificity": 0.9}]}`, input),
		facts: `{"facts": [
			{"source_url": "https://us1.example/opinion", "excerpt": "The district court held the company liable for infringement.", "stance": "supports", "jurisdiction": "US"},
			{"source_url": "https://us2.example/docket", "excerpt": "Judgment was entered against the company in 2022.", "stance": "supports", "jurisdiction": "US"},
			{"source_url": "https://eu1.example/ruling", "excerpt": "The court dismissed the infringement claim in full.", "stance": "contradicts", "jurisdiction": "EU"},
			{"source_url": "https://eu2.example/press", "excerpt": "No liability was found under the applicable patent law.", "stance": "contradicts", "jurisdiction": "EU"}
		]}`,
		counter: `{"facts": []}`,
		coherence: `{"boundaries": [
			{"key": "any|any|US", "label": "United States courts", "coherence": 0.9, "merge_with": []},
			{"key": "any|any|EU", "label": "European Union courts", "coherence": 0.85, "merge_with": []}
		]}`,
		narrative: `{"headline": "Courts disagree across jurisdictions", "key_finding": "opposite outcomes", "limitations": []}`,
	}
	provider.judge = func(prompt string) string {
		if strings.Contains(prompt, "European Union courts") {
			return fmt.Sprintf(`{"truth_percentage": 20, "confidence_tier": "HIGH", "reasoning": "dismissed there", "cited_evidence_ids": [%s], "claim_supported": false}`, quotedEvidenceIDs(prompt, 2))
		}
		return fmt.Sprintf(`{"truth_percentage": 85, "confidence_tier": "HIGH", "reasoning": "upheld there", "cited_evidence_ids": [%s], "claim_supported": true}`, quotedEvidenceIDs(prompt, 2))
	}

	searcher := &listSearcher{results: []evidence.SearchResult{
		{URL: "https://us1.example/opinion"}, {URL: "https://us2.example/docket"},
		{URL: "https://eu1.example/ruling"}, {URL: "https://eu2.example/press"},
	}}
	p := newTestPipeline(provider, searcher, testConfig())

	env, err := p.Assess(context.Background(), input)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	if len(env.Boundaries) != 2 {
		t.Fatalf("expected 2 boundaries, got %d", len(env.Boundaries))
	}
	if len(env.Verdicts) != 2 {
		t.Fatalf("expected one verdict per boundary, got %d", len(env.Verdicts))
	}
	percentages := map[float64]bool{}
	for _, v := range env.Verdicts {
		percentages[v.TruthPercentage] = true
	}
	if !percentages[85] || !percentages[20] {
		t.Errorf("expected verdicts at 85 and 20, got %v", percentages)
	}

	if env.Assessment == nil {
		t.Fatal("assessment missing")
	}
	if len(env.Assessment.Narrative.BoundaryDisagreements) == 0 {
		t.Error("a 65-point split across boundaries must surface a disagreement")
	}
}

func TestPipeline_ZeroSourcesStillProducesCompleteEnvelope(t *testing.T) {
	searcher := &listSearcher{err: errors.New("network unreachable")}
	p := newTestPipeline(happyProvider(), searcher, testConfig())

	env, err := p.Assess(context.Background(), happyInput)
	if err != nil {
		t.Fatalf("a research collapse must not fail the run: %v", err)
	}

	if !env.HasWarning(model.WarnSourceAcquisitionCollapse) {
		t.Error("expected source_acquisition_collapse warning")
	}
	if len(env.Verdicts) != 1 {
		t.Fatalf("expected 1 verdict, got %d", len(env.Verdicts))
	}
	v := env.Verdicts[0]
	if v.Label != model.VerdictUnverified || v.Tier != model.TierInsufficient {
		t.Errorf("expected UNVERIFIED/INSUFFICIENT, got %s/%s", v.Label, v.Tier)
	}
	if env.Assessment == nil {
		t.Fatal("envelope must stay complete even with no evidence")
	}
	if env.Assessment.OverallLabel != model.VerdictUnverified {
		t.Errorf("expected overall UNVERIFIED, got %s", env.Assessment.OverallLabel)
	}
	if env.Assessment.QualityGate.Passed {
		t.Error("gate cannot pass with zero sources")
	}
	if env.Metadata.FinishedAt.IsZero() {
		t.Error("metadata must be finalized")
	}
}

func TestPipeline_ExtractionFailureTerminatesWithPartialEnvelope(t *testing.T) {
	provider := happyProvider()
	provider.pass1 = "complete garbage"
	p := newTestPipeline(provider, &listSearcher{}, testConfig())

	env, err := p.Assess(context.Background(), happyInput)
	if err == nil {
		t.Fatal("total extraction failure must return an error")
	}
	if env == nil {
		t.Fatal("the partial envelope must still be returned")
	}
	if env.Metadata.RunID == "" || env.Metadata.FinishedAt.IsZero() {
		t.Error("partial envelope must carry finalized metadata")
	}
	if len(env.Claims) != 0 {
		t.Errorf("no claims expected, got %d", len(env.Claims))
	}
}

func TestRenderer_JSONAndMarkdown(t *testing.T) {
	env := &model.Envelope{
		Input:    "test input",
		Evidence: model.NewEvidencePool(),
		Claims:   []model.Claim{{ID: "c1", Text: "claim | with pipe", IsCentral: true}},
		Boundaries: []model.Boundary{
			{ID: "b1", Label: "All evidence", MemberEvidenceIDs: []string{"e1"}, CoherenceScore: 0.9},
		},
		Verdicts: []model.ClaimVerdict{{
			ClaimID: "c1", BoundaryID: "b1", Label: model.VerdictMostlyTrue,
			TruthPercentage: 80, Tier: model.TierMedium,
		}},
		Assessment: &model.AggregatedAssessment{
			OverallLabel:           model.VerdictMostlyTrue,
			OverallTruthPercentage: 80,
			TriangulationScore:     0.7,
			QualityGate:            model.QualityGateResult{Passed: true},
			Narrative:              model.Narrative{Headline: "Mostly holds up"},
		},
		Warnings: []model.Warning{{Code: model.WarnEvidenceShortfall, Stage: "research", Message: "short"}},
		Metadata: model.RunMetadata{RunID: "run-1", StartedAt: time.Now(), FinishedAt: time.Now()},
	}

	dir := t.TempDir()
	r := NewRenderer(true)

	jsonPath := filepath.Join(dir, "report.json")
	if err := r.RenderJSON(env, jsonPath); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read JSON: %v", err)
	}
	var roundTrip model.Envelope
	if err := json.Unmarshal(raw, &roundTrip); err != nil {
		t.Fatalf("rendered JSON does not parse: %v", err)
	}
	if roundTrip.Assessment.OverallLabel != model.VerdictMostlyTrue {
		t.Error("JSON round trip lost the assessment")
	}

	mdPath := filepath.Join(dir, "report.md")
	if err := r.RenderMarkdown(env, mdPath); err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	for _, want := range []string{"Overall verdict:", "MOSTLY-TRUE", "Mostly holds up", "evidence_below_minimum", "claim \\| with pipe", "run-1"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}
