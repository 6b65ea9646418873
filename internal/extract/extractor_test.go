package extract

import (
	"context"
	"testing"

	"github.com/veridex/veridex/internal/budget"
	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
)

// scriptedProvider replays canned responses through a real gateway
type scriptedProvider struct {
	responses []string
	calls     int
}

func (s *scriptedProvider) Name() string                          { return "scripted" }
func (s *scriptedProvider) IsAvailable(_ context.Context) bool    { return true }
func (s *scriptedProvider) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	text := ""
	if s.calls < len(s.responses) {
		text = s.responses[s.calls]
	}
	s.calls++
	return &llm.Response{Text: text, Model: "scripted", TokensUsed: 5}, nil
}

func newTestExtractor(responses ...string) *Extractor {
	cfg := model.DefaultConfig()
	cfg.Extract.PreliminaryQueries = 0 // skip grounding search in unit tests
	gw := llm.NewGateway(&scriptedProvider{responses: responses}, 1)
	tracker := budget.NewTracker(cfg.Budget)
	return New(gw, nil, tracker, cfg.Extract, "quick", "strong")
}

const bridgeInput = "The bridge collapsed in 2023, killing 5 people."

func TestExtractor_TwoPassHappyPath(t *testing.T) {
	e := newTestExtractor(
		`{"claims": [{"text": "The bridge collapsed in 2023", "is_central": true}], "search_queries": ["bridge collapse 2023"]}`,
		`{"claims": [{"text": "The bridge collapsed in 2023 killing 5 people", "is_central": true, "opinion_score": 0.05, "specificity": 0.9}]}`,
	)

	res, err := e.Extract(context.Background(), bridgeInput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(res.Claims))
	}

	claim := res.Claims[0]
	if claim.ID == "" {
		t.Error("claim should be assigned an ID")
	}
	if !claim.IsCentral {
		t.Error("claim should be central")
	}
	if !claim.PassedFidelity {
		t.Error("claim derived from the input should pass fidelity")
	}
	if !claim.HarmPotential {
		t.Error("a claim mentioning killing should be flagged as harm-potential")
	}
}

func TestExtractor_FidelityFiltersEvidenceScope(t *testing.T) {
	// Pass 2 returns one faithful claim and one whose thesis comes from
	// elsewhere (an unrelated corporate-earnings scope).
	e := newTestExtractor(
		`{"claims": [{"text": "The bridge collapsed in 2023", "is_central": true}], "search_queries": []}`,
		`{"claims": [
			{"text": "The bridge collapsed in 2023 killing 5 people", "is_central": true, "opinion_score": 0.1, "specificity": 0.9},
			{"text": "Acme Corp quarterly earnings exceeded analyst projections substantially", "is_central": false, "opinion_score": 0.1, "specificity": 0.9}
		]}`,
	)

	res, err := e.Extract(context.Background(), bridgeInput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Claims) != 1 {
		t.Fatalf("expected the evidence-scoped claim to be filtered, got %d claims", len(res.Claims))
	}
	if res.Claims[0].Text != "The bridge collapsed in 2023 killing 5 people" {
		t.Errorf("wrong claim survived: %q", res.Claims[0].Text)
	}
}

func TestExtractor_RescueWhenGateFiltersEverything(t *testing.T) {
	input := "Universal basic income is the best policy for the economy."
	e := newTestExtractor(
		`{"claims": [{"text": "Universal basic income is the best policy", "is_central": true}], "search_queries": []}`,
		`{"claims": [{"text": "Universal basic income is the best policy for the economy", "is_central": true, "opinion_score": 0.9, "specificity": 0.4}]}`,
	)

	res, err := e.Extract(context.Background(), input)
	if err != nil {
		t.Fatalf("rescue should prevent an error, got: %v", err)
	}
	if len(res.Claims) != 1 {
		t.Fatalf("expected 1 rescued claim, got %d", len(res.Claims))
	}
	if res.Claims[0].Heuristic != "rescue" {
		t.Errorf("expected rescue heuristic, got %q", res.Claims[0].Heuristic)
	}

	found := false
	for _, w := range res.Warnings {
		if w.Code == model.WarnClaimRescue {
			found = true
		}
	}
	if !found {
		t.Error("expected claim_rescue_applied warning")
	}
}

func TestExtractor_SoftRefusalFallsBackToPass1(t *testing.T) {
	e := newTestExtractor(
		`{"claims": [{"text": "The bridge collapsed in 2023 killing people", "is_central": true}], "search_queries": []}`,
		`I'm sorry, but I can't help with claims about this incident.`,
	)

	res, err := e.Extract(context.Background(), bridgeInput)
	if err != nil {
		t.Fatalf("soft refusal should not fail extraction: %v", err)
	}
	if len(res.Claims) != 1 {
		t.Fatalf("expected pass 1 claim to survive, got %d", len(res.Claims))
	}
	if res.Claims[0].Heuristic != "pass1" {
		t.Errorf("expected pass1 fallback, got %q", res.Claims[0].Heuristic)
	}

	found := false
	for _, w := range res.Warnings {
		if w.Code == model.WarnSoftRefusal {
			found = true
		}
	}
	if !found {
		t.Error("expected soft_refusal_recovered warning")
	}
}

func TestExtractor_SchemaFailureDegradesToPass1(t *testing.T) {
	e := newTestExtractor(
		`{"claims": [{"text": "The bridge collapsed in 2023 killing people", "is_central": false}], "search_queries": []}`,
		`not json`,
		`still not json`, // corrective retry also fails
	)

	res, err := e.Extract(context.Background(), bridgeInput)
	if err != nil {
		t.Fatalf("schema failure should degrade, not fail: %v", err)
	}
	if len(res.Claims) != 1 || res.Claims[0].Heuristic != "pass1" {
		t.Fatalf("expected pass1 fallback, got %+v", res.Claims)
	}
	if len(res.Warnings) == 0 {
		t.Error("degradation must be recorded as a warning")
	}
}

func TestExtractor_LegacyAliasFieldsAreNormalized(t *testing.T) {
	e := newTestExtractor(
		`{"claims": [{"statement": "The bridge collapsed in 2023", "is_central": true}], "queries": ["bridge"]}`,
		`{"claims": [{"statement": "The bridge collapsed in 2023 killing 5 people", "is_central": true, "opinion": 0.1, "specificity_score": 0.9}]}`,
	)

	res, err := e.Extract(context.Background(), bridgeInput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Claims) != 1 {
		t.Fatalf("expected 1 claim from legacy-shaped output, got %d", len(res.Claims))
	}
	if res.Claims[0].Specificity != 0.9 {
		t.Errorf("legacy specificity_score not mapped: got %v", res.Claims[0].Specificity)
	}
}

func TestFaithfulToInput(t *testing.T) {
	input := "The Eiffel Tower was completed in 1889 for the World's Fair."

	if !faithfulToInput(input, "The Eiffel Tower was completed in 1889") {
		t.Error("claim restating the input should pass")
	}
	if faithfulToInput(input, "The Brooklyn Bridge opened to traffic carrying thousands of pedestrians") {
		t.Error("claim with foreign scope should fail")
	}
}
