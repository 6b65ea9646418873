package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/veridex/veridex/internal/budget"
	"github.com/veridex/veridex/internal/evidence"
	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
)

// funcProvider answers every completion with fn's output
type funcProvider struct {
	fn func(req llm.Request) (string, error)
}

func (p *funcProvider) Name() string                       { return "func" }
func (p *funcProvider) IsAvailable(_ context.Context) bool { return true }
func (p *funcProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	text, err := p.fn(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: text, Model: "func", TokensUsed: 10}, nil
}

// recordingSearcher captures queries and answers from a script
type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	results []evidence.SearchResult
	err     error
}

func (s *recordingSearcher) Search(_ context.Context, query string) ([]evidence.SearchResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *recordingSearcher) queryLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

type staticFetcher struct{ text string }

func (f *staticFetcher) Fetch(_ context.Context, url string) (*evidence.Document, error) {
	return &evidence.Document{URL: url, Text: f.text}, nil
}

func testClaim(id, text string) model.Claim {
	return model.Claim{ID: id, Text: text, PassedFidelity: true}
}

func factsJSON(urls ...string) string {
	var b strings.Builder
	b.WriteString(`{"facts": [`)
	for i, u := range urls {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"source_url": "` + u + `", "excerpt": "excerpt from ` + u + `", "stance": "supports"}`)
	}
	b.WriteString(`]}`)
	return b.String()
}

func newTestResearcher(searcher evidence.Searcher, providerJSON string, cfg model.ResearchConfig, tracker *budget.Tracker) *Researcher {
	svc := evidence.NewService(searcher, &staticFetcher{text: "document body"}, nil, 0)
	gw := llm.NewGateway(&funcProvider{fn: func(llm.Request) (string, error) { return providerJSON, nil }}, 1)
	r := New(gw, svc, evidence.TLDOracle{}, tracker, cfg, "m")
	r.sleep = func(time.Duration) {}
	return r
}

func defaultResearchConfig() model.ResearchConfig {
	cfg := model.DefaultConfig().Research
	cfg.Concurrency = 1
	return cfg
}

func TestResearcher_StopsAtMinimumThenRunsContradictionSearch(t *testing.T) {
	searcher := &recordingSearcher{results: []evidence.SearchResult{
		{URL: "https://a.example/1"}, {URL: "https://b.example/2"}, {URL: "https://c.example/3"},
	}}
	tracker := budget.NewTracker(model.DefaultConfig().Budget)
	r := newTestResearcher(searcher, factsJSON("https://a.example/1", "https://b.example/2", "https://c.example/3"), defaultResearchConfig(), tracker)

	res := r.Research(context.Background(), []model.Claim{testClaim("c1", "the dam failed in 2021")})

	if got := len(res.Pool.ForClaim("c1")); got < 3 {
		t.Fatalf("expected at least 3 evidence items, got %d", got)
	}

	// One support query to reach the minimum, then exactly two reserved
	// contradiction queries - mandatory, not best-effort.
	queries := searcher.queryLog()
	if len(queries) != 3 {
		t.Fatalf("expected 3 queries (1 support + 2 contradiction), got %d: %v", len(queries), queries)
	}
	for _, q := range queries[1:] {
		if !strings.Contains(q, "debunked") && !strings.Contains(q, "criticism") {
			t.Errorf("expected contradiction query, got %q", q)
		}
	}
}

func TestResearcher_ZeroSourcesEmitsCollapseWarning(t *testing.T) {
	searcher := &recordingSearcher{err: errors.New("connection refused")}
	tracker := budget.NewTracker(model.DefaultConfig().Budget)
	r := newTestResearcher(searcher, factsJSON(), defaultResearchConfig(), tracker)

	res := r.Research(context.Background(), []model.Claim{testClaim("c1", "x happened")})

	if len(res.Pool.ForClaim("c1")) != 0 {
		t.Error("expected empty pool for the claim")
	}
	found := false
	for _, w := range res.Warnings {
		if w.Code == model.WarnSourceAcquisitionCollapse && w.ClaimID == "c1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected source_acquisition_collapse warning, got %+v", res.Warnings)
	}
}

func TestResearcher_RetriesTransportErrorsWithBackoff(t *testing.T) {
	attempts := 0
	searcher := &flakySearcher{failures: 2, onCall: func() { attempts++ }}
	tracker := budget.NewTracker(model.DefaultConfig().Budget)

	cfg := defaultResearchConfig()
	cfg.MinEvidencePerClaim = 1
	cfg.ContradictionIterations = 0

	var slept []time.Duration
	svc := evidence.NewService(searcher, &staticFetcher{text: "body"}, nil, 0)
	gw := llm.NewGateway(&funcProvider{fn: func(llm.Request) (string, error) {
		return factsJSON("https://a.example/1"), nil
	}}, 1)
	r := New(gw, svc, evidence.TLDOracle{}, tracker, cfg, "m")
	r.sleep = func(d time.Duration) { slept = append(slept, d) }

	res := r.Research(context.Background(), []model.Claim{testClaim("c1", "x")})

	if len(res.Pool.ForClaim("c1")) != 1 {
		t.Fatalf("expected recovery after retries, pool has %d items", len(res.Pool.ForClaim("c1")))
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(slept))
	}
	if slept[1] != 2*slept[0] {
		t.Errorf("expected exponential backoff, got %v then %v", slept[0], slept[1])
	}
}

func TestResearcher_NoResultsIsNotRetried(t *testing.T) {
	searcher := &recordingSearcher{results: nil} // empty results -> ErrNoResults
	tracker := budget.NewTracker(model.DefaultConfig().Budget)

	cfg := defaultResearchConfig()
	cfg.MinEvidencePerClaim = 1
	cfg.ContradictionIterations = 0

	r := newTestResearcher(searcher, factsJSON(), cfg, tracker)
	slept := 0
	r.sleep = func(time.Duration) { slept++ }

	r.Research(context.Background(), []model.Claim{testClaim("c1", "x")})

	if slept != 0 {
		t.Errorf(`"no results" must not trigger retry backoff; slept %d times`, slept)
	}
}

func TestResearcher_BudgetExhaustionStopsEarlyWithWarning(t *testing.T) {
	searcher := &recordingSearcher{results: []evidence.SearchResult{{URL: "https://a.example/1"}}}

	cfg := model.DefaultConfig().Budget
	cfg.GlobalIterations = 3 // reachable mid-run for a 5-claim input
	tracker := budget.NewTracker(cfg)

	rcfg := defaultResearchConfig()
	rcfg.MinEvidencePerClaim = 1
	rcfg.ContradictionIterations = 1

	r := newTestResearcher(searcher, factsJSON("https://a.example/1"), rcfg, tracker)

	claims := make([]model.Claim, 5)
	for i := range claims {
		claims[i] = testClaim(string(rune('a'+i)), "claim text")
	}
	res := r.Research(context.Background(), claims)

	if !tracker.Exhausted(budget.KindIteration) {
		t.Fatal("setup: budget should be exhausted")
	}
	found := false
	for _, w := range res.Warnings {
		if w.Code == model.WarnBudgetExhausted {
			found = true
		}
	}
	if !found {
		t.Error("expected budget_exhausted warning")
	}
	if res.Iterations > 3 {
		t.Errorf("iterations %d exceeded the global cap of 3", res.Iterations)
	}
}

func TestResearcher_EvidenceShortfallWarnsEvenWithoutCollapse(t *testing.T) {
	// One source succeeds but the minimum is 3: warnings must be non-empty.
	searcher := &onceSearcher{result: evidence.SearchResult{URL: "https://a.example/1"}}
	tracker := budget.NewTracker(model.DefaultConfig().Budget)
	r := newTestResearcher(searcher, factsJSON("https://a.example/1"), defaultResearchConfig(), tracker)

	res := r.Research(context.Background(), []model.Claim{testClaim("c1", "x")})

	if len(res.Warnings) == 0 {
		t.Fatal("completed evidence below expected minimum must produce a warning")
	}
}

func TestResearcher_DerivativesDoNotSatisfyMinimum(t *testing.T) {
	// Every query yields two excerpts from the same host: only one counts.
	// The loop must keep searching instead of declaring sufficiency, and the
	// shortfall warning must report the qualifying count.
	searcher := &recordingSearcher{results: []evidence.SearchResult{
		{URL: "https://a.example/1"}, {URL: "https://a.example/2"},
	}}
	tracker := budget.NewTracker(model.DefaultConfig().Budget)

	cfg := defaultResearchConfig()
	cfg.MinEvidencePerClaim = 2
	cfg.ContradictionIterations = 0

	r := newTestResearcher(searcher, factsJSON("https://a.example/1", "https://a.example/2"), cfg, tracker)

	res := r.Research(context.Background(), []model.Claim{testClaim("c1", "x happened")})

	if got := len(searcher.queryLog()); got < 2 {
		t.Fatalf("same-host duplicates should not satisfy the minimum; stopped after %d queries", got)
	}
	found := false
	for _, w := range res.Warnings {
		if w.Code == model.WarnEvidenceShortfall && w.ClaimID == "c1" {
			found = true
			if !strings.Contains(w.Message, "1 of 2") {
				t.Errorf("shortfall should count qualifying items only, got %q", w.Message)
			}
		}
	}
	if !found {
		t.Errorf("expected evidence_shortfall warning, got %+v", res.Warnings)
	}
}

func TestIsDerivative(t *testing.T) {
	existing := []model.EvidenceItem{
		{SourceURL: "https://news.example/story", ExcerptText: "The dam failed on Tuesday."},
	}

	sameHost := model.EvidenceItem{SourceURL: "https://news.example/other", ExcerptText: "Different text entirely."}
	if !isDerivative(sameHost, existing) {
		t.Error("same-host item should be flagged derivative")
	}

	syndicated := model.EvidenceItem{SourceURL: "https://mirror.example/copy", ExcerptText: "The dam failed on Tuesday."}
	if !isDerivative(syndicated, existing) {
		t.Error("near-duplicate excerpt should be flagged derivative")
	}

	fresh := model.EvidenceItem{SourceURL: "https://other.example/report", ExcerptText: "Inspection records from 2019 showed cracks."}
	if isDerivative(fresh, existing) {
		t.Error("independent item should not be flagged derivative")
	}
}

// flakySearcher fails the first N calls with a transport error
type flakySearcher struct {
	mu       sync.Mutex
	failures int
	onCall   func()
}

func (s *flakySearcher) Search(_ context.Context, _ string) ([]evidence.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onCall != nil {
		s.onCall()
	}
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("upstream 503")
	}
	return []evidence.SearchResult{{URL: "https://a.example/1"}}, nil
}

// onceSearcher returns one result for the first query, then nothing
type onceSearcher struct {
	mu     sync.Mutex
	result evidence.SearchResult
	used   bool
}

func (s *onceSearcher) Search(_ context.Context, _ string) ([]evidence.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return nil, nil
	}
	s.used = true
	return []evidence.SearchResult{s.result}, nil
}
