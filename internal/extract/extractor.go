package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/veridex/veridex/internal/budget"
	"github.com/veridex/veridex/internal/evidence"
	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
)

// Extractor runs the two-pass claim extraction: a quick scan, a small
// grounding search, then an evidence-grounded re-extraction, followed by
// the claim-validation gate.
type Extractor struct {
	gateway *llm.Gateway
	svc     *evidence.Service
	tracker *budget.Tracker
	cfg     model.ExtractConfig

	quickModel  string
	strongModel string
}

// New creates an extractor
func New(gateway *llm.Gateway, svc *evidence.Service, tracker *budget.Tracker, cfg model.ExtractConfig, quickModel, strongModel string) *Extractor {
	return &Extractor{
		gateway:     gateway,
		svc:         svc,
		tracker:     tracker,
		cfg:         cfg,
		quickModel:  quickModel,
		strongModel: strongModel,
	}
}

// Result is the Stage 1 output
type Result struct {
	Claims     []model.Claim
	Warnings   []model.Warning
	LLMCalls   int
	TokensUsed int
	Model      string
}

// Extract produces validated atomic claims from the input text.
// It returns an error only when no claim can be produced at all, even
// after the safety-net rescue; every other failure degrades with a warning.
func (e *Extractor) Extract(ctx context.Context, input string) (*Result, error) {
	res := &Result{Model: e.strongModel}

	pass1, fail := e.quickScan(ctx, input, res)
	if fail != nil {
		return nil, fmt.Errorf("quick scan: %w", fail)
	}
	if len(pass1.Claims) == 0 {
		return nil, fmt.Errorf("quick scan extracted no claims from input")
	}

	grounding := e.preliminarySearch(ctx, pass1.queries(), res)

	claims := e.refine(ctx, input, pass1, grounding, res)

	claims = e.applyGate(input, claims, res)
	if len(claims) == 0 {
		return nil, fmt.Errorf("no valid claims after gate and rescue")
	}

	for i := range claims {
		claims[i].ID = uuid.NewString()
		claims[i].HarmPotential = hasHarmKeyword(claims[i].Text)
	}

	res.Claims = claims
	return res, nil
}

// quickScan is pass 1: a cheap call over the raw input
func (e *Extractor) quickScan(ctx context.Context, input string, res *Result) (*pass1Output, *llm.CallFailure) {
	var out pass1Output
	call, fail := e.gateway.CallStructured(ctx, llm.Request{
		System: extractionSystemPrompt,
		Prompt: buildPass1Prompt(input, e.cfg.MaxClaims),
		Model:  e.quickModel,
	}, &out)
	res.LLMCalls++
	res.TokensUsed += call.TokensUsed
	if fail != nil {
		return nil, fail
	}
	out.normalize()
	return &out, nil
}

// preliminarySearch runs the pass 1 queries to obtain a small grounding set,
// just enough to check specificity; it is not the full evidence pool.
func (e *Extractor) preliminarySearch(ctx context.Context, queries []string, res *Result) []string {
	var grounding []string
	for i, query := range queries {
		if i >= e.cfg.PreliminaryQueries {
			break
		}
		if d := e.tracker.Consume(budget.KindIteration, "", 1); !d.OK {
			break
		}
		docs, err := e.svc.Gather(ctx, query)
		if err != nil {
			continue // Grounding is best-effort; Stage 2 does the real research
		}
		for j, doc := range docs {
			if j >= e.cfg.PreliminaryPerQuery {
				break
			}
			grounding = append(grounding, truncate(doc.Text, 600))
		}
	}
	return grounding
}

// refine is pass 2: a stronger call given input plus grounding snippets.
// Soft refusals and persistent schema failures both degrade to pass 1 output.
func (e *Extractor) refine(ctx context.Context, input string, pass1 *pass1Output, grounding []string, res *Result) []model.Claim {
	var out pass2Output
	call, fail := e.gateway.CallStructured(ctx, llm.Request{
		System: extractionSystemPrompt,
		Prompt: buildPass2Prompt(input, pass1.claimTexts(), grounding, e.cfg.MaxClaims),
		Model:  e.strongModel,
	}, &out)
	res.LLMCalls++
	res.TokensUsed += call.TokensUsed

	if fail != nil {
		code := model.WarnSchemaDegraded
		if fail.Kind == llm.FailureRefusal {
			code = model.WarnSoftRefusal
		}
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    code,
			Stage:   "extract",
			Message: fmt.Sprintf("pass 2 degraded to pass 1 output: %s", fail.Reason),
		})
		return pass1.toClaims()
	}

	out.normalize()
	claims := out.toClaims()
	if len(claims) == 0 {
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnSchemaDegraded,
			Stage:   "extract",
			Message: "pass 2 returned no claims; using pass 1 output",
		})
		return pass1.toClaims()
	}
	return claims
}

func hasHarmKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range model.HarmKeywords() {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
