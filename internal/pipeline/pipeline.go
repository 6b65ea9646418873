package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veridex/veridex/internal/aggregate"
	"github.com/veridex/veridex/internal/budget"
	"github.com/veridex/veridex/internal/cache"
	"github.com/veridex/veridex/internal/cluster"
	"github.com/veridex/veridex/internal/evidence"
	"github.com/veridex/veridex/internal/extract"
	"github.com/veridex/veridex/internal/llm"
	"github.com/veridex/veridex/internal/model"
	"github.com/veridex/veridex/internal/research"
	"github.com/veridex/veridex/internal/verdict"
)

// Pipeline orchestrates the five assessment stages. Stages communicate only
// through their returned artifacts; the budget tracker is the single shared
// control surface.
type Pipeline struct {
	extractor  *extract.Extractor
	researcher *research.Researcher
	clusterer  *cluster.Clusterer
	generator  *verdict.Generator
	narrator   *aggregate.Narrator
	tracker    *budget.Tracker
	renderer   *Renderer
	config     *model.Config
}

// New creates a pipeline from configuration. The searcher is the external
// search collaborator; everything else is built here.
func New(cfg *model.Config, searcher evidence.Searcher) (*Pipeline, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("init LLM provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("an LLM provider is required (set llm.provider to openai, anthropic, or ollama)")
	}
	gateway := llm.NewGateway(provider, cfg.LLM.MaxRetries)

	var c cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Dir != "" {
			c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		} else {
			c = cache.NewMemoryCache(cfg.Cache.MemoryTTL, 10*time.Minute)
		}
	}

	svc := evidence.NewService(searcher, evidence.NewHTTPFetcher(cfg.HTTP), c, cfg.Cache.MemoryTTL)
	tracker := budget.NewTracker(cfg.Budget)

	quickModel := cfg.LLM.QuickModel
	if quickModel == "" {
		quickModel = cfg.LLM.Model
	}

	return &Pipeline{
		extractor:  extract.New(gateway, svc, tracker, cfg.Extract, quickModel, cfg.LLM.Model),
		researcher: research.New(gateway, svc, evidence.TLDOracle{}, tracker, cfg.Research, cfg.LLM.Model),
		clusterer:  cluster.New(gateway, cfg.Cluster, cfg.LLM.Model),
		generator:  verdict.New(gateway, cfg.Verdict, cfg.LLM.Model),
		narrator:   aggregate.NewNarrator(gateway, cfg.LLM.Model),
		tracker:    tracker,
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		config:     cfg,
	}, nil
}

// Assess runs the full pipeline over one input text. Only a total Stage 1
// failure terminates the run; every later stage degrades into warnings and
// partial results inside the envelope. The partial envelope is returned even
// on error so callers can inspect what was recorded before the failure.
func (p *Pipeline) Assess(ctx context.Context, input string) (*model.Envelope, error) {
	env := &model.Envelope{
		Input:    input,
		Evidence: model.NewEvidencePool(),
		Metadata: model.RunMetadata{
			RunID:     uuid.NewString(),
			StartedAt: time.Now().UTC(),
			Stages:    make(map[string]model.StageMetadata),
		},
	}

	// Stage 1: extraction
	start := time.Now()
	extracted, err := p.extractor.Extract(ctx, input)
	if err != nil {
		env.Metadata.FinishedAt = time.Now().UTC()
		return env, fmt.Errorf("extract claims: %w", err)
	}
	env.Claims = extracted.Claims
	env.Warnings = append(env.Warnings, extracted.Warnings...)
	p.tracker.Consume(budget.KindToken, "", extracted.TokensUsed)
	env.Metadata.Stages["extract"] = model.StageMetadata{
		Model:    extracted.Model,
		Duration: time.Since(start),
		LLMCalls: extracted.LLMCalls,
	}

	// Stage 2: research
	start = time.Now()
	researched := p.researcher.Research(ctx, env.Claims)
	env.Evidence = researched.Pool
	env.Warnings = append(env.Warnings, researched.Warnings...)
	env.Metadata.Stages["research"] = model.StageMetadata{
		Model:      p.config.LLM.Model,
		Duration:   time.Since(start),
		Iterations: researched.Iterations,
		LLMCalls:   researched.LLMCalls,
	}

	// Stage 3: boundary clustering
	start = time.Now()
	clustered := p.clusterer.Cluster(ctx, env.Evidence)
	env.Boundaries = clustered.Boundaries
	env.Warnings = append(env.Warnings, clustered.Warnings...)
	p.tracker.Consume(budget.KindToken, "", clustered.TokensUsed)
	env.Metadata.Stages["cluster"] = model.StageMetadata{
		Model:    p.config.LLM.Model,
		Duration: time.Since(start),
		LLMCalls: clustered.LLMCalls,
	}

	// Stage 4: debate verdicts
	start = time.Now()
	judged := p.generator.Generate(ctx, env.Claims, env.Boundaries, env.Evidence)
	env.Verdicts = judged.Verdicts
	env.Warnings = append(env.Warnings, judged.Warnings...)
	p.tracker.Consume(budget.KindToken, "", judged.TokensUsed)
	env.Metadata.Stages["verdict"] = model.StageMetadata{
		Model:      p.config.LLM.Model,
		Duration:   time.Since(start),
		Iterations: judged.Debates,
		LLMCalls:   judged.LLMCalls,
	}

	// Stage 5: aggregation, then the descriptive narrative on top of the
	// already-final numbers
	start = time.Now()
	agg := aggregate.Compute(env.Claims, env.Boundaries, env.Verdicts, env.Evidence, p.config.Aggregate)
	env.Assessment = agg.Assessment
	env.Warnings = append(env.Warnings, agg.Warnings...)

	narrated := p.narrator.Narrate(ctx, env.Claims, env.Verdicts, env.Assessment)
	env.Warnings = append(env.Warnings, narrated.Warnings...)
	p.tracker.Consume(budget.KindToken, "", narrated.TokensUsed)
	env.Metadata.Stages["aggregate"] = model.StageMetadata{
		Model:    p.config.LLM.Model,
		Duration: time.Since(start),
		LLMCalls: narrated.LLMCalls,
	}

	env.Metadata.FinishedAt = time.Now().UTC()
	return env, nil
}

// RenderReport renders the envelope to the requested outputs
func (p *Pipeline) RenderReport(env *model.Envelope, jsonPath, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(env, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(env, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	p.renderer.RenderSummary(env)
	return nil
}
