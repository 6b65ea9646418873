package model

import "time"

// Config is the full pipeline configuration. It is built once at the entry
// point and threaded explicitly through every stage; stage logic performs
// no ambient config reads.
type Config struct {
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Budget    BudgetConfig    `yaml:"budget" mapstructure:"budget"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Cluster   ClusterConfig   `yaml:"cluster" mapstructure:"cluster"`
	Verdict   VerdictConfig   `yaml:"verdict" mapstructure:"verdict"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
}

// LLMConfig configures the model gateway
type LLMConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string `yaml:"model" mapstructure:"model"`       // Strong model for pass 2, debate, narrative
	QuickModel  string `yaml:"quick_model" mapstructure:"quick_model"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Timeout     int    `yaml:"timeout" mapstructure:"timeout"` // seconds per call
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"` // corrective retries on schema failure
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy  string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy     string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// SearchConfig points at the metasearch endpoint used for evidence discovery
type SearchConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"` // SearxNG-compatible endpoint
}

// HTTPConfig configures the evidence fetcher
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RatePerSecond float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// BudgetMode selects enforcement behavior when a cap is hit
type BudgetMode string

const (
	BudgetModeHard BudgetMode = "hard" // Further consumption fails closed
	BudgetModeSoft BudgetMode = "soft" // Log a warning, continue
)

// BudgetConfig caps work across the whole run and per claim
type BudgetConfig struct {
	Mode               BudgetMode `yaml:"mode" mapstructure:"mode"`
	GlobalIterations   int        `yaml:"global_iterations" mapstructure:"global_iterations"`
	PerClaimIterations int        `yaml:"per_claim_iterations" mapstructure:"per_claim_iterations"`
	GlobalTokens       int        `yaml:"global_tokens" mapstructure:"global_tokens"`
	PerClaimTokens     int        `yaml:"per_claim_tokens" mapstructure:"per_claim_tokens"`
}

// ExtractConfig governs Stage 1
type ExtractConfig struct {
	MaxClaims            int     `yaml:"max_claims" mapstructure:"max_claims"`
	MaxOpinionScore      float64 `yaml:"max_opinion_score" mapstructure:"max_opinion_score"`
	MinSpecificity       float64 `yaml:"min_specificity" mapstructure:"min_specificity"`
	PreliminaryQueries   int     `yaml:"preliminary_queries" mapstructure:"preliminary_queries"`
	PreliminaryPerQuery  int     `yaml:"preliminary_per_query" mapstructure:"preliminary_per_query"`
}

// ResearchConfig governs Stage 2
type ResearchConfig struct {
	MinEvidencePerClaim     int           `yaml:"min_evidence_per_claim" mapstructure:"min_evidence_per_claim"`
	ContradictionIterations int           `yaml:"contradiction_iterations" mapstructure:"contradiction_iterations"`
	Concurrency             int           `yaml:"concurrency" mapstructure:"concurrency"`
	FetchRetries            int           `yaml:"fetch_retries" mapstructure:"fetch_retries"`
	RetryBaseDelay          time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
}

// ClusterConfig governs Stage 3
type ClusterConfig struct {
	MaxBoundaries     int     `yaml:"max_boundaries" mapstructure:"max_boundaries"`
	MinCoherence      float64 `yaml:"min_coherence" mapstructure:"min_coherence"`
	MergeOverlapAbove float64 `yaml:"merge_overlap_above" mapstructure:"merge_overlap_above"`
}

// VerdictConfig governs Stage 4
type VerdictConfig struct {
	Concurrency          int     `yaml:"concurrency" mapstructure:"concurrency"`
	SpreadDemotionAbove  float64 `yaml:"spread_demotion_above" mapstructure:"spread_demotion_above"`
	ParallelDebates      bool    `yaml:"parallel_debates" mapstructure:"parallel_debates"`
}

// AggregateConfig holds the tunable weighting constants for Stage 5.
// The reliability formula is a deliberate policy choice, documented here
// rather than inferred: effectiveWeight = 0.5 + (score - 0.5) * confidence.
type AggregateConfig struct {
	CentralMultiplier   float64     `yaml:"central_multiplier" mapstructure:"central_multiplier"`
	HarmMultiplier      float64     `yaml:"harm_multiplier" mapstructure:"harm_multiplier"`
	ContestedMultiplier float64     `yaml:"contested_multiplier" mapstructure:"contested_multiplier"` // Must stay within 0.3-0.5
	Gate4               Gate4Config `yaml:"gate4" mapstructure:"gate4"`
}

// Gate4Threshold is one confidence tier's corroboration bar
type Gate4Threshold struct {
	MinSources   int     `yaml:"min_sources" mapstructure:"min_sources"`
	MinAgreement float64 `yaml:"min_agreement" mapstructure:"min_agreement"`
}

// Gate4Config sets the quality gate per confidence tier: a verdict claiming
// more confidence must be corroborated more strongly
type Gate4Config struct {
	High   Gate4Threshold `yaml:"high" mapstructure:"high"`
	Medium Gate4Threshold `yaml:"medium" mapstructure:"medium"`
	Low    Gate4Threshold `yaml:"low" mapstructure:"low"`
}

// For returns the threshold for the given tier
func (g Gate4Config) For(tier ConfidenceTier) Gate4Threshold {
	switch tier {
	case TierHigh:
		return g.High
	case TierMedium:
		return g.Medium
	default:
		return g.Low
	}
}

// CacheConfig configures search/fetch response caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "",
			Timeout:     60,
			MaxTokens:   2000,
			MaxRetries:  1,
			Temperature: 0.2,
		},
		HTTP: HTTPConfig{
			Timeout:       20 * time.Second,
			UserAgent:     "Veridex/0.1 (+https://github.com/veridex/veridex)",
			MaxBodyBytes:  2_000_000,
			RatePerSecond: 2,
			RateBurst:     5,
			RespectRobots: true,
		},
		Budget: BudgetConfig{
			Mode:               BudgetModeHard,
			GlobalIterations:   60,
			PerClaimIterations: 10,
			GlobalTokens:       400_000,
			PerClaimTokens:     80_000,
		},
		Extract: ExtractConfig{
			MaxClaims:           10,
			MaxOpinionScore:     0.3,
			MinSpecificity:      0.3,
			PreliminaryQueries:  3,
			PreliminaryPerQuery: 2,
		},
		Research: ResearchConfig{
			MinEvidencePerClaim:     3,
			ContradictionIterations: 2,
			Concurrency:             4,
			FetchRetries:            2,
			RetryBaseDelay:          500 * time.Millisecond,
		},
		Cluster: ClusterConfig{
			MaxBoundaries:     4,
			MinCoherence:      0.5,
			MergeOverlapAbove: 0.8,
		},
		Verdict: VerdictConfig{
			Concurrency:         3,
			SpreadDemotionAbove: 15,
			ParallelDebates:     true,
		},
		Aggregate: AggregateConfig{
			CentralMultiplier:   1.5,
			HarmMultiplier:      1.5,
			ContestedMultiplier: 0.4,
			Gate4: Gate4Config{
				High:   Gate4Threshold{MinSources: 3, MinAgreement: 0.7},
				Medium: Gate4Threshold{MinSources: 2, MinAgreement: 0.6},
				Low:    Gate4Threshold{MinSources: 1, MinAgreement: 0.5},
			},
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}
