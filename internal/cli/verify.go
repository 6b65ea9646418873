package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/veridex/veridex/internal/evidence"
	"github.com/veridex/veridex/internal/model"
	"github.com/veridex/veridex/internal/pipeline"
)

var (
	outJSON       string
	outMD         string
	timeout       time.Duration
	inputFile     string
	inputURL      string
	searchURL     string
	userAgent     string
	noCache       bool
	noFooter      bool
	llmProvider   string
	llmModel      string
	quickModel    string
	budgetMode    string
	maxIterations int
	maxTokens     int
	minEvidence   int
	httpProxy     string
	httpsProxy    string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [text]",
	Short: "Verify the factual claims in a piece of text",
	Long: `Verify runs the full assessment pipeline over one input:
- Extract atomic factual claims (two-pass, evidence-grounded)
- Research supporting AND contradicting evidence per claim
- Cluster evidence into assessment boundaries
- Debate each claim adversarially per boundary
- Aggregate into one weighted verdict with a quality gate

The input is the argument text, a file (--file), or a web page (--url).

Example:
  veridex verify "The dam failed in 2021, killing 12 people."
  veridex verify --file statement.txt --json report.json --md report.md
  veridex verify --url https://example.com/article --llm-provider anthropic`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	// Input flags
	verifyCmd.Flags().StringVar(&inputFile, "file", "", "read the input text from a file")
	verifyCmd.Flags().StringVar(&inputURL, "url", "", "fetch the input text from a web page")

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	verifyCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// HTTP / search flags
	verifyCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall assessment timeout")
	verifyCmd.Flags().StringVar(&searchURL, "search-url", "", "SearxNG-compatible search endpoint (or VERIDEX_SEARCH_BASE_URL)")
	verifyCmd.Flags().StringVar(&userAgent, "ua", "Veridex/0.1 (+https://github.com/veridex/veridex)", "HTTP User-Agent")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable search/fetch caching")
	verifyCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	verifyCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// LLM flags
	verifyCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	verifyCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o", "strong model for research, debate, and narrative")
	verifyCmd.Flags().StringVar(&quickModel, "quick-model", "gpt-4o-mini", "cheap model for the first extraction pass")

	// Budget flags
	verifyCmd.Flags().StringVar(&budgetMode, "budget-mode", "hard", "budget enforcement: hard (stop) or soft (warn)")
	verifyCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "global research iteration cap (0 = default)")
	verifyCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "global token cap (0 = default)")
	verifyCmd.Flags().IntVar(&minEvidence, "min-evidence", 0, "minimum evidence items per claim (0 = default)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	input, err := resolveInput(ctx, args, cfg)
	if err != nil {
		return err
	}

	searcher := evidence.NewHTTPSearcher(cfg.Search.BaseURL, cfg.HTTP)
	p, err := pipeline.New(cfg, searcher)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Assessing %d characters of input\n", len(input))
		fmt.Fprintf(os.Stderr, "LLM: %s/%s (quick: %s)\n", cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.QuickModel)
		fmt.Fprintln(os.Stderr)
	}

	env, err := p.Assess(ctx, input)
	if err != nil {
		return fmt.Errorf("assessment failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Extracted %d claims\n", len(env.Claims))
		fmt.Fprintf(os.Stderr, "✓ Gathered %d evidence items\n", len(env.Evidence.Items))
		fmt.Fprintf(os.Stderr, "✓ Formed %d boundaries\n", len(env.Boundaries))
		fmt.Fprintf(os.Stderr, "✓ Produced %d verdicts\n", len(env.Verdicts))
		fmt.Fprintln(os.Stderr)
	}

	if err := p.RenderReport(env, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}

// resolveInput picks the input text from the argument, file, or URL
func resolveInput(ctx context.Context, args []string, cfg *model.Config) (string, error) {
	sources := 0
	if len(args) == 1 {
		sources++
	}
	if inputFile != "" {
		sources++
	}
	if inputURL != "" {
		sources++
	}
	if sources != 1 {
		return "", fmt.Errorf("provide exactly one input: a text argument, --file, or --url")
	}

	switch {
	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case inputURL != "":
		doc, err := evidence.NewHTTPFetcher(cfg.HTTP).Fetch(ctx, inputURL)
		if err != nil {
			return "", fmt.Errorf("fetch input URL: %w", err)
		}
		return doc.Text, nil
	default:
		return strings.TrimSpace(args[0]), nil
	}
}

// buildConfig assembles the pipeline configuration from defaults, the config
// file / environment (via viper), and flags
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	cfg.HTTP.UserAgent = userAgent
	cfg.HTTP.HTTPProxy = httpProxy
	cfg.HTTP.HTTPSProxy = httpsProxy
	cfg.Cache.Enabled = !noCache
	cfg.Output.IncludeFooter = !noFooter

	cfg.Search.BaseURL = searchURL
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = viper.GetString("search_base_url")
	}
	if cfg.Search.BaseURL == "" {
		return nil, fmt.Errorf("no search endpoint configured (use --search-url or VERIDEX_SEARCH_BASE_URL)")
	}

	cfg.Budget.Mode = model.BudgetMode(budgetMode)
	if cfg.Budget.Mode != model.BudgetModeHard && cfg.Budget.Mode != model.BudgetModeSoft {
		return nil, fmt.Errorf("invalid budget mode %q (use hard or soft)", budgetMode)
	}
	if maxIterations > 0 {
		cfg.Budget.GlobalIterations = maxIterations
	}
	if maxTokens > 0 {
		cfg.Budget.GlobalTokens = maxTokens
	}
	if minEvidence > 0 {
		cfg.Research.MinEvidencePerClaim = minEvidence
	}

	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel
	cfg.LLM.QuickModel = quickModel
	if err := applyLLMEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyLLMEnv pulls provider credentials from the environment
func applyLLMEnv(cfg *model.Config) error {
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}
