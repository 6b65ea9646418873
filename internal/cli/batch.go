package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/veridex/veridex/internal/evidence"
	"github.com/veridex/veridex/internal/pipeline"
	"github.com/veridex/veridex/internal/worker"
)

var (
	batchConcurrency int
	outputDir        string
	batchTimeout     time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify multiple inputs from a file in parallel",
	Long: `Batch assesses multiple inputs concurrently:
- Read inputs from a file (one statement per line, # for comments)
- Run full assessments in parallel with a configurable worker count
- Write one JSON and Markdown report per input

Example:
  veridex batch statements.txt
  veridex batch statements.txt --concurrency 4 --output-dir ./reports
  veridex batch statements.txt --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", runtime.NumCPU(), "number of concurrent assessments")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./veridex-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")

	// Shared flags, same meaning as on verify
	batchCmd.Flags().StringVar(&searchURL, "search-url", "", "SearxNG-compatible search endpoint (or VERIDEX_SEARCH_BASE_URL)")
	batchCmd.Flags().StringVar(&userAgent, "ua", "Veridex/0.1 (+https://github.com/veridex/veridex)", "HTTP User-Agent")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable search/fetch caching")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	batchCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o", "strong model for research, debate, and narrative")
	batchCmd.Flags().StringVar(&quickModel, "quick-model", "gpt-4o-mini", "cheap model for the first extraction pass")
	batchCmd.Flags().StringVar(&budgetMode, "budget-mode", "hard", "budget enforcement: hard (stop) or soft (warn)")
	batchCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "global research iteration cap per input (0 = default)")
	batchCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "global token cap per input (0 = default)")
	batchCmd.Flags().IntVar(&minEvidence, "min-evidence", 0, "minimum evidence items per claim (0 = default)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veridex Batch Assessment\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", batchConcurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "\n")

	searcher := evidence.NewHTTPSearcher(cfg.Search.BaseURL, cfg.HTTP)
	p, err := pipeline.New(cfg, searcher)
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(p, batchConcurrency)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	successCount, failureCount := 0, 0

	for i, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %.60q: %v\n", result.Input, result.Error)
			continue
		}
		successCount++

		slug := fmt.Sprintf("assessment-%03d", i+1)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Envelope, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", slug, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Envelope, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", slug, err)
			continue
		}

		label := "?"
		if result.Envelope.Assessment != nil {
			label = string(result.Envelope.Assessment.OverallLabel)
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %s (%d claims, %d warnings)\n",
			slug, label, len(result.Envelope.Claims), len(result.Envelope.Warnings))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d inputs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
