package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/veridex/veridex/internal/model"
)

// Assessor runs one full assessment over an input text
type Assessor interface {
	Assess(ctx context.Context, input string) (*model.Envelope, error)
}

// AssessJob is one input text queued for assessment
type AssessJob struct {
	Input    string
	Assessor Assessor
}

// Execute runs the assessment
func (j *AssessJob) Execute(ctx context.Context) Result {
	env, err := j.Assessor.Assess(ctx, j.Input)
	return &AssessResult{
		Input:    j.Input,
		Envelope: env,
		Error:    err,
	}
}

// AssessResult is the outcome of one batch item. Envelope may be non-nil
// even when Error is set: extraction failures return a partial envelope.
type AssessResult struct {
	Input    string
	Envelope *model.Envelope
	Error    error
}

// GetError returns the error from the assessment
func (r *AssessResult) GetError() error {
	return r.Error
}

// BatchProcessor assesses multiple inputs concurrently
type BatchProcessor struct {
	assessor    Assessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(assessor Assessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		assessor:    assessor,
		concurrency: concurrency,
	}
}

// ProcessInputs assesses the given inputs concurrently
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []string) []*AssessResult {
	if len(inputs) == 0 {
		return []*AssessResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start(ctx)

	for _, input := range inputs {
		pool.Submit(&AssessJob{Input: input, Assessor: b.assessor})
	}

	results := pool.Wait()

	out := make([]*AssessResult, len(results))
	for i, result := range results {
		out[i] = result.(*AssessResult)
	}
	return out
}

// ProcessFile reads inputs from a file (one per line) and assesses them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AssessResult, error) {
	inputs, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	return b.ProcessInputs(ctx, inputs), nil
}

// ReadInputsFromFile reads one input per line, skipping blanks, comments,
// and duplicates
func ReadInputsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		inputs = append(inputs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
