package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Gateway wraps a Provider with structured-output semantics: responses are
// parsed as JSON into the caller's type, schema failures get one corrective
// retry that embeds the parse error, and soft refusals are surfaced as a
// distinct failure kind so stages can fall back to an earlier result.
type Gateway struct {
	provider   Provider
	maxRetries int
}

// NewGateway creates a gateway over the given provider
func NewGateway(provider Provider, maxRetries int) *Gateway {
	if maxRetries < 0 {
		maxRetries = 1
	}
	return &Gateway{provider: provider, maxRetries: maxRetries}
}

// CallResult is bookkeeping from a successful structured call
type CallResult struct {
	Model      string
	TokensUsed int
	Retried    bool
}

// CallStructured runs the request and unmarshals the JSON response into out.
// out must be a pointer. On schema failure it retries up to the configured
// count with a corrective prompt, then gives up with FailureSchema.
func (g *Gateway) CallStructured(ctx context.Context, req Request, out interface{}) (CallResult, *CallFailure) {
	if g.provider == nil {
		return CallResult{}, &CallFailure{Kind: FailureUnavailable, Reason: "no LLM provider configured"}
	}

	var result CallResult
	prompt := req.Prompt

	for attempt := 0; ; attempt++ {
		attemptReq := req
		attemptReq.Prompt = prompt

		resp, err := g.provider.Complete(ctx, attemptReq)
		if err != nil {
			return result, &CallFailure{Kind: FailureTransient, Reason: "provider call failed", Err: err}
		}
		result.Model = resp.Model
		result.TokensUsed += resp.TokensUsed

		if isSoftRefusal(resp.Text) {
			return result, &CallFailure{Kind: FailureRefusal, Reason: firstLine(resp.Text)}
		}

		payload := extractJSON(resp.Text)
		if err := json.Unmarshal([]byte(payload), out); err == nil {
			return result, nil
		} else if attempt < g.maxRetries {
			// Corrective retry: repeat the request with the parse error so
			// the model can repair its own output.
			prompt = fmt.Sprintf("%s\n\nYour previous response was not valid JSON matching the requested structure (error: %v). Respond again with ONLY the corrected JSON object, no prose.", req.Prompt, err)
			result.Retried = true
			continue
		} else {
			return result, &CallFailure{
				Kind:   FailureSchema,
				Reason: fmt.Sprintf("response did not match expected structure after %d attempt(s)", attempt+1),
				Err:    err,
			}
		}
	}
}

// extractJSON strips code fences and surrounding prose from a model response,
// returning the outermost JSON object or array it can find.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}

	var end int
	if text[start] == '{' {
		end = strings.LastIndex(text, "}")
	} else {
		end = strings.LastIndex(text, "]")
	}
	if end <= start {
		return text
	}
	return text[start : end+1]
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 160 {
		text = text[:160]
	}
	return text
}
