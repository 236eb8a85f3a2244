package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// LLMConfig configures the langchaingo-backed invoker.
type LLMConfig struct {
	// BaseURL is the chat completions endpoint. Any OpenAI-compatible
	// server works (OpenAI, vLLM, llama.cpp server).
	BaseURL string `koanf:"base_url"`

	// Model is the chat model name.
	Model string `koanf:"model"`

	// APIKey authenticates against the endpoint.
	APIKey string `koanf:"api_key"`

	// Temperature for generation. Kept low: stage outputs are parsed as
	// structured JSON and drift is worse than blandness here.
	Temperature float64 `koanf:"temperature"`

	// MaxTokens bounds a single completion.
	MaxTokens int `koanf:"max_tokens"`
}

// ApplyDefaults fills unset fields.
func (c *LLMConfig) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
}

// LLMInvoker executes stage capabilities against a chat model.
type LLMInvoker struct {
	llm    llms.Model
	config LLMConfig
	logger *zap.Logger
}

// NewLLMInvoker builds an invoker for the configured endpoint.
func NewLLMInvoker(config LLMConfig, logger *zap.Logger) (*LLMInvoker, error) {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []openai.Option{
		openai.WithModel(config.Model),
		openai.WithToken(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}
	return &LLMInvoker{llm: llm, config: config, logger: logger}, nil
}

// Invoke renders the stage prompt, calls the model, and parses the JSON
// envelope back out. Transport failures map to ErrUnavailable so the
// runner can retry; unparseable output is a content failure and does not.
func (i *LLMInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	prompt, err := renderPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt for %s: %w", req.Stage, err)
	}

	raw, err := llms.GenerateFromSinglePrompt(ctx, i.llm, prompt,
		llms.WithTemperature(i.config.Temperature),
		llms.WithMaxTokens(i.config.MaxTokens),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, req.Stage, err)
	}

	resp, err := parseResponse(raw)
	if err != nil {
		i.logger.Warn("unparseable model output",
			zap.String("stage", req.Stage),
			zap.Int("output_bytes", len(raw)))
		return nil, fmt.Errorf("parsing %s output: %w", req.Stage, err)
	}
	return resp, nil
}

// renderPrompt builds the stage prompt: the directive, the intake, the
// dependency outputs, and the retrieval set with explicit source IDs the
// model must cite from.
func renderPrompt(req Request) (string, error) {
	var b strings.Builder

	b.WriteString(req.Directive)
	b.WriteString("\n\nCase intake:\n")
	intake, err := json.Marshal(req.Intake)
	if err != nil {
		return "", err
	}
	b.Write(intake)

	if len(req.Inputs) > 0 {
		b.WriteString("\n\nUpstream stage outputs:\n")
		inputs, err := json.Marshal(req.Inputs)
		if err != nil {
			return "", err
		}
		b.Write(inputs)
	}

	if len(req.Evidence) > 0 {
		b.WriteString("\n\nRetrieved sources (cite only these, by source_id):\n")
		for _, ev := range req.Evidence {
			fmt.Fprintf(&b, "- [%s] %s\n", ev.SourceID, ev.Excerpt)
		}
	}

	b.WriteString("\nRespond with a single JSON object: ")
	b.WriteString(`{"output": <stage output object>, "claims": [{"text": "...", "citations": [{"source_id": "...", "excerpt_span": "..."}]}], "self_reported": <0..1>}`)
	return b.String(), nil
}

// parseResponse tolerates markdown code fences around the JSON envelope.
func parseResponse(raw string) (*Response, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	var resp Response
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return nil, err
	}
	if len(resp.Output) == 0 {
		return nil, fmt.Errorf("response missing output field")
	}
	return &resp, nil
}
