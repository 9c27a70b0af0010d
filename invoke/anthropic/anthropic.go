// Package anthropic provides an agent invoker backed by the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mlang-ai/mlang/invoke"
)

// Options configures the Anthropic invoker (fallback model id, max tokens,
// API key). Extend via functional options to preserve stability.
type Options struct {
	// Model is used when an agent's config does not name one.
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Invoker calls the Anthropic Messages API for llm-capable agents. The
// agent's role becomes the system prompt and its resolved config supplies the
// model id and temperature.
type Invoker struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic invoker using the official client
func New(optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Invoker{
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates a new Anthropic invoker from an existing client
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Invoker{
		client: client,
		opts:   opts,
	}
}

// Invoke performs a single non-streaming message exchange and returns the
// concatenated text blocks of the response.
func (i *Invoker) Invoke(ctx context.Context, req invoke.Request) (invoke.Response, error) {
	model := i.opts.Model
	if req.Agent.Config.Model != "" {
		model = anthropic.Model(req.Agent.Config.Model)
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   i.opts.MaxTokens,
		Temperature: anthropic.Float(req.Agent.Config.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(invoke.FormatInputs(req.Inputs))),
		},
	}
	if req.Agent.Role != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Agent.Role}}
	}

	resp, err := i.client.Messages.New(ctx, params)
	if err != nil {
		return invoke.Response{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return invoke.Response{Output: sb.String()}, nil
}

var _ invoke.Invoker = (*Invoker)(nil)
