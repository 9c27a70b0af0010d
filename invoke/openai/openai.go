// Package openai provides an agent invoker backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/mlang-ai/mlang/invoke"
)

// Options configure the OpenAI invoker.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	// Model is used when an agent's config does not name one.
	Model               string
	MaxCompletionTokens int64
}

// Invoker calls the OpenAI Chat Completions API for llm-capable agents. The
// agent's role becomes the system message and its resolved config supplies
// the model id and temperature.
type Invoker struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI invoker using the official client
func New(optFns ...func(o *Options)) *Invoker {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI invoker from an existing client
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, opts: opts}
}

// Invoke performs a single non-streaming chat completion and returns the
// first choice's message content.
func (i *Invoker) Invoke(ctx context.Context, req invoke.Request) (invoke.Response, error) {
	model := i.opts.Model
	if req.Agent.Config.Model != "" {
		model = req.Agent.Config.Model
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.Agent.Role != "" {
		messages = append(messages, openai.SystemMessage(req.Agent.Role))
	}
	messages = append(messages, openai.UserMessage(invoke.FormatInputs(req.Inputs)))

	params := openai.ChatCompletionNewParams{
		Model:               model,
		Messages:            messages,
		Temperature:         openai.Float(req.Agent.Config.Temperature),
		MaxCompletionTokens: openai.Int(i.opts.MaxCompletionTokens),
	}

	resp, err := i.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return invoke.Response{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return invoke.Response{}, fmt.Errorf("openai returned no choices")
	}
	return invoke.Response{Output: resp.Choices[0].Message.Content}, nil
}

var _ invoke.Invoker = (*Invoker)(nil)
