// Package llm wraps the Anthropic API behind the one capability the
// pipeline needs: given a prompt, return raw JSON text or fail.
package llm

import (
	"context"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client is the completion capability used by the translator and the
// proposal engine.
type Client interface {
	// Complete sends prompt and returns the model's raw text output.
	// Implementations must honor ctx cancellation and bound the call.
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Completion is one model response plus its token accounting.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Usage tracks token consumption for trace records.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Options tunes the SDK-backed client.
type Options struct {
	Model       string
	MaxTokens   int64
	CallTimeout time.Duration
	// RequestsPerMinute bounds the outbound call rate; 0 disables limiting.
	RequestsPerMinute int
}

const jsonSystemPrompt = "Output valid JSON only."

type sdkClient struct {
	client      sdk.Client
	model       string
	maxTokens   int64
	callTimeout time.Duration
	limiter     *rate.Limiter
}

// NewClient creates an Anthropic-backed Client.
func NewClient(apiKey string, opts Options) Client {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return &sdkClient{
		client:      sdk.NewClient(option.WithAPIKey(apiKey)),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		callTimeout: opts.CallTimeout,
		limiter:     limiter,
	}
}

func (c *sdkClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Completion{}, eris.Wrap(err, "llm: rate limit wait")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	msg, err := c.client.Messages.New(callCtx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []sdk.TextBlockParam{{Text: jsonSystemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Completion{}, eris.Wrap(err, "llm: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return Completion{
		Text:  text,
		Model: string(msg.Model),
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}
