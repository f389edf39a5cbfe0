// Package anthropic provides the language-model provider used by the
// research pipeline, backed by the official anthropic-sdk-go.
package anthropic

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deep-research/internal/resilience"
)

// ModelTier selects the cost/latency tradeoff for a completion.
type ModelTier string

const (
	// TierFast is used for planning and validation judgments.
	TierFast ModelTier = "fast"
	// TierSmart is used for synthesis.
	TierSmart ModelTier = "smart"
)

// Client defines the LLM operations used by the pipeline.
type Client interface {
	Complete(ctx context.Context, prompt string, tier ModelTier) (string, error)
}

// TokenUsage tracks token consumption for one completion.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// LogCost logs token usage with structured fields.
func (u TokenUsage) LogCost(model, stage string) {
	zap.L().Info("llm usage",
		zap.String("model", model),
		zap.String("stage", stage),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
	)
}

// Option configures the client.
type Option func(*sdkClient)

// WithFastModel sets the model used for TierFast.
func WithFastModel(model string) Option {
	return func(c *sdkClient) { c.fastModel = model }
}

// WithSmartModel sets the model used for TierSmart.
func WithSmartModel(model string) Option {
	return func(c *sdkClient) { c.smartModel = model }
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) { c.maxTokens = n }
}

// WithRetryConfig overrides the provider retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *sdkClient) { c.retry = cfg }
}

// sdkClient implements Client using the official SDK.
type sdkClient struct {
	client     sdk.Client
	fastModel  string
	smartModel string
	maxTokens  int64
	retry      resilience.RetryConfig
}

// NewClient creates a client backed by the SDK. Transient provider faults
// (rate limits, overload, network timeouts) are retried with exponential
// backoff a bounded number of times before surfacing.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0), // retries are ours, see resilience
		),
		fastModel:  "claude-haiku-4-5-20251001",
		smartModel: "claude-sonnet-4-5-20250929",
		maxTokens:  4096,
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *sdkClient) model(tier ModelTier) string {
	if tier == TierSmart {
		return c.smartModel
	}
	return c.fastModel
}

// Complete sends a single-user-message completion request and returns the
// concatenated text blocks of the response.
func (c *sdkClient) Complete(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	model := c.model(tier)

	retryCfg := c.retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger("anthropic", "complete")
	}

	msg, err := resilience.Retry(ctx, retryCfg, func(ctx context.Context) (*sdk.Message, error) {
		m, callErr := c.client.Messages.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(model),
			MaxTokens: c.maxTokens,
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
			},
		})
		if callErr != nil {
			return nil, classifyError(callErr)
		}
		return m, nil
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	TokenUsage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}.LogCost(model, string(tier))

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// classifyError wraps rate-limit and server-side SDK faults as transient
// so the retry policy applies; everything else passes through unchanged.
func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if resilience.TransientStatus(apiErr.StatusCode) {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return err
	}
	return err
}
