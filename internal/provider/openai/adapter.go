// Package openai implements the pass-through adapter for OpenAI-style
// upstreams. The canonical request already speaks this dialect, so the
// transform is near-identity: inject the default model when absent and
// let the client strip gateway-internal fields.
package openai

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	openaiapi "github.com/HeiSir2014/OpenAIRouter/internal/api/openai"
	"github.com/HeiSir2014/OpenAIRouter/internal/config"
	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
	"github.com/HeiSir2014/OpenAIRouter/internal/provider"
	"github.com/HeiSir2014/OpenAIRouter/internal/tokens"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "openai"

// Option configures the adapter.
type Option func(*Adapter)

// WithHTTPClient sets a custom HTTP client, replacing the default
// client and its per-provider timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(a *Adapter) {
		a.httpClient = httpClient
	}
}

// Adapter is the pass-through adapter for one configured OpenAI-style
// provider.
type Adapter struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
	client     *openaiapi.Client
	estimator  *tokens.WordEstimator
}

// New creates an adapter from provider configuration.
func New(cfg config.ProviderConfig, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:       cfg,
		estimator: tokens.NewWordEstimator(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: cfg.RequestTimeout()}
	}

	clientOpts := []openaiapi.ClientOption{openaiapi.WithHTTPClient(a.httpClient)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openaiapi.WithBaseURL(cfg.BaseURL))
	}
	a.client = openaiapi.NewClient(cfg.APIKey, clientOpts...)
	return a
}

// Factory returns the registration entry for this adapter type.
func Factory() provider.Factory {
	return provider.Factory{
		Type:        ProviderType,
		Description: "OpenAI and OpenAI-compatible chat-completion APIs",
		Create: func(cfg config.ProviderConfig) (domain.Adapter, error) {
			return New(cfg), nil
		},
	}
}

// Name returns the configured provider name.
func (a *Adapter) Name() string {
	return a.cfg.Name
}

// Validate checks the request. The canonical baseline already enforces
// this upstream's full rule set (logit_bias bounds, n, penalties, tool
// shapes), so no further constraints apply.
func (a *Adapter) Validate(req *domain.CompletionRequest) error {
	if err := req.Validate(); err != nil {
		return domain.AsAPIError(err).WithProvider(a.cfg.Name)
	}
	return nil
}

// EstimateTokens approximates request tokens with the word-based
// heuristic, including the max_tokens completion budget.
func (a *Adapter) EstimateTokens(req *domain.CompletionRequest) int {
	return a.estimator.Estimate(req)
}

// Headers returns the outbound header set with caller pass-through
// headers merged under the adapter's own.
func (a *Adapter) Headers(passthrough map[string]string) http.Header {
	return a.client.Headers(passthrough)
}

// Complete validates, transforms, and dispatches the request upstream.
func (a *Adapter) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if err := a.Validate(req); err != nil {
		return nil, err
	}

	apiResp, err := a.client.CreateChatCompletion(ctx, ToAPIRequest(req, a.cfg.Default()), &openaiapi.RequestOptions{
		ExtraHeaders: req.PassthroughHeaders,
	})
	if err != nil {
		return nil, provider.WrapUpstreamError(a.cfg.Name, err)
	}
	return ToCanonicalResponse(apiResp), nil
}

// HealthCheck sends a single-token probe through the adapter.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	probe := &domain.CompletionRequest{
		Model:     a.cfg.Default(),
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: domain.TextContent("ping")}},
		MaxTokens: 1,
	}
	_, err := a.Complete(ctx, probe)
	return err
}

// ToAPIRequest renders the canonical request as the upstream payload.
// Gateway-internal fields (caller identity, pass-through headers) are
// not part of the wire type and fall away here.
func ToAPIRequest(req *domain.CompletionRequest, defaultModel string) *openaiapi.ChatRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	out := &openaiapi.ChatRequest{
		Model:            model,
		Messages:         make([]openaiapi.ChatMessage, len(req.Messages)),
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		N:                req.N,
		Stop:             req.Stop,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		LogitBias:        req.LogitBias,
		User:             req.User,
		ToolChoice:       req.ToolChoice,
	}

	for i, m := range req.Messages {
		out.Messages[i] = openaiapi.ChatMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCalls:  toAPIToolCalls(m.ToolCalls),
			ToolCallID: m.ToolCallID,
		}
	}
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, openaiapi.Tool{
			Type: tool.Type,
			Function: openaiapi.FunctionTool{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}
	return out
}

// ToCanonicalResponse converts the upstream response, filling defaults
// for missing id/object/created and normalizing choice indexes to their
// positions.
func ToCanonicalResponse(resp *openaiapi.ChatResponse) *domain.CompletionResponse {
	out := &domain.CompletionResponse{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
		Choices: make([]domain.Choice, len(resp.Choices)),
	}
	if out.ID == "" {
		out.ID = "chatcmpl-" + uuid.NewString()
	}
	if out.Object == "" {
		out.Object = "chat.completion"
	}
	if out.Created == 0 {
		out.Created = time.Now().Unix()
	}

	for i, c := range resp.Choices {
		out.Choices[i] = domain.Choice{
			Index: i,
			Message: domain.Message{
				Role:      c.Message.Role,
				Content:   c.Message.Content,
				Name:      c.Message.Name,
				ToolCalls: fromAPIToolCalls(c.Message.ToolCalls),
			},
			FinishReason: c.FinishReason,
		}
	}
	if resp.Usage != nil {
		out.Usage = domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out
}

func toAPIToolCalls(calls []domain.ToolCall) []openaiapi.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]openaiapi.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = openaiapi.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: openaiapi.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

func fromAPIToolCalls(calls []openaiapi.ToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]domain.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = domain.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: domain.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}
