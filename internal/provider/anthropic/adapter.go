// Package anthropic implements the transform adapter for the Anthropic
// Messages API: canonical chat-completion requests are reshaped into
// the Messages dialect and the response is reshaped back.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	anthropicapi "github.com/HeiSir2014/OpenAIRouter/internal/api/anthropic"
	"github.com/HeiSir2014/OpenAIRouter/internal/config"
	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
	"github.com/HeiSir2014/OpenAIRouter/internal/provider"
	"github.com/HeiSir2014/OpenAIRouter/internal/tokens"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "anthropic"

// MaxTokensCap is the largest completion budget the adapter sends. The
// upstream has no default, so requests without max_tokens get the cap.
const MaxTokensCap = 4096

// Option configures the adapter.
type Option func(*Adapter)

// WithHTTPClient sets a custom HTTP client, replacing the default
// client and its per-provider timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(a *Adapter) {
		a.httpClient = httpClient
	}
}

// Adapter is the transform adapter for one configured Anthropic
// provider.
type Adapter struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
	client     *anthropicapi.Client
	estimator  *tokens.CharEstimator
}

// New creates an adapter from provider configuration.
func New(cfg config.ProviderConfig, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:       cfg,
		estimator: tokens.NewCharEstimator(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: cfg.RequestTimeout()}
	}

	clientOpts := []anthropicapi.ClientOption{anthropicapi.WithHTTPClient(a.httpClient)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, anthropicapi.WithBaseURL(cfg.BaseURL))
	}
	a.client = anthropicapi.NewClient(cfg.APIKey, clientOpts...)
	return a
}

// Factory returns the registration entry for this adapter type.
func Factory() provider.Factory {
	return provider.Factory{
		Type:        ProviderType,
		Description: "Anthropic Messages API",
		Create: func(cfg config.ProviderConfig) (domain.Adapter, error) {
			return New(cfg), nil
		},
	}
}

// Name returns the configured provider name.
func (a *Adapter) Name() string {
	return a.cfg.Name
}

// Validate checks the canonical baseline and rejects the request
// features this upstream has no equivalent for.
func (a *Adapter) Validate(req *domain.CompletionRequest) error {
	if err := req.Validate(); err != nil {
		return domain.AsAPIError(err).WithProvider(a.cfg.Name)
	}

	var detail *domain.APIError
	switch {
	case len(req.LogitBias) > 0:
		detail = domain.ErrValidation("logit_bias is not supported by this provider").WithParam("logit_bias")
	case req.N > 1:
		detail = domain.ErrValidation("n greater than 1 is not supported by this provider").WithParam("n")
	case req.PresencePenalty != nil:
		detail = domain.ErrValidation("presence_penalty is not supported by this provider").WithParam("presence_penalty")
	case req.FrequencyPenalty != nil:
		detail = domain.ErrValidation("frequency_penalty is not supported by this provider").WithParam("frequency_penalty")
	}
	if detail != nil {
		return detail.WithProvider(a.cfg.Name)
	}
	return nil
}

// EstimateTokens approximates request tokens with the flat character
// heuristic.
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

	apiReq, err := ToAPIRequest(req)
	if err != nil {
		return nil, provider.WrapUpstreamError(a.cfg.Name, err)
	}

	apiResp, err := a.client.CreateMessage(ctx, apiReq, &anthropicapi.RequestOptions{
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

// ToAPIRequest reshapes the canonical request into the Messages
// dialect: system messages concatenate into the top-level system field,
// tool results become user-role tool_result blocks, and image parts
// become inline base64 blocks or textual placeholders.
func ToAPIRequest(req *domain.CompletionRequest) (*anthropicapi.MessagesRequest, error) {
	out := &anthropicapi.MessagesRequest{
		Model:         req.Model,
		MaxTokens:     completionBudget(req.MaxTokens),
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
	}
	if req.User != "" {
		out.Metadata = &anthropicapi.Metadata{UserID: req.User}
	}

	var systems []string
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			systems = append(systems, m.Content.String())
		case domain.RoleTool:
			out.Messages = append(out.Messages, anthropicapi.Message{
				Role: anthropicapi.RoleUser,
				Content: anthropicapi.ContentBlock{{
					Type:      anthropicapi.BlockTypeToolResult,
					ToolUseID: m.ToolCallID,
					Content:   m.Content.String(),
				}},
			})
		case domain.RoleAssistant:
			out.Messages = append(out.Messages, anthropicapi.Message{
				Role:    anthropicapi.RoleAssistant,
				Content: assistantBlocks(m),
			})
		default:
			out.Messages = append(out.Messages, anthropicapi.Message{
				Role:    anthropicapi.RoleUser,
				Content: contentBlocks(m.Content),
			})
		}
	}
	if len(systems) > 0 {
		out.System = strings.Join(systems, "\n\n")
	}

	choice, err := domain.ParseToolChoice(req.ToolChoice)
	if err != nil {
		return nil, domain.ErrValidation(err.Error()).WithParam("tool_choice")
	}
	// tool_choice none means the model must not see the tools at all.
	if choice.Mode != domain.ToolChoiceNone {
		for _, tool := range req.Tools {
			out.Tools = append(out.Tools, anthropicapi.Tool{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				InputSchema: toolSchema(tool.Function.Parameters),
			})
		}
		switch choice.Mode {
		case domain.ToolChoiceAuto:
			out.ToolChoice = &anthropicapi.ToolChoice{Type: anthropicapi.ToolChoiceTypeAuto}
		case domain.ToolChoiceFunction:
			out.ToolChoice = &anthropicapi.ToolChoice{Type: anthropicapi.ToolChoiceTypeTool, Name: choice.Name}
		}
	}
	return out, nil
}

// completionBudget applies the required max_tokens: the request value
// clamped to the cap, or the cap itself when the request omits it.
func completionBudget(maxTokens int) int {
	if maxTokens <= 0 || maxTokens > MaxTokensCap {
		return MaxTokensCap
	}
	return maxTokens
}

// contentBlocks converts canonical message content into Messages API
// content blocks. Remote image URLs degrade to a textual placeholder;
// the adapter does not fetch them.
func contentBlocks(content domain.MessageContent) anthropicapi.ContentBlock {
	if content.IsText() {
		return anthropicapi.ContentBlock{{Type: anthropicapi.BlockTypeText, Text: content.Text}}
	}

	var blocks anthropicapi.ContentBlock
	for _, part := range content.Parts {
		switch part.Type {
		case domain.ContentTypeText:
			blocks = append(blocks, anthropicapi.ContentPart{
				Type: anthropicapi.BlockTypeText,
				Text: part.Text,
			})
		case domain.ContentTypeImageURL:
			if part.ImageURL == nil {
				continue
			}
			if mediaType, data, ok := parseDataURI(part.ImageURL.URL); ok {
				blocks = append(blocks, anthropicapi.ContentPart{
					Type: anthropicapi.BlockTypeImage,
					Source: &anthropicapi.ImageSource{
						Type:      "base64",
						MediaType: mediaType,
						Data:      data,
					},
				})
			} else {
				blocks = append(blocks, anthropicapi.ContentPart{
					Type: anthropicapi.BlockTypeText,
					Text: "[Image: " + part.ImageURL.URL + "]",
				})
			}
		}
	}
	return blocks
}

// assistantBlocks converts an assistant turn, mapping tool calls to
// tool_use blocks.
func assistantBlocks(m domain.Message) anthropicapi.ContentBlock {
	var blocks anthropicapi.ContentBlock
	if !m.Content.IsEmpty() {
		blocks = contentBlocks(m.Content)
	}
	for _, tc := range m.ToolCalls {
		input := json.RawMessage(tc.Function.Arguments)
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		blocks = append(blocks, anthropicapi.ContentPart{
			Type:  anthropicapi.BlockTypeToolUse,
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return blocks
}

// toolSchema passes the declared parameter schema through, defaulting
// to an open object so input_schema is never null.
func toolSchema(parameters any) any {
	if parameters == nil {
		return map[string]any{"type": "object"}
	}
	return parameters
}

// parseDataURI splits a base64 data URI into media type and payload.
func parseDataURI(uri string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	mediaType = strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return mediaType, payload, true
}

// ToCanonicalResponse reshapes the Messages response: text blocks
// concatenate into one assistant message, tool_use blocks become tool
// calls with ids synthesized when the upstream omits them.
func ToCanonicalResponse(resp *anthropicapi.MessagesResponse) *domain.CompletionResponse {
	var (
		text      strings.Builder
		toolCalls []domain.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case anthropicapi.BlockTypeText:
			text.WriteString(block.Text)
		case anthropicapi.BlockTypeToolUse:
			id := block.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			arguments := "{}"
			if len(block.Input) > 0 {
				arguments = string(block.Input)
			}
			toolCalls = append(toolCalls, domain.ToolCall{
				ID:   id,
				Type: "function",
				Function: domain.FunctionCall{
					Name:      block.Name,
					Arguments: arguments,
				},
			})
		}
	}

	role := resp.Role
	if role == "" {
		role = domain.RoleAssistant
	}

	id := resp.ID
	if id == "" {
		id = "chatcmpl-" + uuid.NewString()
	}

	return &domain.CompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []domain.Choice{{
			Index: 0,
			Message: domain.Message{
				Role:      role,
				Content:   domain.TextContent(text.String()),
				ToolCalls: toolCalls,
			},
			FinishReason: mapStopReason(resp.StopReason),
		}},
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// mapStopReason translates upstream stop reasons to canonical finish
// reasons. Unrecognized reasons default to stop.
func mapStopReason(reason string) string {
	switch reason {
	case anthropicapi.StopReasonMaxTokens:
		return domain.FinishReasonLength
	case anthropicapi.StopReasonToolUse:
		return domain.FinishReasonToolCalls
	case anthropicapi.StopReasonEndTurn, anthropicapi.StopReasonStopSequence:
		return domain.FinishReasonStop
	default:
		return domain.FinishReasonStop
	}
}
