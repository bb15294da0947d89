package domain

import "strconv"

// Request validation bounds.
const (
	MaxTokensCeiling    = 100000
	MaxChoices          = 10
	MaxStopSequences    = 4
	MaxLogitBiasEntries = 300
)

// Validate checks the request against the canonical bounds. Provider
// adapters apply their own constraints on top of this.
func (r *CompletionRequest) Validate() error {
	if len(r.Messages) == 0 && r.Prompt == nil {
		return ErrValidation("either messages or prompt is required").WithParam("messages")
	}
	if len(r.Messages) > 0 && r.Prompt != nil {
		return ErrValidation("messages and prompt are mutually exclusive").WithParam("prompt")
	}

	if r.Stream {
		return ErrValidation("streaming is not supported").
			WithParam("stream").
			WithCode(ErrorCodeStreamingUnsupported)
	}

	for i, msg := range r.Messages {
		if err := validateMessage(i, msg); err != nil {
			return err
		}
	}

	if r.MaxTokens < 0 || r.MaxTokens > MaxTokensCeiling {
		return ErrValidationf("max_tokens must be between 1 and %d", MaxTokensCeiling).WithParam("max_tokens")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return ErrValidation("temperature must be between 0 and 2").WithParam("temperature")
	}
	if r.TopP != nil && (*r.TopP <= 0 || *r.TopP > 1) {
		return ErrValidation("top_p must be greater than 0 and at most 1").WithParam("top_p")
	}
	if r.N < 0 || r.N > MaxChoices {
		return ErrValidationf("n must be between 1 and %d", MaxChoices).WithParam("n")
	}
	if r.PresencePenalty != nil && (*r.PresencePenalty < -2 || *r.PresencePenalty > 2) {
		return ErrValidation("presence_penalty must be between -2 and 2").WithParam("presence_penalty")
	}
	if r.FrequencyPenalty != nil && (*r.FrequencyPenalty < -2 || *r.FrequencyPenalty > 2) {
		return ErrValidation("frequency_penalty must be between -2 and 2").WithParam("frequency_penalty")
	}
	if len(r.Stop) > MaxStopSequences {
		return ErrValidationf("stop accepts at most %d sequences", MaxStopSequences).WithParam("stop")
	}

	if err := validateLogitBias(r.LogitBias); err != nil {
		return err
	}
	return validateTools(r.Tools, r.ToolChoice)
}

func validateMessage(index int, msg Message) error {
	switch msg.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	case RoleTool:
		if msg.ToolCallID == "" {
			return ErrValidationf("messages[%d]: tool messages require tool_call_id", index).WithParam("messages")
		}
	case "":
		return ErrValidationf("messages[%d]: role is required", index).WithParam("messages")
	default:
		return ErrValidationf("messages[%d]: unknown role %q", index, msg.Role).WithParam("messages")
	}

	// Assistant turns may carry tool calls instead of content; every other
	// role must say something.
	if msg.Content.IsEmpty() && !(msg.Role == RoleAssistant && len(msg.ToolCalls) > 0) {
		return ErrValidationf("messages[%d]: content is required", index).WithParam("messages")
	}

	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			return ErrValidationf("messages[%d]: tool call is missing a function name", index).WithParam("messages")
		}
	}
	return nil
}

func validateLogitBias(bias map[string]float64) error {
	if len(bias) == 0 {
		return nil
	}
	if len(bias) > MaxLogitBiasEntries {
		return ErrValidationf("logit_bias accepts at most %d entries", MaxLogitBiasEntries).WithParam("logit_bias")
	}
	for token, value := range bias {
		if _, err := strconv.Atoi(token); err != nil {
			return ErrValidationf("logit_bias key %q is not a token id", token).WithParam("logit_bias")
		}
		if value < -100 || value > 100 {
			return ErrValidation("logit_bias values must be between -100 and 100").WithParam("logit_bias")
		}
	}
	return nil
}

func validateTools(tools []Tool, toolChoice any) error {
	for i, tool := range tools {
		if tool.Type != "function" {
			return ErrValidationf("tools[%d]: type must be \"function\"", i).WithParam("tools")
		}
		if tool.Function.Name == "" {
			return ErrValidationf("tools[%d]: function name is required", i).WithParam("tools")
		}
		if tool.Function.Parameters == nil {
			return ErrValidationf("tools[%d]: function parameters are required", i).WithParam("tools")
		}
	}

	choice, err := ParseToolChoice(toolChoice)
	if err != nil {
		return ErrValidation(err.Error()).WithParam("tool_choice")
	}
	if choice.Mode != "" && len(tools) == 0 {
		return ErrValidation("tool_choice requires tools to be set").WithParam("tool_choice")
	}
	if choice.Mode == ToolChoiceFunction {
		found := false
		for _, tool := range tools {
			if tool.Function.Name == choice.Name {
				found = true
				break
			}
		}
		if !found {
			return ErrValidationf("tool_choice names unknown function %q", choice.Name).WithParam("tool_choice")
		}
	}
	return nil
}

// Normalize applies wire-level defaults that do not depend on provider
// configuration: legacy prompts become a single user message.
func (r *CompletionRequest) Normalize() {
	if r.Prompt != nil && len(r.Messages) == 0 {
		r.Messages = []Message{{Role: RoleUser, Content: TextContent(r.Prompt.String())}}
		r.Prompt = nil
	}
}
