// Package tokens provides pre-flight token estimation and exact token
// counting for completion requests.
package tokens

import (
	"encoding/json"
	"strings"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// Estimator approximates how many tokens a completion request will consume.
// Estimates gate rate-limit admission and pre-flight cost checks; they are
// not billing truth.
type Estimator interface {
	Estimate(req *domain.CompletionRequest) int
}

// Fixed token charges used by the word-based estimator. The per-message
// and priming overheads follow the framing tokens OpenAI chat models add
// around each message; the image charges are the published flat rates per
// detail level.
const (
	promptBaseTokens  = 3
	perMessageTokens  = 4
	perRoleTokens     = 1
	perNameTokens     = 1
	perToolBaseTokens = 3

	imageTokensLow  = 85
	imageTokensHigh = 765

	// DefaultMaxTokens is charged for the unknown completion length when a
	// request does not set max_tokens.
	DefaultMaxTokens = 1000
)

// WordEstimator approximates request size from word counts, at roughly
// 0.75 tokens per word, plus fixed per-message framing overhead. It always
// charges the request's max_tokens (or DefaultMaxTokens) on top, so the
// estimate covers the whole exchange, not just the prompt.
type WordEstimator struct{}

// NewWordEstimator creates a word-count based estimator.
func NewWordEstimator() *WordEstimator {
	return &WordEstimator{}
}

// Estimate returns the token estimate for the full exchange.
func (e *WordEstimator) Estimate(req *domain.CompletionRequest) int {
	total := promptBaseTokens

	for _, msg := range req.Messages {
		total += perMessageTokens
		if msg.Role != "" {
			total += perRoleTokens
		}
		if msg.Name != "" {
			total += perNameTokens
		}
		total += contentWordTokens(msg.Content)
		for _, call := range msg.ToolCalls {
			total += wordTokens(call.Function.Name)
			total += charTokens(len(call.Function.Arguments))
		}
	}

	for _, tool := range req.Tools {
		total += perToolBaseTokens
		total += wordTokens(tool.Function.Name)
		total += wordTokens(tool.Function.Description)
		total += charTokens(schemaLen(tool.Function.Parameters))
	}

	budget := req.MaxTokens
	if budget <= 0 {
		budget = DefaultMaxTokens
	}
	return total + budget
}

func contentWordTokens(content domain.MessageContent) int {
	if content.IsText() {
		return wordTokens(content.Text)
	}
	total := 0
	for _, part := range content.Parts {
		switch part.Type {
		case domain.ContentTypeText:
			total += wordTokens(part.Text)
		case domain.ContentTypeImageURL:
			total += imageTokens(part.ImageURL)
		}
	}
	return total
}

func imageTokens(img *domain.ImageURL) int {
	if img != nil && img.Detail == domain.ImageDetailHigh {
		return imageTokensHigh
	}
	return imageTokensLow
}

// wordTokens returns ceil(words * 0.75).
func wordTokens(s string) int {
	words := len(strings.Fields(s))
	return (words*3 + 3) / 4
}

// charTokens returns ceil(chars / 4).
func charTokens(chars int) int {
	return (chars + 3) / 4
}

func schemaLen(params any) int {
	if params == nil {
		return 0
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return 0
	}
	return len(raw)
}

// CharEstimator approximates token usage as one token per four characters
// of request text. It charges only for what the request carries; unlike
// WordEstimator it adds nothing for the completion budget. Used for
// upstreams whose tokenizers the word heuristic was not tuned against.
type CharEstimator struct{}

// NewCharEstimator creates a character-count based estimator.
func NewCharEstimator() *CharEstimator {
	return &CharEstimator{}
}

// Estimate returns ceil(total request characters / 4).
func (e *CharEstimator) Estimate(req *domain.CompletionRequest) int {
	chars := 0

	for _, msg := range req.Messages {
		chars += contentChars(msg.Content)
		for _, call := range msg.ToolCalls {
			chars += len(call.Function.Name)
			chars += len(call.Function.Arguments)
		}
	}

	for _, tool := range req.Tools {
		chars += len(tool.Function.Name)
		chars += len(tool.Function.Description)
		chars += schemaLen(tool.Function.Parameters)
	}

	return charTokens(chars)
}

func contentChars(content domain.MessageContent) int {
	if content.IsText() {
		return len(content.Text)
	}
	chars := 0
	for _, part := range content.Parts {
		switch part.Type {
		case domain.ContentTypeText:
			chars += len(part.Text)
		case domain.ContentTypeImageURL:
			if part.ImageURL != nil {
				chars += len(part.ImageURL.URL)
			}
		}
	}
	return chars
}
