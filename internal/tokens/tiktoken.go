package tokens

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// Per-message framing overhead for OpenAI chat models, per the published
// token accounting: 3 tokens per message, 1 for the role, and 3 to prime
// the assistant reply.
const (
	exactTokensPerMessage = 3
	exactTokensPerRole    = 1
	exactReplyPriming     = 3

	exactToolCallOverhead = 3
	exactToolDefOverhead  = 7
)

// TiktokenCounter produces exact token counts for OpenAI-style models
// using the tiktoken vocabularies.
type TiktokenCounter struct {
	matcher *ModelMatcher

	// codecs caches tokenizer codecs by encoding
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewTiktokenCounter creates a counter covering the GPT and o-series
// model families.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		matcher: NewModelMatcher(
			[]string{"gpt-", "o1", "o3", "o4", "text-embedding", "text-davinci"},
			[]string{"davinci", "curie", "babbage", "ada"},
		),
		codecs: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// SupportsModel reports whether the model has a tiktoken vocabulary.
func (c *TiktokenCounter) SupportsModel(model string) bool {
	return c.matcher.Matches(model)
}

// Count counts the input tokens of req with the model's tokenizer. Image
// parts have no text to tokenize and are charged the flat per-detail rate.
func (c *TiktokenCounter) Count(req *domain.CompletionRequest) (*Count, error) {
	codec, err := c.codec(req.Model)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, msg := range req.Messages {
		total += exactTokensPerMessage + exactTokensPerRole
		if msg.Name != "" {
			total += encodedLen(codec, msg.Name)
		}
		if msg.Content.IsText() {
			total += encodedLen(codec, msg.Content.Text)
		} else {
			for _, part := range msg.Content.Parts {
				switch part.Type {
				case domain.ContentTypeText:
					total += encodedLen(codec, part.Text)
				case domain.ContentTypeImageURL:
					total += imageTokens(part.ImageURL)
				}
			}
		}
		for _, call := range msg.ToolCalls {
			total += encodedLen(codec, call.Function.Name)
			total += encodedLen(codec, call.Function.Arguments)
			total += exactToolCallOverhead
		}
	}

	for _, tool := range req.Tools {
		total += exactToolDefOverhead
		total += encodedLen(codec, tool.Function.Name)
		total += encodedLen(codec, tool.Function.Description)
		if tool.Function.Parameters != nil {
			if raw, err := json.Marshal(tool.Function.Parameters); err == nil {
				total += encodedLen(codec, string(raw))
			}
		}
	}

	total += exactReplyPriming

	return &Count{InputTokens: total, Model: req.Model}, nil
}

func encodedLen(codec tokenizer.Codec, s string) int {
	if s == "" {
		return 0
	}
	ids, _, _ := codec.Encode(s)
	return len(ids)
}

// codec resolves the tokenizer for a model, preferring the model-specific
// codec and falling back to the family encoding.
func (c *TiktokenCounter) codec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(mapModel(model)); err == nil {
		return codec, nil
	}

	encoding := encodingFor(model)

	c.mu.RLock()
	cached, ok := c.codecs[encoding]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer encoding %s: %w", encoding, err)
	}

	c.mu.Lock()
	c.codecs[encoding] = codec
	c.mu.Unlock()

	return codec, nil
}

// mapModel maps a model string onto a tokenizer.Model constant.
func mapModel(model string) tokenizer.Model {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o
	case strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.GPT41
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo
	case strings.HasPrefix(model, "o1"):
		if strings.Contains(model, "mini") {
			return tokenizer.O1Mini
		}
		return tokenizer.O1
	case strings.HasPrefix(model, "o3"):
		if strings.Contains(model, "mini") {
			return tokenizer.O3Mini
		}
		return tokenizer.O3
	case strings.HasPrefix(model, "o4"):
		return tokenizer.O4Mini
	case strings.HasPrefix(model, "text-embedding"):
		return tokenizer.TextEmbeddingAda002
	case strings.HasPrefix(model, "text-davinci-003"):
		return tokenizer.TextDavinci003
	case strings.HasPrefix(model, "text-davinci-002"):
		return tokenizer.TextDavinci002
	case model == "davinci":
		return tokenizer.Davinci
	case model == "curie":
		return tokenizer.Curie
	case model == "babbage":
		return tokenizer.Babbage
	case model == "ada":
		return tokenizer.Ada
	default:
		// tokenizer.ForModel rejects unknown names; the encoding
		// fallback then takes over.
		return tokenizer.Model(model)
	}
}

// encodingFor maps a model family to its vocabulary:
// o200k_base for gpt-4o/gpt-4.1 and o-series, cl100k_base for gpt-4 and
// gpt-3.5, p50k/r50k for the legacy completion models.
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"),
		strings.HasPrefix(model, "gpt-3.5"),
		strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(model, "text-davinci"):
		return tokenizer.P50kBase
	case model == "davinci", model == "curie", model == "babbage", model == "ada":
		return tokenizer.R50kBase
	default:
		return tokenizer.O200kBase
	}
}
