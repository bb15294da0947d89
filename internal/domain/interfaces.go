package domain

import (
	"context"
	"net/http"
)

// Adapter translates canonical requests into one upstream provider's
// wire format and back. Implementations are safe for concurrent use.
type Adapter interface {
	// Name returns the configured provider name.
	Name() string

	// Validate applies the provider's request constraints on top of the
	// canonical baseline.
	Validate(req *CompletionRequest) error

	// EstimateTokens approximates the tokens the request will consume.
	// The estimate feeds rate-limit admission and pre-flight cost
	// checks; it is never billing truth.
	EstimateTokens(req *CompletionRequest) int

	// Headers returns the outbound header set with caller pass-through
	// headers merged under the adapter's own. Credential and Host
	// headers from the caller are discarded.
	Headers(passthrough map[string]string) http.Header

	// Complete dispatches the request upstream and returns the
	// canonical response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// HealthCheck sends a minimal single-token probe upstream.
	HealthCheck(ctx context.Context) error
}
