package provider

import (
	"context"
	"errors"
	"net"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// WrapUpstreamError classifies a dispatch failure and stamps it with the
// provider name. Upstream responses that were parsed into an APIError
// pass through; a timeout or network failure (no response at all)
// becomes service-unavailable; anything else is a request-construction
// or decoding failure and surfaces as an internal error.
func WrapUpstreamError(providerName string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Provider == "" {
			apiErr.Provider = providerName
		}
		return apiErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUnavailable("no response from upstream: request timed out").
			WithCode(domain.ErrorCodeUpstreamTimeout).
			WithProvider(providerName)
	}
	if errors.Is(err, context.Canceled) {
		return domain.ErrUnavailable("request canceled before upstream responded").
			WithProvider(providerName)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.ErrUnavailable("no response from upstream: request timed out").
				WithCode(domain.ErrorCodeUpstreamTimeout).
				WithProvider(providerName)
		}
		return domain.ErrUnavailable("upstream unreachable: " + err.Error()).
			WithProvider(providerName)
	}

	return domain.ErrInternal("upstream dispatch failed: " + err.Error()).
		WithProvider(providerName)
}
