package domain

import "strings"

// Headers a caller can never override on upstream requests. Credentials
// belong to the adapter; Host and Content-Length belong to the transport.
var blockedPassthroughHeaders = map[string]struct{}{
	"authorization":  {},
	"x-api-key":      {},
	"api-key":        {},
	"cookie":         {},
	"host":           {},
	"content-length": {},
}

// FilterPassthroughHeaders returns a copy of h with credential and
// transport headers removed. The result is safe to merge under an
// adapter's own headers.
func FilterPassthroughHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, blocked := blockedPassthroughHeaders[strings.ToLower(k)]; blocked {
			continue
		}
		out[k] = v
	}
	return out
}
