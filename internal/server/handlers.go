package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HeiSir2014/OpenAIRouter/internal/auth"
	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
	"github.com/HeiSir2014/OpenAIRouter/internal/provider"
	"github.com/HeiSir2014/OpenAIRouter/internal/ratelimit"
	"github.com/HeiSir2014/OpenAIRouter/internal/tokens"
)

// anonymousCaller meters unauthenticated deployments under one shared
// budget.
const anonymousCaller = "anonymous"

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req domain.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrValidation("invalid request body: "+err.Error()))
		return
	}
	req.Normalize()
	req.PassthroughHeaders = passthroughHeaders(r)

	ctx := r.Context()
	caller, _ := auth.FromContext(ctx)
	name, limit := s.callerLimit(caller)
	req.Caller = name

	result, err := s.limiter.Allow(name, limit, s.admissionEstimate(&req))
	setRateLimitResult(ctx, result)
	if err != nil {
		writeError(w, r, err)
		return
	}

	AddLogField(ctx, "model", req.Model)
	resp, err := s.orchestrator.Complete(ctx, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	AddLogField(ctx, "completion_id", resp.ID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Models())
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "model")
	detail, ok := s.registry.ModelDetail(id)
	if !ok {
		writeError(w, r, domain.ErrNotFound(fmt.Sprintf("model %q not found", id)).
			WithCode(domain.ErrorCodeModelNotFound).
			WithParam("model"))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// countTokensResponse pairs the tokenizer count with the heuristic
// estimate admission control would charge for the same request.
type countTokensResponse struct {
	*tokens.Count
	AdmissionEstimate int `json:"admission_estimate"`
}

func (s *Server) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	var req domain.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrValidation("invalid request body: "+err.Error()))
		return
	}
	req.Normalize()
	if req.Model == "" {
		writeError(w, r, domain.ErrValidation("model is required").WithParam("model"))
		return
	}

	count, err := s.counter.Count(&req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countTokensResponse{
		Count:             count,
		AdmissionEstimate: s.admissionEstimate(&req),
	})
}

// healthResponse is the /healthz body: overall status plus one probe
// result per active provider.
type healthResponse struct {
	Status    string                     `json:"status"`
	Providers map[string]provider.Health `json:"providers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.registry.HealthCheckAll(r.Context(), 0)

	status, code := "ok", http.StatusOK
	for _, h := range results {
		if !h.Healthy {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, code, healthResponse{Status: status, Providers: results})
}

// usageResponse is the /v1/usage body.
type usageResponse struct {
	Object string `json:"object"`
	Data   any    `json:"data"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	name := anonymousCaller
	if caller != nil {
		name = caller.Name
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, domain.ErrValidation("limit must be a positive integer").WithParam("limit"))
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	records, err := s.usage.ListByCaller(r.Context(), name, limit)
	if err != nil {
		writeError(w, r, domain.ErrInternal("usage lookup failed: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{Object: "list", Data: records})
}

// callerLimit returns the admission identity and budget for a request:
// the caller's own overrides when set, the gateway-wide defaults
// otherwise.
func (s *Server) callerLimit(caller *auth.Caller) (string, ratelimit.Limit) {
	limit := s.defaults
	if caller == nil {
		return anonymousCaller, limit
	}
	if caller.RPM > 0 {
		limit.RPM = caller.RPM
	}
	if caller.TPM > 0 {
		limit.TPM = caller.TPM
	}
	return caller.Name, limit
}

// admissionEstimate charges the token window with the serving
// provider's own estimate so admission tracks the heuristic that
// provider meters with. When no provider resolves, a flat character
// estimate stands in and resolution fails properly downstream.
func (s *Server) admissionEstimate(req *domain.CompletionRequest) int {
	if adapter, err := s.registry.Resolve(req.Model); err == nil {
		return adapter.EstimateTokens(req)
	}
	return s.estimator.Estimate(req)
}

// passthroughHeaders collects the caller's X- prefixed headers for
// forwarding upstream. Credential headers are filtered again at the
// adapter boundary.
func passthroughHeaders(r *http.Request) map[string]string {
	var out map[string]string
	for name, values := range r.Header {
		if !strings.HasPrefix(name, "X-") || len(values) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = values[0]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as the OpenAI error envelope with the status
// code the error maps to. Rate-limit rejections additionally carry a
// Retry-After header.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := domain.AsAPIError(err)
	AddError(r.Context(), apiErr)

	if apiErr.RateLimit != nil {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(apiErr.RateLimit.Reset)))
	}

	writeJSON(w, apiErr.HTTPStatusCode(), domain.ErrorEnvelope{Error: apiErr})
}

// retryAfterSeconds converts a reset time into whole seconds from now,
// rounded up, never less than one.
func retryAfterSeconds(reset time.Time) int {
	until := time.Until(reset)
	secs := int((until + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
