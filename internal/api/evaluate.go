package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/TimurManjosov/flagship-go-sdk/internal/engine"
	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
)

// evaluateRequest represents the request body for the evaluate endpoints.
type evaluateRequest struct {
	Namespace string         `json:"namespace"`
	FlagKey   string         `json:"flag_key"`
	EntityID  string         `json:"entity_id"`
	Context   map[string]any `json:"context,omitempty"`
}

func (req *evaluateRequest) validate() (ErrorCode, string) {
	if strings.TrimSpace(req.FlagKey) == "" {
		return ErrCodeMissingField, "flag_key is required"
	}
	if strings.TrimSpace(req.EntityID) == "" {
		return ErrCodeMissingField, "entity_id is required"
	}
	return "", ""
}

func (req *evaluateRequest) namespace() string {
	if req.Namespace == "" {
		return "default"
	}
	return req.Namespace
}

func (req *evaluateRequest) evalContext() engine.Context {
	return engine.Context{EntityID: req.EntityID, Attributes: req.Context}
}

// handleEvaluateVariant handles POST /v1/evaluate/variant
func (s *Server) handleEvaluateVariant(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	if code, msg := req.validate(); code != "" {
		writeError(w, r, http.StatusBadRequest, code, msg)
		return
	}

	result := engine.EvaluateVariant(s.store.Current(), req.namespace(), req.FlagKey, req.evalContext())
	s.metrics.ObserveEvaluation(req.namespace(), string(result.Reason))
	writeJSON(w, http.StatusOK, result)
}

// handleEvaluateBoolean handles POST /v1/evaluate/boolean
func (s *Server) handleEvaluateBoolean(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	if code, msg := req.validate(); code != "" {
		writeError(w, r, http.StatusBadRequest, code, msg)
		return
	}

	result := engine.EvaluateBoolean(s.store.Current(), req.namespace(), req.FlagKey, req.evalContext())
	s.metrics.ObserveEvaluation(req.namespace(), string(result.Reason))
	writeJSON(w, http.StatusOK, result)
}

// batchRequest represents the request body for POST /v1/evaluate/batch
type batchRequest struct {
	Requests []evaluateRequest `json:"requests"`
}

// batchResponse carries one result per request, in request order.
type batchResponse struct {
	Responses   []batchResult `json:"responses"`
	EvaluatedAt string        `json:"evaluatedAt"`
}

// batchResult is a tagged union: exactly one of Variant or Boolean is
// set, according to the flag's type.
type batchResult struct {
	Type    rules.FlagType        `json:"type"`
	Variant *engine.VariantResult `json:"variant,omitempty"`
	Boolean *engine.BooleanResult `json:"boolean,omitempty"`
}

// handleEvaluateBatch handles POST /v1/evaluate/batch
func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	if len(req.Requests) == 0 {
		writeError(w, r, http.StatusBadRequest, ErrCodeMissingField, "requests is required")
		return
	}
	for i := range req.Requests {
		if code, msg := req.Requests[i].validate(); code != "" {
			writeError(w, r, http.StatusBadRequest, code, msg)
			return
		}
	}

	// One snapshot for the whole batch: results stay mutually consistent
	// even if a new snapshot lands mid-request.
	snap := s.store.Current()

	resp := batchResponse{
		Responses:   make([]batchResult, 0, len(req.Requests)),
		EvaluatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for i := range req.Requests {
		er := &req.Requests[i]

		flagType := rules.FlagTypeVariant
		if snap != nil {
			if flag, err := snap.Flag(er.namespace(), er.FlagKey); err == nil {
				flagType = flag.Type
			}
		}

		var result batchResult
		if flagType == rules.FlagTypeBoolean {
			boolean := engine.EvaluateBoolean(snap, er.namespace(), er.FlagKey, er.evalContext())
			s.metrics.ObserveEvaluation(er.namespace(), string(boolean.Reason))
			result = batchResult{Type: rules.FlagTypeBoolean, Boolean: &boolean}
		} else {
			variant := engine.EvaluateVariant(snap, er.namespace(), er.FlagKey, er.evalContext())
			s.metrics.ObserveEvaluation(er.namespace(), string(variant.Reason))
			result = batchResult{Type: rules.FlagTypeVariant, Variant: &variant}
		}
		resp.Responses = append(resp.Responses, result)
	}

	writeJSON(w, http.StatusOK, resp)
}

// flagSummary is the list-view projection of a flag.
type flagSummary struct {
	Key         string         `json:"key"`
	Description string         `json:"description,omitempty"`
	Type        rules.FlagType `json:"type"`
	Enabled     bool           `json:"enabled"`
}

// handleListFlags handles GET /v1/flags?namespace=
func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	if snap == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeNotReady, "no snapshot synced yet")
		return
	}

	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = "default"
	}

	flags, err := snap.Flags(namespace)
	if err != nil {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "unknown namespace "+namespace)
		return
	}

	out := make([]flagSummary, 0, len(flags))
	for _, f := range flags {
		out = append(out, flagSummary{
			Key:         f.Key,
			Description: f.Description,
			Type:        f.Type,
			Enabled:     f.Enabled,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace": namespace,
		"flags":     out,
		"etag":      snap.ETag(),
	})
}
