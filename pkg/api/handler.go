// Package api exposes the generation pipeline over HTTP: one operation that
// drafts three replies, plus a non-consuming quota snapshot endpoint.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/replyforge/replyforge/pkg/drafts"
	"github.com/replyforge/replyforge/pkg/quota"
)

// Config holds configuration for the API handler.
type Config struct {
	// Service runs the generation pipeline (required).
	Service *drafts.Service

	// GetIdentity extracts the resolved caller identity from the request
	// (required). Usually middleware/http.FromRequest.
	GetIdentity func(*http.Request) quota.Identity

	// Logger receives request-scoped logs (default: NoopLogger).
	Logger quota.Logger
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Service == nil {
		return fmt.Errorf("service is required")
	}
	if c.GetIdentity == nil {
		return fmt.Errorf("getIdentity is required")
	}
	return nil
}

// Handler serves the drafts API.
type Handler struct {
	config Config
}

// NewHandler creates a new API handler with the given configuration.
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &quota.NoopLogger{}
	}
	return &Handler{config: config}, nil
}

// GenerateDrafts handles POST /drafts. On success the body holds exactly
// three drafts and the caller's quota snapshot.
func (h *Handler) GenerateDrafts(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	id := h.config.GetIdentity(r)
	if id == nil {
		h.writeJSON(w, http.StatusInternalServerError,
			ErrorResponse{Error: "identity was not resolved"})
		return
	}

	var raw drafts.RawRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeJSON(w, http.StatusBadRequest,
			ErrorResponse{Error: "request body must be valid JSON"})
		return
	}

	resp, err := h.config.Service.Generate(r.Context(), id, raw)
	if err != nil {
		h.writeGenerateError(w, requestID, id, err, time.Since(start))
		return
	}

	h.config.Logger.Info("request completed",
		quota.Field{Key: "request_id", Value: requestID},
		quota.Field{Key: "tier", Value: id.TierName()},
		quota.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// GetQuota handles GET /quota: the caller's current standing, nothing
// consumed.
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	id := h.config.GetIdentity(r)
	if id == nil {
		h.writeJSON(w, http.StatusInternalServerError,
			ErrorResponse{Error: "identity was not resolved"})
		return
	}

	snapshot, err := h.config.Service.Quota(r.Context(), id)
	if err != nil {
		h.config.Logger.Error("quota lookup failed",
			quota.Field{Key: "error", Value: err.Error()})
		h.writeJSON(w, http.StatusInternalServerError,
			ErrorResponse{Error: "internal error"})
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// writeGenerateError maps pipeline failures onto the wire taxonomy.
// Every branch logs the request id and duration; none of them passes an
// upstream error body through.
func (h *Handler) writeGenerateError(w http.ResponseWriter, requestID string, id quota.Identity, err error, duration time.Duration) {
	logFields := []quota.Field{
		{Key: "request_id", Value: requestID},
		{Key: "tier", Value: id.TierName()},
		{Key: "duration_ms", Value: duration.Milliseconds()},
		{Key: "error", Value: err.Error()},
	}

	var validationErr *drafts.ValidationError
	var quotaErr *drafts.QuotaExceededError

	switch {
	case errors.As(err, &validationErr):
		h.config.Logger.Info("request rejected", logFields...)
		h.writeJSON(w, http.StatusBadRequest,
			ErrorResponse{Error: validationErr.Message})

	case errors.As(err, &quotaErr):
		h.config.Logger.Info("request rejected", logFields...)
		h.writeJSON(w, http.StatusTooManyRequests, QuotaExceededResponse{
			Error:     "DAILY_LIMIT_REACHED",
			Limit:     quotaErr.Decision.Limit,
			Remaining: 0,
			Pro:       quotaErr.Decision.Pro,
			Message:   "You have used all of today's drafts. Your quota resets at midnight UTC.",
		})

	case errors.Is(err, drafts.ErrMissingAPIKey):
		h.config.Logger.Error("request failed", logFields...)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "configuration error",
			Code:    "MISSING_API_KEY",
			Message: "The completion provider credential is not configured.",
		})

	case errors.Is(err, drafts.ErrUpstreamTimeout):
		h.config.Logger.Error("request failed", logFields...)
		h.writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
			Error:   "upstream timeout",
			Message: "The draft provider took too long to respond. Please try again.",
		})

	case errors.Is(err, drafts.ErrUpstream):
		h.config.Logger.Error("request failed", logFields...)
		h.writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream error",
			Message: "The draft provider could not complete the request.",
		})

	default:
		h.config.Logger.Error("request failed", logFields...)
		h.writeJSON(w, http.StatusInternalServerError,
			ErrorResponse{Error: "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.config.Logger.Error("failed to encode response",
			quota.Field{Key: "error", Value: err.Error()})
	}
}
