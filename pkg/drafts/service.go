package drafts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/replyforge/replyforge/pkg/quota"
)

// Completer is the black-box completion provider.
type Completer interface {
	// Complete sends the prompts and returns the raw provider output.
	// Implementations bound the call with a hard timeout and map failures
	// onto ErrUpstreamTimeout / ErrUpstream.
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Service runs the generation pipeline for one request:
// validate, meter quota, build prompt, complete, extract, assemble.
//
// Validation runs before metering on purpose: malformed requests never
// consume a quota unit. The increment happens before the completion call
// and is not refunded if that call fails or the caller goes away.
type Service struct {
	ledger    *quota.Ledger
	completer Completer
	logger    quota.Logger
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the pipeline logger (default: NoopLogger).
func WithLogger(logger quota.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithServiceClock overrides the time source, for tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the pipeline. completer may be nil when no provider
// credential is configured; every generation then fails with
// ErrMissingAPIKey before any quota is spent.
func NewService(ledger *quota.Ledger, completer Completer, opts ...ServiceOption) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}

	s := &Service{
		ledger:    ledger,
		completer: completer,
		logger:    &quota.NoopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate produces exactly three reply drafts for the caller, or fails
// with *ValidationError, *QuotaExceededError, ErrMissingAPIKey,
// ErrUpstreamTimeout, or ErrUpstream.
func (s *Service) Generate(ctx context.Context, id quota.Identity, raw RawRequest) (*Response, error) {
	req, err := ValidateRequest(raw)
	if err != nil {
		return nil, err
	}

	if s.completer == nil {
		return nil, ErrMissingAPIKey
	}

	decision, err := s.ledger.CheckAndIncrement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("quota check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, &QuotaExceededError{Decision: decision}
	}

	systemPrompt := BuildSystemPrompt(req.Tone, req.Language)

	start := s.now()
	rawText, err := s.completer.Complete(ctx, systemPrompt, req.Message)
	duration := s.now().Sub(start)
	if err != nil {
		s.logger.Error("completion failed",
			quota.Field{Key: "tier", Value: id.TierName()},
			quota.Field{Key: "duration_ms", Value: duration.Milliseconds()},
			quota.Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}

	extracted := ExtractDrafts(rawText)
	if len(extracted) < DraftCount {
		// Degraded parse: handled by padding, never surfaced as a failure.
		s.logger.Warn("provider output yielded fewer than three drafts",
			quota.Field{Key: "extracted", Value: len(extracted)},
			quota.Field{Key: "duration_ms", Value: duration.Milliseconds()},
		)
	}

	s.logger.Info("drafts generated",
		quota.Field{Key: "tier", Value: id.TierName()},
		quota.Field{Key: "tone", Value: string(req.Tone)},
		quota.Field{Key: "used", Value: decision.Used},
		quota.Field{Key: "duration_ms", Value: duration.Milliseconds()},
	)

	return AssembleResponse(extracted, decision.Snapshot()), nil
}

// Quota returns the caller's current quota snapshot without consuming.
func (s *Service) Quota(ctx context.Context, id quota.Identity) (quota.Snapshot, error) {
	return s.ledger.Peek(ctx, id)
}
