// Package audit orchestrates the full behavior audit of an execution trace.
//
// An Auditor runs the three analyzers - behavioral encoding, deception
// detection, and compliance checking - concurrently and combines their
// outputs into a single trace.AuditResult. Completed traces get a final
// audit whose embedding is written to the similarity index; running traces
// can be previewed without touching the index.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spectracehq/audit-sdk-go/compliance"
	"github.com/spectracehq/audit-sdk-go/deception"
	"github.com/spectracehq/audit-sdk-go/embedding"
	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/observe"
	"github.com/spectracehq/audit-sdk-go/similarity"
	"github.com/spectracehq/audit-sdk-go/trace"
)

const defaultEncodeTimeout = 30 * time.Second

var (
	// ErrTraceNotFinal is returned by Audit for traces that are still
	// running or ended in failure. Use Preview for those.
	ErrTraceNotFinal = errors.New("audit: trace is not completed")
	// ErrEncodeTimeout marks encoder failures caused by the encode
	// deadline. It is the only retryable audit error.
	ErrEncodeTimeout = errors.New("audit: behavioral encoding timed out")
)

type Auditor struct {
	encoder       *embedding.Encoder
	detector      *deception.Detector
	rules         *compliance.RuleSet
	risk          compliance.RiskConfig
	store         history.Store
	sink          observe.Sink
	encodeTimeout time.Duration
	retryPolicy   RetryPolicy
}

type Option func(*Auditor)

// WithRules replaces the built-in compliance rule set.
func WithRules(rules *compliance.RuleSet) Option {
	return func(a *Auditor) {
		if rules != nil {
			a.rules = rules
		}
	}
}

// WithRiskConfig overrides severity weights and the dilution exponent.
func WithRiskConfig(cfg compliance.RiskConfig) Option {
	return func(a *Auditor) { a.risk = cfg }
}

// WithDetector replaces the built-in deception detector.
func WithDetector(d *deception.Detector) Option {
	return func(a *Auditor) {
		if d != nil {
			a.detector = d
		}
	}
}

// WithHistory persists every final audit result to the store.
func WithHistory(store history.Store) Option {
	return func(a *Auditor) { a.store = store }
}

// WithSink routes observability events for audits, violations, and steps.
func WithSink(sink observe.Sink) Option {
	return func(a *Auditor) {
		if sink != nil {
			a.sink = sink
		}
	}
}

// WithEncodeTimeout bounds a single encoding attempt. Zero disables the
// deadline.
func WithEncodeTimeout(timeout time.Duration) Option {
	return func(a *Auditor) {
		if timeout >= 0 {
			a.encodeTimeout = timeout
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(a *Auditor) {
		a.retryPolicy = normalizeRetryPolicy(policy)
	}
}

// New builds an Auditor around the given encoder. Detector and rules
// default to the built-in indicator and rule sets.
func New(encoder *embedding.Encoder, opts ...Option) (*Auditor, error) {
	if encoder == nil {
		return nil, errors.New("encoder is required")
	}

	detector, err := deception.New(deception.DefaultIndicators())
	if err != nil {
		return nil, fmt.Errorf("failed to build default detector: %w", err)
	}

	a := &Auditor{
		encoder:       encoder,
		detector:      detector,
		rules:         compliance.DefaultRuleSet(),
		risk:          compliance.DefaultRiskConfig(),
		sink:          observe.NoopSink{},
		encodeTimeout: defaultEncodeTimeout,
		retryPolicy:   defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.retryPolicy = normalizeRetryPolicy(a.retryPolicy)
	return a, nil
}

// Audit runs a final audit over a completed trace. The behavioral embedding
// is written to the similarity index and, when a history store is
// configured, the result is persisted.
func (a *Auditor) Audit(ctx context.Context, tr *trace.ExecutionTrace) (*trace.AuditResult, error) {
	if tr == nil {
		return nil, errors.New("trace is required")
	}
	if tr.Status != trace.StatusCompleted {
		return nil, fmt.Errorf("%w: trace %s has status %q", ErrTraceNotFinal, tr.ID, tr.Status)
	}

	res, err := a.run(ctx, tr, true)
	if err != nil {
		return nil, err
	}

	if a.store != nil {
		if err := a.store.SaveResult(ctx, *res); err != nil {
			log.Printf("[audit] failed to save result %s: %v", res.AuditID, err)
		}
	}
	return res, nil
}

// Preview audits a trace without writing to the similarity index or the
// history store. It accepts traces in any state, including running ones.
func (a *Auditor) Preview(ctx context.Context, tr *trace.ExecutionTrace) (*trace.AuditResult, error) {
	if tr == nil {
		return nil, errors.New("trace is required")
	}
	return a.run(ctx, tr, false)
}

// FindSimilar queries the encoder's similarity index for the k nearest
// previously indexed traces.
func (a *Auditor) FindSimilar(ctx context.Context, vec []float64, k int) ([]similarity.Match, error) {
	return a.encoder.FindSimilar(ctx, vec, k)
}

func (a *Auditor) run(ctx context.Context, tr *trace.ExecutionTrace, final bool) (*trace.AuditResult, error) {
	if len(tr.Steps) == 0 {
		return nil, fmt.Errorf("trace %s: %w", tr.ID, embedding.ErrEmptyTrace)
	}

	auditID := uuid.NewString()
	startedAt := time.Now().UTC()
	_ = a.sink.Emit(ctx, observe.AuditStarted(tr, auditID))

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error

		vec        []float64
		report     deception.Report
		violations []trace.ViolationRecord
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		v, err := a.encodeWithRetry(ctx, tr, final)
		if err != nil {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			return
		}
		vec = v
	}()
	go func() {
		defer wg.Done()
		report = a.detector.Report(tr)
	}()
	go func() {
		defer wg.Done()
		violations = a.rules.Check(tr)
	}()
	wg.Wait()

	if firstErr != nil {
		_ = a.sink.Emit(ctx, observe.AuditFailed(tr, auditID, time.Since(startedAt), firstErr))
		return nil, firstErr
	}

	completedAt := time.Now().UTC()
	res := &trace.AuditResult{
		AuditID:              auditID,
		TraceID:              tr.ID,
		AgentID:              tr.AgentID,
		Embedding:            vec,
		DeceptionProbability: report.Probability,
		StepScores:           report.StepScores,
		Flags:                report.Flags,
		Violations:           violations,
		RiskScore:            compliance.CalculateRisk(violations, a.risk),
		Preview:              !final,
		StartedAt:            &startedAt,
		CompletedAt:          &completedAt,
	}

	for _, v := range violations {
		_ = a.sink.Emit(ctx, observe.ViolationFound(tr.ID, tr.AgentID, v))
	}
	_ = a.sink.Emit(ctx, observe.AuditCompleted(res, completedAt.Sub(startedAt)))
	return res, nil
}

func (a *Auditor) encodeWithRetry(ctx context.Context, tr *trace.ExecutionTrace, final bool) ([]float64, error) {
	policy := normalizeRetryPolicy(a.retryPolicy)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		vec, err := a.encodeOnce(ctx, tr, final)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !errors.Is(err, ErrEncodeTimeout) || attempt == policy.MaxAttempts {
			break
		}

		backoff := policy.backoffForAttempt(attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if errors.Is(lastErr, ErrEncodeTimeout) && policy.MaxAttempts > 1 {
		return nil, fmt.Errorf("encoding failed after %d attempt(s): %w", policy.MaxAttempts, lastErr)
	}
	return nil, lastErr
}

func (a *Auditor) encodeOnce(ctx context.Context, tr *trace.ExecutionTrace, final bool) ([]float64, error) {
	encodeCtx := ctx
	if a.encodeTimeout > 0 {
		var cancel context.CancelFunc
		encodeCtx, cancel = context.WithTimeout(ctx, a.encodeTimeout)
		defer cancel()
	}

	var (
		vec []float64
		err error
	)
	if final {
		vec, err = a.encoder.EncodeAndIndex(encodeCtx, tr)
	} else {
		vec, err = a.encoder.Encode(encodeCtx, tr)
	}
	if err == nil {
		return vec, nil
	}
	// Only the encode deadline counts as a timeout. A dead parent context
	// is the caller's cancellation and is not retried.
	if encodeCtx.Err() != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeTimeout, err)
	}
	return nil, err
}
