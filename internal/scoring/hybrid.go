// Package scoring fuses the rule engine and the learned model into one
// verdict per resource.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"iacsift/internal/features"
	"iacsift/internal/model"
	"iacsift/internal/verdict"
)

// DefaultModelTimeout bounds one model call
const DefaultModelTimeout = 2 * time.Second

// Score is the outcome of blending one rule score with the model
type Score struct {
	Risk       float64
	Rule       float64
	Model      *float64
	Confidence *float64
	Status     verdict.ModelStatus
	Err        error
}

// HybridScorer blends the rule score with a learned model's probability:
//
//	risk = alpha*rule + (1-alpha)*model
//
// When the model is missing, fails or times out the risk is the rule score.
type HybridScorer struct {
	model   model.Model
	alpha   float64
	timeout time.Duration
}

// NewHybridScorer creates a scorer. A nil model disables blending.
func NewHybridScorer(m model.Model, alpha float64, timeout time.Duration) (*HybridScorer, error) {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("blend weight must be within [0,1], got %v", alpha)
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &HybridScorer{
		model:   m,
		alpha:   alpha,
		timeout: timeout,
	}, nil
}

// Blend returns alpha*rule + (1-alpha)*model clamped to [0,1]. It is
// non-decreasing in both scores.
func Blend(alpha, rule, model float64) float64 {
	return math.Max(0, math.Min(1, alpha*rule+(1-alpha)*model))
}

// Confidence is the model's distance from indecision, max(p, 1-p)
func Confidence(p float64) float64 {
	return math.Max(p, 1-p)
}

// Score blends ruleScore with the model's estimate for v
func (h *HybridScorer) Score(ctx context.Context, ruleScore float64, v features.Vector) Score {
	s := Score{Risk: ruleScore, Rule: ruleScore}
	if h.model == nil {
		s.Status = verdict.ModelDisabled
		return s
	}

	p, err := h.callModel(ctx, v)
	if err != nil {
		s.Err = err
		if errors.Is(err, model.ErrModelTimeout) {
			s.Status = verdict.ModelTimeout
		} else {
			s.Status = verdict.ModelUnavailable
		}
		return s
	}

	conf := Confidence(p)
	s.Model = &p
	s.Confidence = &conf
	s.Risk = Blend(h.alpha, ruleScore, p)
	s.Status = verdict.ModelOK
	return s
}

type modelResult struct {
	p   float64
	err error
}

// callModel waits at most h.timeout even when the model ignores its context
func (h *HybridScorer) callModel(ctx context.Context, v features.Vector) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(chan modelResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- modelResult{err: fmt.Errorf("%w: model panicked: %v", model.ErrModelUnavailable, r)}
			}
		}()
		p, err := h.model.Score(ctx, v)
		results <- modelResult{p: p, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) && !errors.Is(r.err, model.ErrModelTimeout) {
				return 0, fmt.Errorf("%w: %v", model.ErrModelTimeout, r.err)
			}
			return 0, r.err
		}
		if math.IsNaN(r.p) || r.p < 0 || r.p > 1 {
			return 0, fmt.Errorf("%w: score %v outside [0,1]", model.ErrModelUnavailable, r.p)
		}
		return r.p, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: no answer within %s", model.ErrModelTimeout, h.timeout)
		}
		return 0, fmt.Errorf("%w: %v", model.ErrModelUnavailable, ctx.Err())
	}
}
