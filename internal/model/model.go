// Package model holds the learned-model side of the hybrid scorer: the Model
// interface and its adapters (a local logistic model, a SageMaker endpoint and
// a persistent score cache).
package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"iacsift/internal/features"
)

var (
	// ErrModelUnavailable is returned when the model is not loaded or fails
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrModelTimeout is returned when the model does not answer in time
	ErrModelTimeout = errors.New("model timed out")
)

// Model estimates the probability that a feature vector describes a risky
// configuration. Implementations must be safe for concurrent use.
type Model interface {
	Score(ctx context.Context, v features.Vector) (float64, error)
}

// Func adapts a plain function to the Model interface
type Func func(ctx context.Context, v features.Vector) (float64, error)

func (f Func) Score(ctx context.Context, v features.Vector) (float64, error) {
	return f(ctx, v)
}

// checkScore rejects probabilities outside [0,1]
func checkScore(p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: score %v outside [0,1]", ErrModelUnavailable, p)
	}
	return p, nil
}

// contextError maps a finished context onto the model error taxonomy
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrModelTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
}

// Encode returns the numeric model input for v: every boolean and numeric
// feature in name order. Enum features are left to models that understand
// categories.
func Encode(v features.Vector) (names []string, values []float64) {
	for _, name := range v.Names() {
		val, _ := v.Get(name)
		if val.Type() == features.TypeEnum {
			continue
		}
		names = append(names, name)
		values = append(values, val.AsNumber())
	}
	return names, values
}
