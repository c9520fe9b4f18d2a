package rules

import (
	"fmt"

	"iacsift/internal/features"
	"iacsift/internal/logging"
)

// Result is the outcome of evaluating every rule against one vector
type Result struct {
	Findings []Finding
	Score    float64
}

// Engine evaluates a rule registry and folds the findings into a score
type Engine struct {
	registry *Registry
	weights  Weights
}

// NewEngine creates an engine. Severities missing from weights fall back to
// the default table.
func NewEngine(registry *Registry, weights Weights) *Engine {
	merged := DefaultWeights()
	for s, w := range weights {
		merged[s] = w
	}
	return &Engine{
		registry: registry,
		weights:  merged,
	}
}

// Evaluate runs every rule independently; all matching rules fire. A rule
// that panics is skipped.
func (e *Engine) Evaluate(v features.Vector) Result {
	var findings []Finding
	for _, rule := range e.registry.Rules() {
		if fired, ok := e.apply(rule, v); ok && fired {
			findings = append(findings, rule.Finding(v))
		}
	}
	return Result{
		Findings: findings,
		Score:    e.Score(findings),
	}
}

func (e *Engine) apply(rule Rule, v features.Vector) (fired, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Debug("Rule evaluation failed, skipping", map[string]interface{}{
				"rule":  rule.ID,
				"panic": fmt.Sprint(rec),
			})
			fired, ok = false, false
		}
	}()
	return rule.Applies(v), true
}

// Score combines finding severities with a probabilistic OR:
// 1 - prod(1 - w(severity)). No findings score 0.
func (e *Engine) Score(findings []Finding) float64 {
	remaining := 1.0
	for _, f := range findings {
		remaining *= 1 - e.weights[f.Severity]
	}
	return clamp(1 - remaining)
}

// Weight returns the configured weight of a severity
func (e *Engine) Weight(s Severity) float64 {
	return e.weights[s]
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
