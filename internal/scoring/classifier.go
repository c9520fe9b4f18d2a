package scoring

import (
	"context"
	"sync"

	"iacsift/internal/features"
	"iacsift/internal/logging"
	"iacsift/internal/resource"
	"iacsift/internal/rules"
	"iacsift/internal/verdict"
	"iacsift/internal/worker"
)

// Options tune classification
type Options struct {
	DecisionThreshold float64
	MaxFindings       int
	Features          features.Options
	Weights           rules.Weights
}

// DefaultOptions returns a 0.5 threshold, unbounded findings and the default
// keyword, tag and weight tables
func DefaultOptions() Options {
	return Options{
		DecisionThreshold: 0.5,
		Features:          features.DefaultOptions(),
		Weights:           rules.DefaultWeights(),
	}
}

// Classifier turns declarations into verdicts
type Classifier struct {
	features *features.Registry
	engine   *rules.Engine
	scorer   *HybridScorer
	pool     *worker.Pool
	opts     Options
}

// NewClassifier creates a classifier over the built-in feature and rule
// catalogs
func NewClassifier(scorer *HybridScorer, opts Options) *Classifier {
	return &Classifier{
		features: features.DefaultRegistry,
		engine:   rules.NewEngine(rules.DefaultRegistry, opts.Weights),
		scorer:   scorer,
		opts:     opts,
	}
}

// WithRegistries swaps the feature and rule catalogs
func (c *Classifier) WithRegistries(f *features.Registry, r *rules.Registry) *Classifier {
	c.features = f
	c.engine = rules.NewEngine(r, c.opts.Weights)
	return c
}

// WithPool runs batches on p instead of the shared pool
func (c *Classifier) WithPool(p *worker.Pool) *Classifier {
	c.pool = p
	return c
}

// Classify scans one declaration. It never fails: extraction and rule
// problems become defaults and diagnostics, model problems become a fallback.
func (c *Classifier) Classify(ctx context.Context, d *resource.Declaration) verdict.Verdict {
	vec := c.features.Extract(d, c.opts.Features)
	res := c.engine.Evaluate(vec)
	score := c.scorer.Score(ctx, res.Score, vec)

	label := verdict.LabelFor(score.Risk, c.opts.DecisionThreshold)
	findings := res.Findings
	if label == verdict.Risky && len(findings) == 0 {
		if score.Status == verdict.ModelOK {
			findings = []rules.Finding{rules.ModelFinding()}
		} else {
			findings = []rules.Finding{rules.ThresholdFinding()}
		}
	}
	findings = verdict.Explain(findings, c.opts.MaxFindings)

	meta := verdict.Metadata{
		ModelStatus: score.Status,
		Diagnostics: d.Diagnostics(),
	}
	if score.Err != nil {
		meta.ModelError = score.Err.Error()
		logging.ModelFallback(d.ID(), string(score.Status), score.Err)
	}

	v := verdict.Verdict{
		ResourceName:    d.Name(),
		ResourceKind:    d.Kind(),
		ResourceType:    d.Type(),
		Source:          d.Source(),
		RiskLabel:       label,
		RiskScore:       score.Risk,
		RuleScore:       score.Rule,
		ModelScore:      score.Model,
		ModelConfidence: score.Confidence,
		Findings:        findings,
		Features:        vec,
		Metadata:        meta,
	}

	logging.ResourceClassified(d.ID(), string(label), score.Risk, len(findings))
	return v
}

// ProgressFunc is called after each resource of a batch completes
type ProgressFunc func(done, total int)

// ClassifyBatch scans decls concurrently and returns verdicts in input order.
// Once ctx is cancelled no further resources are started; verdicts for the
// resources that were not scanned are omitted.
func (c *Classifier) ClassifyBatch(ctx context.Context, decls []*resource.Declaration, progress ProgressFunc) []verdict.Verdict {
	pool := c.pool
	if pool == nil {
		pool = worker.GetSharedPool()
	}

	results := make([]*verdict.Verdict, len(decls))
	var mu sync.Mutex
	done := 0

	tasks := make([]worker.Task, len(decls))
	for i, d := range decls {
		i, d := i, d
		tasks[i] = func(ctx context.Context) error {
			v := c.Classify(ctx, d)
			results[i] = &v

			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(decls))
				mu.Unlock()
			}
			return nil
		}
	}

	pool.ExecuteTasks(ctx, tasks)

	verdicts := make([]verdict.Verdict, 0, len(decls))
	for _, v := range results {
		if v != nil {
			verdicts = append(verdicts, *v)
		}
	}
	return verdicts
}
