package scoring

import (
	"fmt"

	"iacsift/internal/config"
	"iacsift/internal/features"
	"iacsift/internal/model"
	"iacsift/internal/rules"
)

// OptionsFromSettings converts validated scoring settings into classifier
// options
func OptionsFromSettings(s config.ScoringSettings) (Options, error) {
	weights := rules.DefaultWeights()
	for name, w := range s.SeverityWeights {
		sev, err := rules.ParseSeverity(name)
		if err != nil {
			return Options{}, fmt.Errorf("%w: severity_weights: %v", config.ErrInvalidConfig, err)
		}
		weights[sev] = w
	}
	if err := weights.Validate(); err != nil {
		return Options{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	return Options{
		DecisionThreshold: s.DecisionThreshold,
		MaxFindings:       s.MaxFindings,
		Features: features.Options{
			SensitiveKeywords: s.SensitiveKeywords,
			RequiredTags:      s.RequiredTags,
		},
		Weights: weights,
	}, nil
}

// NewFromSettings builds a classifier from validated settings around m, which
// may be nil
func NewFromSettings(s config.ScoringSettings, m model.Model) (*Classifier, error) {
	opts, err := OptionsFromSettings(s)
	if err != nil {
		return nil, err
	}
	scorer, err := NewHybridScorer(m, s.BlendWeight, s.ModelTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return NewClassifier(scorer, opts), nil
}
