package model

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"iacsift/internal/features"
)

// Logistic is an offline-trained logistic regression over the feature vector.
// The weights file is YAML; JSON files load as well since YAML is a superset.
//
//	intercept: -2.5
//	weights:
//	  public_access: 2.1
//	  encryption_enabled: -1.4
//	categorical:
//	  resource_kind:
//	    storage-bucket: 0.3
type Logistic struct {
	Intercept   float64                       `yaml:"intercept" json:"intercept"`
	Weights     map[string]float64            `yaml:"weights" json:"weights"`
	Categorical map[string]map[string]float64 `yaml:"categorical" json:"categorical"`

	// sorted summation order keeps scores bit-for-bit reproducible
	once          sync.Once
	weightNames   []string
	categoryNames []string
}

func (m *Logistic) index() {
	m.weightNames = sortedKeys(m.Weights)
	m.categoryNames = sortedKeys(m.Categorical)
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadLogistic reads a weights file
func LoadLogistic(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model weights: %w", err)
	}

	var m Logistic
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model weights %s: %w", path, err)
	}
	if len(m.Weights) == 0 && len(m.Categorical) == 0 {
		return nil, fmt.Errorf("model weights %s define no features", path)
	}
	m.once.Do(m.index)
	return &m, nil
}

// Score implements Model
func (m *Logistic) Score(ctx context.Context, v features.Vector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, contextError(err)
	}

	m.once.Do(m.index)

	z := m.Intercept
	for _, name := range m.weightNames {
		z += m.Weights[name] * v.Number(name)
	}
	for _, name := range m.categoryNames {
		z += m.Categorical[name][v.Enum(name)]
	}
	return checkScore(sigmoid(z))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
