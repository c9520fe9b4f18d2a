package model

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"iacsift/internal/config"
	"iacsift/internal/logging"
)

// SessionFunc creates the AWS session for a remote model in region
type SessionFunc func(region string) (*session.Session, error)

// FromSettings builds the model selected by ms. Provider none yields a nil
// Model, which disables blending. Remote models are always wrapped in a
// Cached; local models only when a cache file is configured.
func FromSettings(ms config.ModelSettings, newSession SessionFunc) (Model, error) {
	var m Model
	switch ms.Provider {
	case config.ProviderNone, "":
		return nil, nil

	case config.ProviderLogistic:
		lm, err := LoadLogistic(ms.Path)
		if err != nil {
			return nil, err
		}
		logging.Debug("Loaded logistic model", map[string]interface{}{
			"path":     ms.Path,
			"features": len(lm.Weights) + len(lm.Categorical),
		})
		if ms.CacheFile == "" {
			return lm, nil
		}
		m = lm

	case config.ProviderSageMaker:
		sess, err := newSession(ms.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create session for model endpoint: %w", err)
		}
		rl := ms.RateLimit
		m = NewSageMaker(sess, ms.Endpoint, &rl)

	default:
		return nil, fmt.Errorf("unknown model provider %q", ms.Provider)
	}

	return NewCached(m, ms.CacheFile, ms.CacheTTL)
}

// Saver is implemented by models that persist state between runs
type Saver interface {
	Save() error
}
