package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime/sagemakerruntimeiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"iacsift/internal/config"
	"iacsift/internal/features"
)

func sampleVector() features.Vector {
	return features.NewVector(map[string]features.Value{
		features.PublicAccess:      features.Bool(true),
		features.EncryptionEnabled: features.Bool(false),
		features.TagQualityScore:   features.Number(0.5),
		features.ResourceKind:      features.Enum("storage-bucket"),
	})
}

func TestEncodeSkipsEnums(t *testing.T) {
	names, values := Encode(sampleVector())
	assert.Equal(t, []string{features.EncryptionEnabled, features.PublicAccess, features.TagQualityScore}, names)
	assert.Equal(t, []float64{0, 1, 0.5}, values)
	assert.Equal(t, "0,1,0.5", string(EncodeCSV(sampleVector())))
}

func TestLogisticScore(t *testing.T) {
	m := &Logistic{
		Intercept: -1,
		Weights:   map[string]float64{features.PublicAccess: 3},
		Categorical: map[string]map[string]float64{
			features.ResourceKind: {"storage-bucket": 0.5},
		},
	}

	p, err := m.Score(context.Background(), sampleVector())
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(2.5), p, 1e-9)

	empty, err := m.Score(context.Background(), features.NewVector(nil))
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(-1), empty, 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Score(ctx, sampleVector())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLogisticScoreIsReproducible(t *testing.T) {
	m, err := LoadLogistic(filepath.Join("..", "..", "models", "logistic.yaml"))
	require.NoError(t, err)

	v := features.NewVector(map[string]features.Value{
		features.PublicAccess:            features.Bool(true),
		features.EncryptionEnabled:       features.Bool(true),
		features.VersioningEnabled:       features.Bool(true),
		features.LoggingEnabled:          features.Bool(true),
		features.SensitiveNaming:         features.Bool(true),
		features.HasTags:                 features.Bool(true),
		features.MFADeleteRequired:       features.Bool(true),
		features.CORSWildcard:            features.Bool(true),
		features.HardcodedSecretPresent:  features.Bool(true),
		features.AdminWildcardPermission: features.Bool(true),
		features.TagQualityScore:         features.Number(2.0 / 3.0),
		features.BackupRetentionDays:     features.Number(5),
		features.ResourceKind:            features.Enum("managed-database"),
	})

	first, err := m.Score(context.Background(), v)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		p, err := m.Score(context.Background(), v)
		require.NoError(t, err)
		require.Equal(t, first, p, "score changed on call %d", i)
	}
}

func TestLoadLogistic(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("intercept: -2\nweights:\n  public_access: 1.5\n"), 0644))
	m, err := LoadLogistic(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, -2.0, m.Intercept)
	assert.Equal(t, 1.5, m.Weights["public_access"])

	jsonPath := filepath.Join(dir, "weights.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"intercept": 0.5, "weights": {"has_tags": -1}}`), 0644))
	m, err = LoadLogistic(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, -1.0, m.Weights["has_tags"])

	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte("intercept: 1\n"), 0644))
	_, err = LoadLogistic(emptyPath)
	assert.Error(t, err)

	_, err = LoadLogistic(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestBundledWeightsLoad(t *testing.T) {
	m, err := LoadLogistic(filepath.Join("..", "..", "models", "logistic.yaml"))
	require.NoError(t, err)

	p, err := m.Score(context.Background(), sampleVector())
	require.NoError(t, err)
	assert.Greater(t, p, 0.5)
}

func TestCheckScore(t *testing.T) {
	for _, p := range []float64{0, 0.3, 1} {
		got, err := checkScore(p)
		assert.NoError(t, err)
		assert.Equal(t, p, got)
	}
	for _, p := range []float64{-0.1, 1.01} {
		_, err := checkScore(p)
		assert.ErrorIs(t, err, ErrModelUnavailable)
	}
}

func TestContextError(t *testing.T) {
	assert.ErrorIs(t, contextError(context.DeadlineExceeded), ErrModelTimeout)
	assert.ErrorIs(t, contextError(context.Canceled), ErrModelUnavailable)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    float64
		wantErr bool
	}{
		{name: "bare number", body: "0.87\n", want: 0.87},
		{name: "json list", body: "[0.4]", want: 0.4},
		{name: "score object", body: `{"score": 0.25}`, want: 0.25},
		{name: "probability object", body: `{"probability": 0.6}`, want: 0.6},
		{name: "predictions", body: `{"predictions": [{"score": 0.9}]}`, want: 0.9},
		{name: "empty", body: "  ", wantErr: true},
		{name: "text", body: "error", wantErr: true},
		{name: "object without score", body: `{"label": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScore([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

type mockSageMakerClient struct {
	sagemakerruntimeiface.SageMakerRuntimeAPI
	mock.Mock
}

func (m *mockSageMakerClient) InvokeEndpointWithContext(ctx aws.Context, in *sagemakerruntime.InvokeEndpointInput, opts ...request.Option) (*sagemakerruntime.InvokeEndpointOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sagemakerruntime.InvokeEndpointOutput)
	return out, args.Error(1)
}

func fastLimits() *config.RateLimitConfig {
	return &config.RateLimitConfig{
		RequestsPerSecond: 100,
		MaxRetries:        2,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
	}
}

func TestSageMakerScore(t *testing.T) {
	client := &mockSageMakerClient{}
	client.On("InvokeEndpointWithContext", mock.Anything, mock.MatchedBy(func(in *sagemakerruntime.InvokeEndpointInput) bool {
		return aws.StringValue(in.EndpointName) == "risk-ok" &&
			aws.StringValue(in.ContentType) == "text/csv" &&
			string(in.Body) == "0,1,0.5"
	})).Return(&sagemakerruntime.InvokeEndpointOutput{Body: []byte(`{"score": 0.73}`)}, nil).Once()

	m := NewSageMakerWithClient(client, "risk-ok", fastLimits())
	p, err := m.Score(context.Background(), sampleVector())
	require.NoError(t, err)
	assert.InDelta(t, 0.73, p, 1e-9)
	client.AssertExpectations(t)
}

func TestSageMakerRetriesThrottling(t *testing.T) {
	client := &mockSageMakerClient{}
	client.On("InvokeEndpointWithContext", mock.Anything, mock.Anything).
		Return(nil, awserr.New("ThrottlingException", "Rate exceeded", nil)).Once()
	client.On("InvokeEndpointWithContext", mock.Anything, mock.Anything).
		Return(&sagemakerruntime.InvokeEndpointOutput{Body: []byte("0.2")}, nil).Once()

	m := NewSageMakerWithClient(client, "risk-throttled", fastLimits())
	p, err := m.Score(context.Background(), sampleVector())
	require.NoError(t, err)
	assert.InDelta(t, 0.2, p, 1e-9)
	client.AssertNumberOfCalls(t, "InvokeEndpointWithContext", 2)
}

func TestSageMakerErrors(t *testing.T) {
	client := &mockSageMakerClient{}
	client.On("InvokeEndpointWithContext", mock.Anything, mock.Anything).
		Return(nil, awserr.New("ValidationError", "Endpoint not found", nil)).Once()

	m := NewSageMakerWithClient(client, "risk-missing", fastLimits())
	_, err := m.Score(context.Background(), sampleVector())
	assert.ErrorIs(t, err, ErrModelUnavailable)
	client.AssertNumberOfCalls(t, "InvokeEndpointWithContext", 1)

	client = &mockSageMakerClient{}
	client.On("InvokeEndpointWithContext", mock.Anything, mock.Anything).
		Return(&sagemakerruntime.InvokeEndpointOutput{Body: []byte("1.7")}, nil).Once()
	m = NewSageMakerWithClient(client, "risk-out-of-range", fastLimits())
	_, err = m.Score(context.Background(), sampleVector())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestRateLimiterBackoff(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{
		RequestsPerSecond: 10,
		MaxRetries:        3,
		BaseDelay:         10 * time.Millisecond,
		MaxDelay:          25 * time.Millisecond,
	})
	defer rl.Stop()

	assert.Equal(t, time.Duration(0), rl.currentBackoff())
	rl.OnFailure()
	assert.Equal(t, 10*time.Millisecond, rl.currentBackoff())
	rl.OnFailure()
	assert.Equal(t, 20*time.Millisecond, rl.currentBackoff())
	rl.OnFailure()
	assert.Equal(t, 25*time.Millisecond, rl.currentBackoff())
	rl.OnSuccess()
	assert.Equal(t, time.Duration(0), rl.currentBackoff())

	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rl.OnFailure()
	assert.Error(t, rl.Wait(ctx))
}

func TestCachedModel(t *testing.T) {
	var calls int32
	inner := Func(func(ctx context.Context, v features.Vector) (float64, error) {
		atomic.AddInt32(&calls, 1)
		if v.Bool(features.HasTags) {
			return 0, ErrModelUnavailable
		}
		return 0.4, nil
	})

	path := filepath.Join(t.TempDir(), "cache", "model.json")
	c, err := NewCached(inner, path, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		p, err := c.Score(context.Background(), sampleVector())
		require.NoError(t, err)
		assert.Equal(t, 0.4, p)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	failing := sampleVector().With(features.HasTags, features.Bool(true))
	_, err = c.Score(context.Background(), failing)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	_, err = c.Score(context.Background(), failing)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "errors are not cached")

	require.NoError(t, c.Save())

	reloaded, err := NewCached(Func(func(context.Context, features.Vector) (float64, error) {
		return 0, errors.New("should not be called")
	}), path, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	p, err := reloaded.Score(context.Background(), sampleVector())
	require.NoError(t, err)
	assert.Equal(t, 0.4, p)
}

func TestCachedModelExpiry(t *testing.T) {
	var calls int32
	inner := Func(func(context.Context, features.Vector) (float64, error) {
		atomic.AddInt32(&calls, 1)
		return 0.9, nil
	})

	c, err := NewCached(inner, "", time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err = c.Score(context.Background(), sampleVector())
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = c.Score(context.Background(), sampleVector())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.NoError(t, c.Save(), "memory-only cache saves nothing")
}

func TestFromSettings(t *testing.T) {
	noSession := func(string) (*session.Session, error) {
		return nil, errors.New("no aws in tests")
	}

	m, err := FromSettings(config.ModelSettings{Provider: config.ProviderNone}, noSession)
	require.NoError(t, err)
	assert.Nil(t, m)

	path := filepath.Join("..", "..", "models", "logistic.yaml")
	m, err = FromSettings(config.ModelSettings{Provider: config.ProviderLogistic, Path: path}, noSession)
	require.NoError(t, err)
	assert.IsType(t, &Logistic{}, m)

	m, err = FromSettings(config.ModelSettings{
		Provider:  config.ProviderLogistic,
		Path:      path,
		CacheFile: filepath.Join(t.TempDir(), "scores.json"),
	}, noSession)
	require.NoError(t, err)
	assert.IsType(t, &Cached{}, m)
	_, ok := m.(Saver)
	assert.True(t, ok)

	_, err = FromSettings(config.ModelSettings{Provider: config.ProviderSageMaker, Endpoint: "risk"}, noSession)
	assert.Error(t, err)

	_, err = FromSettings(config.ModelSettings{Provider: "magic"}, noSession)
	assert.Error(t, err)
}
