package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime/sagemakerruntimeiface"

	"iacsift/internal/config"
	"iacsift/internal/features"
	"iacsift/internal/logging"
)

// SageMaker scores vectors with a deployed SageMaker inference endpoint. The
// request body is one CSV row of the encoded vector; the endpoint answers with
// a bare probability or a JSON document carrying one.
type SageMaker struct {
	client   sagemakerruntimeiface.SageMakerRuntimeAPI
	endpoint string
	limiter  *RateLimiter
}

// NewSageMaker creates an endpoint-backed model from an AWS session
func NewSageMaker(sess *session.Session, endpoint string, cfg *config.RateLimitConfig) *SageMaker {
	return NewSageMakerWithClient(sagemakerruntime.New(sess), endpoint, cfg)
}

// NewSageMakerWithClient creates an endpoint-backed model on an existing client
func NewSageMakerWithClient(client sagemakerruntimeiface.SageMakerRuntimeAPI, endpoint string, cfg *config.RateLimitConfig) *SageMaker {
	return &SageMaker{
		client:   client,
		endpoint: endpoint,
		limiter:  limiters.get(endpoint, cfg),
	}
}

// Score implements Model. Throttled calls are retried with backoff until the
// retry budget or the context runs out.
func (s *SageMaker) Score(ctx context.Context, v features.Vector) (float64, error) {
	body := EncodeCSV(v)

	var lastErr error
	for attempt := 0; attempt <= s.limiter.MaxRetries(); attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, contextError(err)
		}

		out, err := s.client.InvokeEndpointWithContext(ctx, &sagemakerruntime.InvokeEndpointInput{
			EndpointName: aws.String(s.endpoint),
			ContentType:  aws.String("text/csv"),
			Accept:       aws.String("application/json"),
			Body:         body,
		})
		if err == nil {
			s.limiter.OnSuccess()
			p, err := parseScore(out.Body)
			if err != nil {
				return 0, fmt.Errorf("%w: endpoint %s: %v", ErrModelUnavailable, s.endpoint, err)
			}
			return checkScore(p)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, contextError(ctxErr)
		}
		if !isThrottled(err) {
			return 0, fmt.Errorf("%w: endpoint %s: %v", ErrModelUnavailable, s.endpoint, err)
		}

		s.limiter.OnFailure()
		lastErr = err
		logging.Debug("Model endpoint throttled, retrying", map[string]interface{}{
			"endpoint": s.endpoint,
			"attempt":  attempt + 1,
		})
	}

	return 0, fmt.Errorf("%w: endpoint %s: retries exhausted: %v", ErrModelUnavailable, s.endpoint, lastErr)
}

// EncodeCSV renders the numeric encoding of v as one CSV row
func EncodeCSV(v features.Vector) []byte {
	_, values := Encode(v)
	cells := make([]string, len(values))
	for i, x := range values {
		cells[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return []byte(strings.Join(cells, ","))
}

func isThrottled(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case "ThrottlingException", "Throttling", "ServiceUnavailable", "TooManyRequestsException":
			return true
		}
	}
	return strings.Contains(err.Error(), "Throttling")
}

// parseScore accepts "0.87", [0.87], {"score": 0.87}, {"probability": 0.87}
// and {"predictions": [...]} with any of those inside
func parseScore(body []byte) (float64, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return 0, fmt.Errorf("empty response")
	}
	if p, err := strconv.ParseFloat(text, 64); err == nil {
		return p, nil
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return 0, fmt.Errorf("unrecognized response %q", truncate(text, 64))
	}
	if p, ok := scoreFrom(doc); ok {
		return p, nil
	}
	return 0, fmt.Errorf("no score in response %q", truncate(text, 64))
}

func scoreFrom(doc interface{}) (float64, bool) {
	switch v := doc.(type) {
	case float64:
		return v, true
	case []interface{}:
		if len(v) > 0 {
			return scoreFrom(v[0])
		}
	case map[string]interface{}:
		for _, key := range []string{"score", "probability", "predicted_probability", "predictions"} {
			if inner, ok := v[key]; ok {
				return scoreFrom(inner)
			}
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
