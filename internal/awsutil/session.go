// Package awsutil creates AWS sessions for S3 report output and SageMaker
// scoring, and reads the shared profile files.
package awsutil

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"

	"iacsift/internal/logging"
)

// HTTPTimeout bounds every AWS HTTP call
const HTTPTimeout = 25 * time.Second

// NewSession creates a session for profile in region. An empty region uses
// the profile's region.
func NewSession(profile, region string) (*session.Session, error) {
	cfg := aws.NewConfig().WithHTTPClient(&http.Client{Timeout: HTTPTimeout})
	if region != "" {
		cfg = cfg.WithRegion(region)
	}

	opts := session.Options{
		Config:            *cfg,
		Profile:           profile,
		SharedConfigState: session.SharedConfigEnable,
	}

	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session for profile %s: %w", profile, err)
	}
	return sess, nil
}

// InRegion returns a copy of sess in region, or sess itself when region is empty
func InRegion(sess *session.Session, region string) (*session.Session, error) {
	if region == "" {
		return sess, nil
	}

	newSess, err := session.NewSession(sess.Config.Copy().WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to create session in %s: %w", region, err)
	}
	return newSess, nil
}

// AssumeRole returns a session using the credentials of roleARN, or sess
// itself when roleARN is empty
func AssumeRole(sess *session.Session, roleARN string) (*session.Session, error) {
	if roleARN == "" {
		return sess, nil
	}

	logging.Debug("Assuming role", map[string]interface{}{
		"role_arn": roleARN,
	})

	creds := stscreds.NewCredentials(sess, roleARN)
	assumed, err := session.NewSession(sess.Config.Copy().WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to assume role %s: %w", roleARN, err)
	}
	return assumed, nil
}

// Identity is the caller behind a session
type Identity struct {
	Account string
	ARN     string
}

// CallerIdentity asks STS who the session's credentials belong to
func CallerIdentity(client stsiface.STSAPI) (Identity, error) {
	out, err := client.GetCallerIdentity(&sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get caller identity: %w", err)
	}
	return Identity{
		Account: aws.StringValue(out.Account),
		ARN:     aws.StringValue(out.Arn),
	}, nil
}

// VerifySession logs the identity behind sess and fails when the credentials
// are unusable
func VerifySession(sess *session.Session) (Identity, error) {
	id, err := CallerIdentity(sts.New(sess))
	if err != nil {
		return Identity{}, err
	}
	logging.Debug("Using AWS identity", map[string]interface{}{
		"account_id": id.Account,
		"arn":        id.ARN,
	})
	return id, nil
}
