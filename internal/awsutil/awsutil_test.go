package awsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestListProfilesFrom(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials")
	cfg := filepath.Join(dir, "config")

	require.NoError(t, os.WriteFile(creds, []byte("[default]\naws_access_key_id = x\n\n[ci]\naws_access_key_id = y\n"), 0600))
	require.NoError(t, os.WriteFile(cfg, []byte("[default]\nregion = us-east-1\n\n[profile security]\nregion = eu-west-1\n\n[sso-session corp]\nsso_region = us-east-1\n"), 0600))

	profiles, err := ListProfilesFrom(creds, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"ci", "default", "security"}, profiles)

	profiles, err = ListProfilesFrom(filepath.Join(dir, "nope"), filepath.Join(dir, "nada"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestIsValidProfileUsesEnvironmentPaths(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials")
	require.NoError(t, os.WriteFile(creds, []byte("[scanner]\naws_access_key_id = x\n"), 0600))

	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", creds)
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))

	assert.True(t, IsValidProfile("scanner"))
	assert.False(t, IsValidProfile("prod"))
}

type mockSTS struct {
	stsiface.STSAPI
	mock.Mock
}

func (m *mockSTS) GetCallerIdentity(in *sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error) {
	args := m.Called(in)
	out, _ := args.Get(0).(*sts.GetCallerIdentityOutput)
	return out, args.Error(1)
}

func TestCallerIdentity(t *testing.T) {
	client := &mockSTS{}
	client.On("GetCallerIdentity", mock.Anything).Return(&sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/ci"),
	}, nil).Once()

	id, err := CallerIdentity(client)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", id.Account)
	assert.Equal(t, "arn:aws:iam::123456789012:user/ci", id.ARN)

	client = &mockSTS{}
	client.On("GetCallerIdentity", mock.Anything).Return(nil, errors.New("expired token")).Once()
	_, err = CallerIdentity(client)
	assert.Error(t, err)
}
