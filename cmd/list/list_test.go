package list

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iacsift/internal/features"
	"iacsift/internal/rules"
)

// executeCommand runs the list command tree with args and returns its output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	cmd := NewListCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestListRules(t *testing.T) {
	out, err := executeCommand(t, "rules")
	require.NoError(t, err)

	for _, r := range rules.DefaultRegistry.Rules() {
		assert.Contains(t, out, r.ID)
	}
	assert.Contains(t, out, "IAC-NET-001   CRITICAL")
	assert.Contains(t, out, "kinds: storage-bucket  features: versioning_enabled")
}

func TestListRulesJSON(t *testing.T) {
	out, err := executeCommand(t, "rules", "--format", "json")
	require.NoError(t, err)

	var infos []ruleInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, len(rules.DefaultRegistry.Rules()))
	for _, info := range infos {
		assert.NotEmpty(t, info.Severity, info.ID)
		assert.NotEmpty(t, info.Features, info.ID)
	}
}

func TestListFeatures(t *testing.T) {
	out, err := executeCommand(t, "features")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, len(features.DefaultRegistry.Names()))
	assert.True(t, strings.HasPrefix(lines[0], features.DefaultRegistry.Names()[0]))

	out, err = executeCommand(t, "features", "--format", "json")
	require.NoError(t, err)

	var infos []featureInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	byName := make(map[string]featureInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.Equal(t, "bool", byName[features.PublicAccess].Type)
	assert.Equal(t, false, byName[features.PublicAccess].Default)
	assert.Equal(t, "enum", byName[features.ResourceKind].Type)
}

func TestListProfiles(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials")
	cfg := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(creds, []byte("[default]\naws_access_key_id = x\n\n[dev]\naws_access_key_id = y\n"), 0600))
	require.NoError(t, os.WriteFile(cfg, []byte("[profile prod]\nregion = us-east-1\n"), 0600))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", creds)
	t.Setenv("AWS_CONFIG_FILE", cfg)

	out, err := executeCommand(t, "profiles")
	require.NoError(t, err)
	assert.Contains(t, out, "default\n")
	assert.Contains(t, out, "dev\n")
	assert.Contains(t, out, "prod\n")

	out, err = executeCommand(t, "profiles", "--format", "json")
	require.NoError(t, err)
	var profiles []string
	require.NoError(t, json.Unmarshal([]byte(out), &profiles))
	assert.Contains(t, profiles, "prod")
}
