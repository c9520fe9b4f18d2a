package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iacsift/internal/config"
	"iacsift/internal/logging"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logging.SetOutput(io.Discard)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExecute(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
aws:
  profile: test-profile
app:
  max_workers: 16
  log_level: DEBUG
`), 0644))
	missing := filepath.Join(tmpDir, "missing.yaml")

	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		wantErr  bool
		validate func(t *testing.T, out string)
	}{
		{
			name: "version command should not require config",
			args: []string{"version", "--config", missing},
			validate: func(t *testing.T, out string) {
				assert.Contains(t, out, "iacsift ")
				assert.Empty(t, config.Config.Profile, "version command should not load config")
			},
		},
		{
			name:    "invalid command should return error",
			args:    []string{"invalid"},
			wantErr: true,
		},
		{
			name:    "missing explicit config file is an error",
			args:    []string{"list", "rules", "--config", missing},
			wantErr: true,
		},
		{
			name: "valid config file should be loaded",
			args: []string{"list", "rules", "--config", configFile},
			validate: func(t *testing.T, out string) {
				assert.Equal(t, "test-profile", config.Config.Profile)
				assert.Equal(t, 16, config.Config.MaxWorkers)
				assert.Equal(t, "DEBUG", config.Config.LogLevel)
				assert.Equal(t, "text", config.Config.LogFormat)
			},
		},
		{
			name: "command line flags should override config",
			args: []string{
				"list", "rules",
				"--config", configFile,
				"--profile", "override-profile",
				"--max-workers", "32",
				"--log-format", "json",
			},
			validate: func(t *testing.T, out string) {
				assert.Equal(t, "override-profile", config.Config.Profile)
				assert.Equal(t, 32, config.Config.MaxWorkers)
				assert.Equal(t, "json", config.Config.LogFormat)
			},
		},
		{
			name: "environment should override config file",
			args: []string{"list", "features", "--config", configFile},
			env:  map[string]string{"IACSIFT_AWS_PROFILE": "env-profile"},
			validate: func(t *testing.T, out string) {
				assert.Equal(t, "env-profile", config.Config.Profile)
				assert.Equal(t, 16, config.Config.MaxWorkers)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config.Config = &config.GlobalConfig{}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			out, err := execute(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, out)
			}
		})
	}
}

func TestSkipConfig(t *testing.T) {
	root := NewRootCmd()

	for _, args := range [][]string{{"version"}, {"init", "config"}} {
		cmd, _, err := root.Find(args)
		require.NoError(t, err)
		assert.True(t, skipConfig(cmd), args)
	}

	cmd, _, err := root.Find([]string{"scan"})
	require.NoError(t, err)
	assert.False(t, skipConfig(cmd))
}

func TestInitConfigWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "init", "config", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created config file")

	_, err = execute(t, "init", "config", "--output", path)
	assert.Error(t, err, "existing file is not overwritten without --force")

	_, err = execute(t, "init", "config", "--output", path, "--force")
	require.NoError(t, err)

	config.Config = &config.GlobalConfig{}
	_, err = execute(t, "list", "rules", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, 8, config.Config.MaxWorkers)
}
