package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pstop/internal/config"
	"github.com/rileyhilliard/pstop/internal/errors"
)

func TestInit_NonInteractive(t *testing.T) {
	tests := []struct {
		name   string
		opts   InitOptions
		source string
	}{
		{name: "ssh", opts: InitOptions{SSH: "gpu-box"}, source: "ssh://gpu-box"},
		{name: "url", opts: InitOptions{URL: "http://box:3000"}, source: "http://box:3000"},
		{name: "local", opts: InitOptions{Local: true}, source: "local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			path := filepath.Join(t.TempDir(), config.ConfigFileName)
			opts := tt.opts
			opts.Path = path
			opts.NonInteractive = true
			opts.Out = &out

			require.NoError(t, Init(opts))
			assert.Contains(t, out.String(), "Created "+path)

			cfg, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.source, cfg.Agent.Source())
			require.NoError(t, config.Validate(cfg))
		})
	}
}

func TestInit_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	opts := InitOptions{Path: path, NonInteractive: true, SSH: "one", Out: &bytes.Buffer{}}
	require.NoError(t, Init(opts))

	opts.SSH = "two"
	err := Init(opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "--force")

	opts.Overwrite = true
	require.NoError(t, Init(opts))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "two", cfg.Agent.SSH)
}

func TestInit_NonInteractiveNeedsAgent(t *testing.T) {
	err := Init(InitOptions{
		Path:           filepath.Join(t.TempDir(), config.ConfigFileName),
		NonInteractive: true,
		Out:            &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestInit_GlobalPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"init", "--global", "--non-interactive", "--local"}, &stdout, &stderr))
	assert.FileExists(t, filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile))
}

func TestInit_DefaultPathIsWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path, err := initPath(InitOptions{})
	require.NoError(t, err)
	assert.Equal(t, config.ConfigFileName, path)
}
