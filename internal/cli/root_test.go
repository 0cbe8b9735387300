package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unknown command", err: errors.New(`unknown command "foo" for "pstop"`), want: true},
		{name: "unknown flag", err: errors.New(`unknown flag: --foo`), want: true},
		{name: "unknown shorthand", err: errors.New(`unknown shorthand flag: 'z' in -z`), want: true},
		{name: "other error", err: errors.New("connection failed"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"frobnicate"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), `unknown command "frobnicate"`)
	assert.Contains(t, stderr.String(), "pstop --help")
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--help"}, &stdout, &stderr))

	for _, sub := range []string{"watch", "agent", "init", "version", "completion"} {
		assert.Contains(t, stdout.String(), sub)
	}
	assert.Contains(t, stdout.String(), "--config")
	assert.Contains(t, stdout.String(), "--log-file")
}

func TestOpenLog(t *testing.T) {
	log, closeLog, err := openLog("", "watch", nil)
	require.NoError(t, err)
	assert.Nil(t, log, "fallback is returned as is")
	closeLog()

	path := t.TempDir() + "/pstop.log"
	log, closeLog, err = openLog(path, "watch", nil)
	require.NoError(t, err)
	log.Info("hello %d", 1)
	closeLog()
	assert.FileExists(t, path)

	_, _, err = openLog(t.TempDir()+"/missing/dir/pstop.log", "watch", nil)
	require.Error(t, err)
}
