package rlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSplitterWriteLength(t *testing.T) {
	splitter := OutputSplitter{}
	tests := [][]byte{
		[]byte(`level=error msg="boom"`),
		[]byte(`level=info msg="ok"`),
		[]byte(""),
	}
	for _, msg := range tests {
		n, err := splitter.Write(msg)
		assert.NoError(t, err)
		assert.Equal(t, len(msg), n)
	}
}

func TestOutputSplitterRecognisesErrorAndFatal(t *testing.T) {
	dir := t.TempDir()
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	defer stdout.Close()
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	defer stderr.Close()

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = stdout, stderr
	defer func() { os.Stdout, os.Stderr = origOut, origErr }()

	splitter := OutputSplitter{}
	for _, line := range []string{
		`level=error msg="x"` + "\n",
		`level=fatal msg="x"` + "\n",
		`level=warning msg="not routed to stderr"` + "\n",
	} {
		n, err := splitter.Write([]byte(line))
		assert.NoError(t, err)
		assert.Greater(t, n, 0)
	}

	errOut, err := os.ReadFile(stderr.Name())
	require.NoError(t, err)
	stdOut, err := os.ReadFile(stdout.Name())
	require.NoError(t, err)
	assert.Contains(t, string(errOut), "level=error")
	assert.Contains(t, string(errOut), "level=fatal")
	assert.NotContains(t, string(errOut), "level=warning")
	assert.Contains(t, string(stdOut), "level=warning")
}

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	logger := New(Config{Level: "not-a-level", Format: "text"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewHonoursJSONFormat(t *testing.T) {
	logger := New(Config{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestDefaultLoggerIsUsable(t *testing.T) {
	assert.NotNil(t, Default)
	assert.NotNil(t, Default.Out)
}
