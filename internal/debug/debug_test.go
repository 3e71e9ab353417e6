package debug

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveAndRestoreState saves the debug package state and returns a cleanup function
func saveAndRestoreState(t *testing.T) {
	t.Helper()
	t.Setenv("ASSETINDEX_DEBUG", "")
	originalDebug := EnableDebug
	originalOutput := output
	originalFile := logFile
	originalComponents := components
	t.Cleanup(func() {
		EnableDebug = originalDebug
		output = originalOutput
		logFile = originalFile
		components = originalComponents
	})
}

func TestIsDebugEnabled(t *testing.T) {
	saveAndRestoreState(t)

	EnableDebug = "false"
	assert.False(t, IsDebugEnabled())

	EnableDebug = "true"
	assert.True(t, IsDebugEnabled())

	EnableDebug = "invalid"
	assert.False(t, IsDebugEnabled())

	t.Setenv("ASSETINDEX_DEBUG", "1")
	assert.True(t, IsDebugEnabled())

	t.Setenv("ASSETINDEX_DEBUG", "scan")
	assert.True(t, IsDebugEnabled())

	t.Setenv("ASSETINDEX_DEBUG", "0")
	assert.False(t, IsDebugEnabled())
}

func TestLog(t *testing.T) {
	saveAndRestoreState(t)

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	Log("TEST", "Hello %s", "World")

	assert.Equal(t, "[DEBUG:TEST] Hello World", buf.String())
}

func TestLog_Disabled(t *testing.T) {
	saveAndRestoreState(t)

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "false"
	LogScan("Should not appear")

	assert.Empty(t, buf.String())
}

func TestLog_NoWriter(t *testing.T) {
	saveAndRestoreState(t)

	EnableDebug = "true"
	SetDebugOutput(nil)
	assert.NotPanics(t, func() { LogMerge("nothing %d", 1) })
}

func TestSetComponents(t *testing.T) {
	saveAndRestoreState(t)

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"

	SetComponents(" scan , Merge")
	LogScan("scanned\n")
	LogMerge("merged\n")
	LogDeps("rebuilt\n")
	assert.Equal(t, "[DEBUG:SCAN] scanned\n[DEBUG:MERGE] merged\n", buf.String())

	buf.Reset()
	SetComponents("")
	LogDeps("rebuilt\n")
	assert.Equal(t, "[DEBUG:DEPS] rebuilt\n", buf.String())
}

func TestComponentsFromEnvironment(t *testing.T) {
	saveAndRestoreState(t)

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	SetComponents("")
	EnableDebug = "false"
	t.Setenv("ASSETINDEX_DEBUG", "fileops")

	LogFileOps("deleted\n")
	LogRegistry("inserted\n")
	assert.Equal(t, "[DEBUG:FILEOPS] deleted\n", buf.String())
}

func TestLogHelpers(t *testing.T) {
	saveAndRestoreState(t)
	EnableDebug = "true"
	SetComponents("")

	tests := []struct {
		name    string
		logFunc func(string, ...interface{})
		prefix  string
	}{
		{"LogScan", LogScan, "[DEBUG:SCAN]"},
		{"LogMerge", LogMerge, "[DEBUG:MERGE]"},
		{"LogRegistry", LogRegistry, "[DEBUG:REGISTRY]"},
		{"LogDeps", LogDeps, "[DEBUG:DEPS]"},
		{"LogFileOps", LogFileOps, "[DEBUG:FILEOPS]"},
		{"LogThumb", LogThumb, "[DEBUG:THUMB]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetDebugOutput(&buf)
			tt.logFunc("processing %d records", 3)
			assert.Contains(t, buf.String(), tt.prefix)
			assert.Contains(t, buf.String(), "processing 3 records")
		})
	}
}

func TestInitDebugLogFile(t *testing.T) {
	saveAndRestoreState(t)
	t.Setenv("TMPDIR", t.TempDir())

	path, err := InitDebugLogFile()
	require.NoError(t, err)
	assert.Contains(t, path, "assetindex-debug-logs")
	require.NoError(t, CloseDebugLog())
	assert.Nil(t, output)
	assert.NoError(t, CloseDebugLog())
}
