// Package debug writes component-tagged trace output for the registry
// internals. Output is off unless enabled at build time, by the CLI or by
// ASSETINDEX_DEBUG, and can be narrowed to a set of components.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/assetindex/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// Components tagging debug lines.
const (
	ComponentScan     = "SCAN"
	ComponentMerge    = "MERGE"
	ComponentRegistry = "REGISTRY"
	ComponentDeps     = "DEPS"
	ComponentFileOps  = "FILEOPS"
	ComponentThumb    = "THUMB"
)

var (
	mu         sync.Mutex
	output     io.Writer
	logFile    *os.File
	components map[string]bool // nil means every component
)

// SetDebugOutput sets the writer for debug output. Pass nil to discard it.
func SetDebugOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetComponents restricts output to a comma separated list of components
// ("scan,merge"). An empty list re-enables all of them.
func SetComponents(list string) {
	mu.Lock()
	defer mu.Unlock()
	components = parseComponents(list)
}

func parseComponents(list string) map[string]bool {
	var set map[string]bool
	for _, name := range strings.Split(list, ",") {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if set == nil {
			set = make(map[string]bool)
		}
		set[name] = true
	}
	return set
}

// InitDebugLogFile sends debug output to a timestamped file under the temp
// dir and returns its path. Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	mu.Lock()
	defer mu.Unlock()

	logDir := filepath.Join(os.TempDir(), "assetindex-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", time.Now().Format("2006-01-02T150405")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	logFile = file
	output = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	output = nil
	return err
}

// IsDebugEnabled reports whether debug output is switched on. ASSETINDEX_DEBUG
// accepts "1", "true" or a component list.
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("ASSETINDEX_DEBUG")
	return v != "" && v != "0" && v != "false"
}

// writerFor returns the output for component, or nil when it is filtered out.
func writerFor(component string) io.Writer {
	if !IsDebugEnabled() {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if output == nil {
		return nil
	}

	set := components
	if set == nil {
		if v := os.Getenv("ASSETINDEX_DEBUG"); v != "1" && v != "true" {
			set = parseComponents(v)
		}
	}
	if set != nil && !set[strings.ToUpper(component)] {
		return nil
	}
	return output
}

// Log writes one line tagged with component.
func Log(component, format string, args ...interface{}) {
	w := writerFor(component)
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
}

// LogScan provides debug logging for directory scans and metadata parsing
func LogScan(format string, args ...interface{}) {
	Log(ComponentScan, format, args...)
}

// LogMerge provides debug logging for batch merge classification
func LogMerge(format string, args ...interface{}) {
	Log(ComponentMerge, format, args...)
}

// LogRegistry provides debug logging for registry mutations
func LogRegistry(format string, args ...interface{}) {
	Log(ComponentRegistry, format, args...)
}

// LogDeps provides debug logging for dependency index rebuilds
func LogDeps(format string, args ...interface{}) {
	Log(ComponentDeps, format, args...)
}

// LogFileOps provides debug logging for physical file operations
func LogFileOps(format string, args ...interface{}) {
	Log(ComponentFileOps, format, args...)
}

// LogThumb provides debug logging for the thumbnail cache
func LogThumb(format string, args ...interface{}) {
	Log(ComponentThumb, format, args...)
}
