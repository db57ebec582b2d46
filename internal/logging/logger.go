// Package logging builds the structured loggers used by the command line
// tool and the pipeline.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Environment variables that configure logging when no flag is given.
const (
	EnvLogLevel = "DEPTHEXR_LOG_LEVEL"
	EnvJSONLog  = "DEPTHEXR_JSON_LOG"
)

// DefaultLevel is used when neither a flag nor the environment names a level.
const DefaultLevel = "info"

// NewLogger creates an hclog logger with UTC timestamps. Output defaults
// to stderr. JSON output is enabled by DEPTHEXR_JSON_LOG=1 or by a level of
// the form "json" or "json:<level>".
func NewLogger(name, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	jsonFormat := os.Getenv(EnvJSONLog) == "1"
	if rest, ok := strings.CutPrefix(level, "json"); ok {
		jsonFormat = true
		level = strings.TrimPrefix(rest, ":")
	}
	if level == "" {
		level = DefaultLevel
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Level resolves the log level: an explicit flag value wins, then
// DEPTHEXR_LOG_LEVEL, then DefaultLevel.
func Level(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		return env
	}
	return DefaultLevel
}
