// Package observability holds the process-wide logger used by the CLI
// commands. Diagnostics go to stderr so stdout stays reserved for the
// commands' own output.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger commands use for structured diagnostics.
var CLILogger = newCLILogger(zapcore.InfoLevel)

// SetVerbose lowers the CLI log level to debug.
func SetVerbose() {
	CLILogger = newCLILogger(zapcore.DebugLevel)
}

func newCLILogger(level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}
