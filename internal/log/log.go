// Package log configures the launcher's zap logger.
//
// The layout mirrors what the debug_to_log plugin arranges on the Python
// side: a console handler that stays at Info so interactive runs aren't
// drowned in noise, and an optional debug file that receives everything.
// Commands opt into console debug output with --verbose; the run command
// additionally opens <debug_dir>/paddock.log when the profile enables
// debug mode.
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the process-wide logger and installs it via
// zap.ReplaceGlobals. The returned logger writes human-readable lines to
// stderr at Info (Debug when verbose is true). When debugFile is
// non-empty, a second core appends JSON lines to that file at Debug,
// creating parent directories as needed.
func Init(verbose bool, debugFile string) (*zap.Logger, error) {
	consoleLevel := zapcore.InfoLevel
	if verbose {
		consoleLevel = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.TimeKey = "" // timestamps add nothing on an interactive console
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleCfg),
		zapcore.Lock(os.Stderr),
		consoleLevel,
	)

	cores := []zapcore.Core{consoleCore}

	if debugFile != "" {
		if err := os.MkdirAll(filepath.Dir(debugFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory for %s: %w", debugFile, err)
		}
		f, err := os.OpenFile(debugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open debug log %s: %w", debugFile, err)
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.Lock(f),
			zapcore.DebugLevel,
		)
		cores = append(cores, fileCore)
	}

	logger := zap.New(zapcore.NewTee(cores...))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Sync flushes any buffered log entries on the global logger. Called from
// the root command's PersistentPostRun; sync errors on stderr are expected
// on some platforms and ignored by callers.
func Sync() error {
	return zap.L().Sync()
}
