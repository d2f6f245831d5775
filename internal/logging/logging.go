// Package logging builds the zap logger used by the tofcal command.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity of progress messages
const (
	InfoDefault = iota
	InfoSilent
	InfoVerbose
)

// Level maps a verbosity to the minimum zap level that is written
func Level(verbosity int) zapcore.Level {
	switch verbosity {
	case InfoSilent:
		return zapcore.ErrorLevel
	case InfoVerbose:
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// NewWriter returns a logger writing to w. With json set, entries are
// encoded as JSON lines instead of the human readable console format.
func NewWriter(w io.Writer, verbosity int, json bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if json {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(Level(verbosity)))
	opts := []zap.Option{}
	if verbosity == InfoVerbose {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...)
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
