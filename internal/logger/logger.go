// Package logger wraps logrus with the per-command entry simplej logs through.
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance
var Logger *logrus.Logger

// Fields is an alias for logrus.Fields
type Fields = logrus.Fields

type ctxKey struct{}

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)

	// SIMPLEJ_LOG_FORMAT=json is for scripts that parse stderr
	if os.Getenv("SIMPLEJ_LOG_FORMAT") == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		return
	}
	Logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
}

// SetVerbose switches between debug and info output
func SetVerbose(verbose bool) {
	if verbose {
		Logger.SetLevel(logrus.DebugLevel)
		return
	}
	Logger.SetLevel(logrus.InfoLevel)
}

// IsDebug reports whether --verbose output is enabled
func IsDebug() bool {
	return Logger.IsLevelEnabled(logrus.DebugLevel)
}

// ForOperation returns a context carrying an entry tagged with the command
// name and a fresh operation id.
func ForOperation(ctx context.Context, operation string) context.Context {
	entry := Logger.WithFields(Fields{
		"op":    operation,
		"op_id": xid.New().String(),
	})
	return context.WithValue(ctx, ctxKey{}, entry)
}

// WithContext returns the operation entry stored in ctx, or a plain entry
func WithContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(Logger)
}

// WithError starts an entry carrying err
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}
