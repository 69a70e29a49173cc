// Package state carries pxtorem run environment through context.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"pxtorem/config"
	"pxtorem/css"
	"pxtorem/transform"
)

type envKey struct{}

// LocalEnv is resolved once per run from configuration and command line:
// loaded configuration, debug report, logger and conversion settings.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report // nil unless debug report was requested
	Log *zap.Logger

	// convert subcommand
	NoDirs      bool
	Overwrite   bool
	DryRun      bool
	CodePage    encoding.Encoding
	Style       css.Style
	Transformer *transform.Transformer

	start         time.Time
	restoreStdLog func()
}

// EnvFromContext returns environment stored by ContextWithEnv. Every command
// runs with context prepared in main, missing environment is a panic.
func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	panic("pxtorem environment not found in context")
}

// ContextWithEnv attaches fresh environment, run timer starts here.
func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

// Uptime is the time since the environment was created, reported at exit.
func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// RedirectStdLog sends output of standard library logger to zap logger
// until RestoreStdLog.
func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

// RestoreStdLog flushes zap logger and undoes RedirectStdLog.
func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
