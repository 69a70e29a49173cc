package state

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"pxtorem/transform"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
	}
}

// PrepareTransformer builds transformer from loaded configuration. Options
// file, when given, replaces conversion section of the configuration.
func (e *LocalEnv) PrepareTransformer(optionsFile string) error {
	if e.Cfg == nil {
		return fmt.Errorf("configuration is not loaded")
	}
	conv := e.Cfg.Conversion
	if len(optionsFile) > 0 {
		conv.OptionsFile = optionsFile
	}

	opts, err := conv.Options()
	if err != nil {
		return fmt.Errorf("unable to prepare conversion options: %w", err)
	}
	if len(conv.OptionsFile) > 0 {
		e.Rpt.Store("options.json", conv.OptionsFile)
		if e.Log != nil {
			e.Log.Debug("Using options file", zap.String("path", conv.OptionsFile))
		}
	}

	t, err := transform.New(opts, e.Log)
	if err != nil {
		return fmt.Errorf("unable to prepare transformer: %w", err)
	}
	e.Transformer = t
	return nil
}
