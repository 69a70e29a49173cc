package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"pxtorem/css"
	"pxtorem/script"
	"pxtorem/transform"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	ConversionConfig struct {
		RootValue         float64         `yaml:"root_value" validate:"gt=0"`
		RootValueScript   string          `yaml:"root_value_script,omitempty"`
		UnitPrecision     int             `yaml:"unit_precision" validate:"min=0,max=20"`
		PropList          []string        `yaml:"prop_list"`
		SelectorBlackList []PatternConfig `yaml:"selector_black_list"`
		Replace           bool            `yaml:"replace"`
		MediaQuery        bool            `yaml:"media_query"`
		MinPixelValue     float64         `yaml:"min_pixel_value"`
		Exclude           *PatternConfig  `yaml:"exclude,omitempty"`
		SourceUnit        string          `yaml:"source_unit" validate:"required"`
		TargetUnit        string          `yaml:"target_unit" validate:"required"`
		OptionsFile       string          `yaml:"options_file,omitempty" sanitize:"assure_file_access"`
		OutputStyle       css.Style       `yaml:"output_style" validate:"gte=0"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Conversion ConversionConfig `yaml:"conversion"`
		Logging    LoggingConfig    `yaml:"logging"`
		Reporting  ReporterConfig   `yaml:"reporting"`
	}
)

// NOTE: must match yaml field names, scripts may legitimately contain
// template-like sequences
const (
	RootValueScriptFieldName = "root_value_script"
	PatternScriptFieldName   = "script"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(RootValueScriptFieldName),
	gencfg.WithDoNotExpandField(PatternScriptFieldName),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("configuration sanitization failed: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// Options builds conversion options. When options file is set it is the only
// source of options and the rest of the section is ignored.
func (conf *ConversionConfig) Options() (transform.Options, error) {
	if len(conf.OptionsFile) > 0 {
		opts, err := transform.LoadOptionsFile(conf.OptionsFile)
		if err != nil {
			return transform.Options{}, err
		}
		return opts, nil
	}

	opts := transform.Options{
		RootValue:     conf.RootValue,
		UnitPrecision: conf.UnitPrecision,
		PropList:      append([]string{}, conf.PropList...),
		Replace:       conf.Replace,
		MediaQuery:    conf.MediaQuery,
		MinPixelValue: conf.MinPixelValue,
		SourceUnit:    conf.SourceUnit,
		TargetUnit:    conf.TargetUnit,
	}
	if len(conf.RootValueScript) > 0 {
		f, err := script.Compile(conf.RootValueScript)
		if err != nil {
			return transform.Options{}, fmt.Errorf("root_value_script: %w", err)
		}
		opts.RootValueFunc = f.Number
	}
	for i, pc := range conf.SelectorBlackList {
		p, err := pc.Pattern()
		if err != nil {
			return transform.Options{}, fmt.Errorf("selector_black_list[%d]: %w", i, err)
		}
		opts.SelectorBlackList = append(opts.SelectorBlackList, p)
	}
	if conf.Exclude != nil {
		p, err := conf.Exclude.Pattern()
		if err != nil {
			return transform.Options{}, fmt.Errorf("exclude: %w", err)
		}
		opts.Exclude = &p
	}
	if err := opts.Validate(); err != nil {
		return transform.Options{}, err
	}
	return opts, nil
}
