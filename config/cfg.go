package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ViewportConfig struct {
		Name      string `yaml:"name" validate:"required"`
		Width     int    `yaml:"width" validate:"min=1"`
		Height    int    `yaml:"height" validate:"min=1"`
		Mobile    bool   `yaml:"mobile"`
		UserAgent string `yaml:"user_agent"`
	}

	AuthConfig struct {
		User     string       `yaml:"user"`
		Password SecretString `yaml:"password" validate:"required_with=User"`
	}

	RenderConfig struct {
		ExecPath   string           `yaml:"exec_path" sanitize:"assure_file_access"`
		Headless   bool             `yaml:"headless"`
		Timeout    time.Duration    `yaml:"timeout" validate:"gte=0"`
		Wait       string           `yaml:"wait" validate:"oneof=load networkidle"`
		IdleWindow time.Duration    `yaml:"idle_window" validate:"gte=0"`
		Scroll     bool             `yaml:"scroll"`
		Settle     time.Duration    `yaml:"settle" validate:"gte=0"`
		Auth       AuthConfig       `yaml:"auth"`
		Viewports  []ViewportConfig `yaml:"viewports" validate:"min=1,dive"`
	}

	OutputConfig struct {
		Directory          string `yaml:"directory" sanitize:"path_clean" validate:"required"`
		UsedName           string `yaml:"used_name" validate:"required"`
		ReconstructExtract bool   `yaml:"reconstruct_extract"`
		Transliterate      bool   `yaml:"file_name_transliterate"`
		Minify             bool   `yaml:"minify"`
	}

	Config struct {
		Version     int            `yaml:"version" validate:"eq=1"`
		Render      RenderConfig   `yaml:"render"`
		Pages       []string       `yaml:"pages" validate:"dive,url"`
		Stylesheets []string       `yaml:"stylesheets" validate:"dive,url"`
		Output      OutputConfig   `yaml:"output"`
		Logging     LoggingConfig  `yaml:"logging"`
		Reporting   ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, expanded at run time when
	// output file name is known
	UsedNameTemplateFieldName TemplateFieldName = "used_name"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(UsedNameTemplateFieldName)),
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
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
		if err := cfg.Render.checkViewports(); err != nil {
			return nil, err
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

// checkViewports makes sure viewport names could be used as output
// directories.
func (conf *RenderConfig) checkViewports() error {
	seen := make(map[string]bool, len(conf.Viewports))
	for _, vp := range conf.Viewports {
		if CleanFileName(vp.Name) != vp.Name {
			return fmt.Errorf("viewport name %q cannot be used as directory name", vp.Name)
		}
		if seen[vp.Name] {
			return fmt.Errorf("duplicate viewport name %q", vp.Name)
		}
		seen[vp.Name] = true
	}
	return nil
}
