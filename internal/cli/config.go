package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the command-line flags so recurring runs can be driven
// from a YAML file. Explicit flags win over file values.
type FileConfig struct {
	Library   string   `yaml:"library"`
	Output    string   `yaml:"output"`
	Datasets  []string `yaml:"datasets"`
	All       bool     `yaml:"all"`
	Reference string   `yaml:"reference"`
	RandomID  string   `yaml:"random_id"`
	AgeGroup  string   `yaml:"age_group"`
	RefDate   string   `yaml:"ref_date"`
	Keep      []string `yaml:"keep"`
	Drop      []string `yaml:"drop"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// merge fills empty options from the config file.
func (opts *Options) merge(cfg *FileConfig) {
	if opts.Library == "" {
		opts.Library = cfg.Library
	}
	if opts.Output == "" {
		opts.Output = cfg.Output
	}
	if len(opts.Datasets) == 0 {
		opts.Datasets = cfg.Datasets
	}
	if !opts.All {
		opts.All = cfg.All
	}
	if opts.Reference == "" {
		opts.Reference = cfg.Reference
	}
	if opts.RandomIDVar == "" {
		opts.RandomIDVar = cfg.RandomID
	}
	if opts.AgeGroupVar == "" {
		opts.AgeGroupVar = cfg.AgeGroup
	}
	if opts.RefDateVar == "" {
		opts.RefDateVar = cfg.RefDate
	}
	if len(opts.Keep) == 0 {
		opts.Keep = cfg.Keep
	}
	if len(opts.Drop) == 0 {
		opts.Drop = cfg.Drop
	}
}
