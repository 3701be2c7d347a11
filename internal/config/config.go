package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAcceptedOutput = "Initial_screening_output.txt"
	DefaultFilteredOutput = "Initial_screening_filtered_out.txt"
)

type Config struct {
	InputFasta     string `json:"input_fasta" yaml:"input_fasta"`
	AcceptedOutput string `json:"accepted_output" yaml:"accepted_output"`
	FilteredOutput string `json:"filtered_output" yaml:"filtered_output"`
	ReportJSON     string `json:"report_json" yaml:"report_json"`
	DBPath         string `json:"db_path" yaml:"db_path"`
	LogFile        string `json:"log_file" yaml:"log_file"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
	SpoolDir       string `json:"spool_dir" yaml:"spool_dir"`
	// StrictInsertion enforces the CDRH3 insertion length limit that the
	// historical screen never applied.
	StrictInsertion bool `json:"strict_insertion" yaml:"strict_insertion"`
	StripFiltered   bool `json:"strip_filtered" yaml:"strip_filtered"`
}

// LoadConfig loads a config from the given path. If path is empty, looks for ./config.json.
// A missing file is not an error and yields defaults. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			c := &Config{}
			c.ApplyDefaults()
			return c, nil
		}
		return nil, err
	}
	defer f.Close()

	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	c.ApplyDefaults()
	return &c, nil
}

// ApplyDefaults fills the output paths the screen writes when none are configured.
func (c *Config) ApplyDefaults() {
	if c.AcceptedOutput == "" {
		c.AcceptedOutput = DefaultAcceptedOutput
	}
	if c.FilteredOutput == "" {
		c.FilteredOutput = DefaultFilteredOutput
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
