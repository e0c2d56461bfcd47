package cmd

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/emsift/emsift/screen"
	"github.com/emsift/emsift/screen/dock"
	"github.com/emsift/emsift/screen/pocket"
)

//go:embed config.schema.json
var configSchema string

// DockConfig groups the two docking passes.
type DockConfig struct {
	Prep dock.PrepConfig `yaml:"prep"`
	Run  dock.RunConfig  `yaml:"run"`
}

// Config represents the full configuration file. Every section is optional;
// omitted fields keep their defaults. All top-level sections must be listed
// to satisfy KnownFields(true) strict parsing.
type Config struct {
	Root     string                `yaml:"root"` // batch root holding the variant directories
	Layout   screen.Layout         `yaml:"layout"`
	Minimize screen.MinimizeConfig `yaml:"minimize"`
	Select   screen.SelectConfig   `yaml:"select"`
	Pocket   pocket.Config         `yaml:"pocket"`
	Dock     DockConfig            `yaml:"dock"`
	Report   dock.ReportConfig     `yaml:"report"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Root:     "monomers",
		Layout:   screen.DefaultLayout(),
		Minimize: screen.DefaultMinimizeConfig(),
		Select:   screen.DefaultSelectConfig(),
		Pocket:   pocket.DefaultConfig(),
		Dock:     DockConfig{Prep: dock.DefaultPrepConfig(), Run: dock.DefaultRunConfig()},
		Report:   dock.DefaultReportConfig(),
	}
}

// Validate checks every section. Pocket and docking sections are checked by
// the commands that use them.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("root must not be empty")
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if err := c.Minimize.Validate(); err != nil {
		return err
	}
	return c.Select.Validate()
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults. The document is checked against the embedded JSON Schema before
// it is decoded with strict field checking (typos must cause errors).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := validateDocument(data); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func compileConfigSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", strings.NewReader(configSchema)); err != nil {
		return nil, err
	}
	return c.Compile("config.schema.json")
}

// validateDocument checks a YAML document against the config schema. The
// document is converted to its JSON form first so that numbers and maps
// have the types the validator expects.
func validateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting to JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	schema, err := compileConfigSchema()
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	return schema.Validate(v)
}

// Marshal renders cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
