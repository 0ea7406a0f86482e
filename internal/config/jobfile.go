package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"weir/internal/spec"
)

const SupportedSchema = "v1"

// LoadJobFile parses a job YAML, validates schema_version, and resolves
// provider config paths relative to the job file's directory.
func LoadJobFile(path string) (spec.File, error) {
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, fmt.Errorf("job schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}
	base := filepath.Dir(path)
	for i := range cfg.Providers {
		p := cfg.Providers[i].Config
		if p != "" && !filepath.IsAbs(p) {
			cfg.Providers[i].Config = filepath.Join(base, p)
		}
	}
	return cfg, nil
}
