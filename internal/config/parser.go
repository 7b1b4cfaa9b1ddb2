package config

import (
	"os"

	"gopkg.in/yaml.v3"

	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

// ParseConfig reads, decodes, and validates a run document at path,
// mirroring the teacher's internal/config/parser.go ParseConfig entrypoint:
// a single call a caller can treat as "give me a ready-to-plan *Config or a
// descriptive error".
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, streamyerrors.NewParseError(path, 0, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, streamyerrors.NewParseError(path, 0, err)
	}

	cfg.Settings = cfg.Settings.ApplyDefaults()

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
