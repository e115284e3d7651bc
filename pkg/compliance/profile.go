package compliance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the on-disk descriptor for a compliance mode: operators
// hand-author one per environment rather than passing every REGULATED-mode
// field as a flag.
type Profile struct {
	Mode            Mode     `yaml:"mode"`
	SigningKeyID    string   `yaml:"signing_key_id,omitempty"`
	RedactionFields []string `yaml:"redaction_fields,omitempty"`
}

// LoadProfile reads and parses a compliance profile YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compliance: read profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("compliance: parse profile %s: %w", path, err)
	}
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return nil, fmt.Errorf("compliance: profile %s: %w", path, err)
	}
	return &p, nil
}
