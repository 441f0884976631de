package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ErrIncompatibleSchema is returned for profiles outside the supported
// schema range.
var ErrIncompatibleSchema = errors.New("incompatible profile schema")

// SupportedSchema is the profile schema_version constraint.
const SupportedSchema = "^1.0"

// ProfileEnv names the environment variable pointing at a YAML profile.
const ProfileEnv = "TRUMPPROOF_PROFILE"

// Profile is the header of a YAML configuration profile. The remaining keys
// overlay Config.
type Profile struct {
	Name          string `yaml:"name"`
	SchemaVersion string `yaml:"schema_version"`
}

// CheckCompatible validates the profile schema version.
func (p *Profile) CheckCompatible() error {
	if p.SchemaVersion == "" {
		return fmt.Errorf("%w: missing schema_version", ErrIncompatibleSchema)
	}
	v, err := semver.NewVersion(p.SchemaVersion)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIncompatibleSchema, p.SchemaVersion, err)
	}
	c, err := semver.NewConstraint(SupportedSchema)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleSchema, v, SupportedSchema)
	}
	return nil
}

// LoadProfile reads a profile from path and overlays it onto cfg. Keys
// absent from the file keep their current values.
func LoadProfile(path string, cfg *Config) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if err := profile.CheckCompatible(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return &profile, nil
}

// LoadWithProfile is Load followed by the profile named in TRUMPPROOF_PROFILE.
func LoadWithProfile() (*Config, error) {
	cfg := Load()
	path := os.Getenv(ProfileEnv)
	if path == "" {
		return cfg, nil
	}
	if _, err := LoadProfile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
