// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalid wraps validation failures of a loaded file.
	ErrInvalid = errors.New("invalid configuration")

	// ErrUnsupportedVersion is returned for a file written by an
	// incompatible major version.
	ErrUnsupportedVersion = errors.New("unsupported configuration version")
)

var validate = validator.New()

// DefaultPath returns ~/.microbench/microbench.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".microbench", "microbench.yaml"), nil
}

// Load reads the config at path, creating it with defaults when missing.
//
// Description:
//
//	An empty path selects DefaultPath. Keys absent from the file keep
//	their default values. INFLUXDB_TOKEN fills an empty influx token. The
//	result is validated before it is returned.
//
// Outputs:
//   - MicrobenchConfig: The loaded configuration.
//   - bool: True if the file was created by this call.
//   - error: Non-nil on I/O, parse or validation failure.
func Load(path string) (MicrobenchConfig, bool, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return MicrobenchConfig{}, false, err
		}
		path = p
	}

	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return MicrobenchConfig{}, false, err
		}
		created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return MicrobenchConfig{}, created, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return MicrobenchConfig{}, created, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := checkVersion(cfg.Meta.Version); err != nil {
		return MicrobenchConfig{}, created, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Influx.Token == "" {
		cfg.Influx.Token = os.Getenv("INFLUXDB_TOKEN")
	}
	if err := cfg.Validate(); err != nil {
		return MicrobenchConfig{}, created, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, created, nil
}

func checkVersion(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrUnsupportedVersion, v)
	}
	if semver.Major(v) != semver.Major(CurrentConfigVersion) {
		return fmt.Errorf("%w: %s (this build reads %s)", ErrUnsupportedVersion, v, semver.Major(CurrentConfigVersion))
	}
	return nil
}

// Validate checks the struct tags of every section.
func (c *MicrobenchConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}
