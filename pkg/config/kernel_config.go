// Copyright 2025 Covenant Protocol
//
// Kernel Configuration Loader
// Loads kernel settings from YAML files with environment variable
// substitution: ${VAR} and ${VAR:-default} forms are expanded before
// parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/covenant-protocol/trust-kernel/pkg/logging"
)

// KernelConfig holds kernel-level tunables loaded from YAML
type KernelConfig struct {
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	Verification VerificationSettings `yaml:"verification"`
	Trust        TrustSettings        `yaml:"trust"`
	Negotiation  NegotiationSettings  `yaml:"negotiation"`
	Logging      logging.Config       `yaml:"logging"`
	Monitoring   MonitoringSettings   `yaml:"monitoring"`
}

// VerificationSettings tune covenant verification
type VerificationSettings struct {
	// ClockSkew is loaded from the config file. The covenant verifier does
	// not read it: expiry and activation are compared without any skew.
	ClockSkew time.Duration `yaml:"clock_skew"`
}

// TrustSettings tune the trust graph
type TrustSettings struct {
	// EmitLowSeverity is loaded from the config file. The trust graph does
	// not read it: low-severity breach events are always delivered to
	// listeners.
	EmitLowSeverity bool `yaml:"emit_low_severity"`
}

// NegotiationSettings tune negotiation defaults
type NegotiationSettings struct {
	DefaultMaxRounds int           `yaml:"default_max_rounds"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
}

// MonitoringSettings tune metrics exposure
type MonitoringSettings struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultKernelConfig returns the built-in defaults
func DefaultKernelConfig() *KernelConfig {
	return &KernelConfig{
		Environment: "development",
		Version:     "1.0",
		Verification: VerificationSettings{
			ClockSkew: 30 * time.Second,
		},
		Trust: TrustSettings{
			EmitLowSeverity: true,
		},
		Negotiation: NegotiationSettings{
			DefaultMaxRounds: 10,
			DefaultTimeout:   5 * time.Minute,
		},
		Logging:    *logging.DefaultConfig(),
		Monitoring: MonitoringSettings{Enabled: false, Addr: ":9090"},
	}
}

// LoadKernelConfig reads a YAML config file, substitutes environment
// variables, and overlays the result on the defaults.
func LoadKernelConfig(path string) (*KernelConfig, error) {
	cfg := DefaultKernelConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := substituteEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// substituteEnv expands ${VAR} and ${VAR:-default} references
func substituteEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if groups[2] != "" {
			return strings.TrimPrefix(groups[2], ":-")
		}
		return ""
	})
}
