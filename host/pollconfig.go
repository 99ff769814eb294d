package host

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/payware/go-cctalk/cctalk"
)

// pollConfigYAML is the on-disk shape of a poll loop configuration.
//
//	addresses: [2, 3, 40]
//	interval_ms: 1000
//	device_spacing_ms: 10
//	failure_threshold: 3
type pollConfigYAML struct {
	Addresses        []int `yaml:"addresses"`
	IntervalMs       int   `yaml:"interval_ms"`
	DeviceSpacingMs  int   `yaml:"device_spacing_ms"`
	FailureThreshold int   `yaml:"failure_threshold"`
}

// LoadPollConfig reads a poll loop configuration from a YAML file.
func LoadPollConfig(path string) (PollConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PollConfig{}, fmt.Errorf("host: read poll config: %w", err)
	}

	return ParsePollConfig(data)
}

// ParsePollConfig parses a YAML poll loop configuration.
func ParsePollConfig(data []byte) (PollConfig, error) {
	var raw pollConfigYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return PollConfig{}, fmt.Errorf("host: parse poll config: %w", err)
	}

	cfg := PollConfig{
		Interval:         time.Duration(raw.IntervalMs) * time.Millisecond,
		DeviceSpacing:    time.Duration(raw.DeviceSpacingMs) * time.Millisecond,
		FailureThreshold: raw.FailureThreshold,
	}
	for _, a := range raw.Addresses {
		if a < 0 || a > 255 {
			return PollConfig{}, fmt.Errorf("host: poll address %d out of range [1, 255]", a)
		}
		cfg.Addresses = append(cfg.Addresses, cctalk.Address(a))
	}

	if err := cfg.normalize(); err != nil {
		return PollConfig{}, err
	}

	return cfg, nil
}
