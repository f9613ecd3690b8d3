package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/picogrid/drone-comms-sim/pkg/logger"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DRONESIM_"

// LoadConfig loads configuration from a YAML file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*ScenarioConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	// a file that lists spawns replaces the default ones
	config.Fleet.Spawns = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads config from file or returns default, with environment
// overrides. An explicit path must load; the default search only runs when
// path is empty.
func LoadConfigOrDefault(path string) (*ScenarioConfig, error) {
	var config *ScenarioConfig

	if path != "" {
		var err error
		config, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	// Try default locations if no config loaded yet
	if config == nil {
		defaultPaths := []string{
			"scenario.yaml",
			"drone-comms.yaml",
			filepath.Join("cmd", "drone-comms", "scenario.yaml"),
		}

		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				config, err = LoadConfig(p)
				if err == nil {
					logger.Infof("Loaded config from: %s", p)
					break
				}
			}
		}
	}

	if config == nil {
		logger.Debug("Using default configuration")
		config = GetDefaultConfig()
	}

	// Always apply environment variable overrides
	MergeWithEnvironment(config)

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *ScenarioConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// MergeWithCLIOverrides applies CLI parameter overrides to the configuration.
// Values that have the wrong type or are out of range are ignored.
func MergeWithCLIOverrides(config *ScenarioConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "num_drones":
			if count, ok := asInt(value); ok && count >= 0 {
				config.Fleet.Count = count
				config.dropCommandsBeyondFleet()
			}
		case "duration":
			if d, ok := asFloat(value); ok && d >= 0 {
				config.Simulation.Duration = d
			}
		case "time_step":
			if dt, ok := asFloat(value); ok && dt > 0 {
				config.Simulation.TimeStep = dt
			}
		case "realtime":
			if rt, ok := value.(bool); ok {
				config.Simulation.Realtime = rt
			}
		case "seed":
			if seed, ok := asUint64(value); ok {
				config.Simulation.Seed = seed
			}
		case "base_latency":
			if l, ok := asFloat(value); ok && l >= 0 {
				config.Network.BaseLatency = l
			}
		case "jitter":
			if j, ok := asFloat(value); ok && j >= 0 {
				config.Network.Jitter = j
			}
		case "drop_probability":
			if p, ok := asFloat(value); ok && p >= 0 && p <= 1 {
				config.Network.DropProbability = p
			}
		case "comms_key":
			if k, ok := value.(string); ok && k != "" {
				config.Network.Key = k
			}
		case "report_interval":
			if i, ok := asFloat(value); ok && i > 0 {
				config.Reporting.Interval = i
			}
		case "hub":
			if h, ok := value.(string); ok && h != "" {
				config.Reporting.Hub = h
			}
		case "output_dir":
			if dir, ok := value.(string); ok && dir != "" {
				config.Output.Directory = dir
			}
		case "wall_timeout":
			if d, ok := asDuration(value); ok && d >= 0 {
				config.Simulation.WallTimeout = d
			}
		case "narrate":
			if n, ok := value.(bool); ok {
				config.Logging.Narrate = n
			}
		case "log_level":
			if level, ok := value.(string); ok {
				validLevels := []string{"debug", "info", "warn", "error"}
				for _, valid := range validLevels {
					if strings.ToLower(level) == valid {
						config.Logging.ConsoleLevel = valid
						break
					}
				}
			}
		}
	}
}

// LoadConfigWithOverrides loads config and applies both environment and CLI overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*ScenarioConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	// Apply CLI overrides after environment variables
	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}

	return config, nil
}

// MergeWithEnvironment merges config with DRONESIM_* environment variables
func MergeWithEnvironment(config *ScenarioConfig) {
	overrides := make(map[string]interface{})

	if v := os.Getenv(EnvPrefix + "NUM_DRONES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			overrides["num_drones"] = n
		}
	}
	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			overrides["seed"] = seed
		}
	}

	floatKeys := []string{"duration", "time_step", "base_latency", "jitter", "drop_probability", "report_interval"}
	for _, key := range floatKeys {
		if v := os.Getenv(EnvPrefix + strings.ToUpper(key)); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				overrides[key] = f
			}
		}
	}

	for _, key := range []string{"realtime", "narrate"} {
		if v := os.Getenv(EnvPrefix + strings.ToUpper(key)); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				overrides[key] = b
			}
		}
	}

	for _, key := range []string{"comms_key", "hub", "output_dir", "log_level", "wall_timeout"} {
		if v := os.Getenv(EnvPrefix + strings.ToUpper(key)); v != "" {
			overrides[key] = v
		}
	}

	MergeWithCLIOverrides(config, overrides)
}

func asInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case uint64:
		if val > math.MaxInt {
			return 0, false
		}
		return int(val), true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	case string:
		i, err := strconv.Atoi(val)
		return i, err == nil
	default:
		return 0, false
	}
}

// asUint64 accepts non-negative integers of any width without wrapping
func asUint64(v interface{}) (uint64, bool) {
	switch val := v.(type) {
	case uint64:
		return val, true
	case string:
		u, err := strconv.ParseUint(val, 10, 64)
		return u, err == nil
	default:
		if i, ok := asInt(v); ok && i >= 0 {
			return uint64(i), true
		}
		return 0, false
	}
}

func asDuration(v interface{}) (time.Duration, bool) {
	switch val := v.(type) {
	case time.Duration:
		return val, true
	case string:
		d, err := time.ParseDuration(val)
		return d, err == nil
	default:
		return 0, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
