package dronecomms

import (
	"fmt"

	"github.com/picogrid/drone-comms-sim/pkg/config"
)

// ValidateAndParse turns raw CLI parameters into a scenario. The optional
// "scenario" parameter names a YAML file; every other parameter overrides
// the matching scenario field.
func ValidateAndParse(params map[string]interface{}) (*config.ScenarioConfig, error) {
	path := ""
	overrides := make(map[string]interface{}, len(params))

	for k, v := range params {
		if k == "scenario" {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("scenario must be a file path")
			}
			path = s
			continue
		}
		overrides[k] = v
	}

	if n, ok := overrides["num_drones"].(int); ok && n < 1 {
		return nil, fmt.Errorf("num_drones must be at least 1")
	}

	return config.LoadConfigWithOverrides(path, overrides)
}
