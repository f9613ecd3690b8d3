package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/picogrid/drone-comms-sim/pkg/simulation"
)

func TestResolveParameters(t *testing.T) {
	t.Setenv("DRONESIM_DROP_PROBABILITY", "0.3")
	t.Setenv("DRONESIM_NARRATE", "false")

	params := []simulation.Parameter{
		{Name: "num_drones", Type: "integer", Default: 3},
		{Name: "drop_probability", Type: "float", Default: 0.15},
		{Name: "narrate", Type: "boolean", Default: true},
		{Name: "hub", Type: "string"},
	}

	values, err := ResolveParameters(params)
	if err != nil {
		t.Fatalf("ResolveParameters: %v", err)
	}

	if values["num_drones"] != 3 {
		t.Errorf("Expected default 3, got %v", values["num_drones"])
	}
	if values["drop_probability"] != 0.3 {
		t.Errorf("Expected env override 0.3, got %v", values["drop_probability"])
	}
	if values["narrate"] != false {
		t.Errorf("Expected env override false, got %v", values["narrate"])
	}
	if _, ok := values["hub"]; ok {
		t.Errorf("optional parameter without default should be omitted")
	}
}

func TestResolveParametersErrors(t *testing.T) {
	if _, err := ResolveParameters([]simulation.Parameter{{Name: "seed", Type: "integer", Required: true}}); err == nil {
		t.Error("Expected error for required parameter without value")
	}

	t.Setenv("DRONESIM_SEED", "abc")
	if _, err := ResolveParameters([]simulation.Parameter{{Name: "seed", Type: "integer", Default: 1}}); err == nil {
		t.Error("Expected error for malformed env override")
	}
}

func TestResolveDurationParameters(t *testing.T) {
	params := []simulation.Parameter{
		{Name: "wall_timeout", Type: "duration", Default: "1m30s"},
		{Name: "linger", Type: "duration", Default: "5s"},
	}
	t.Setenv("DRONESIM_LINGER", "250ms")

	values, err := ResolveParameters(params)
	if err != nil {
		t.Fatalf("ResolveParameters: %v", err)
	}
	if values["wall_timeout"] != 90*time.Second {
		t.Errorf("Expected default 1m30s as a duration, got %v (%T)", values["wall_timeout"], values["wall_timeout"])
	}
	if values["linger"] != 250*time.Millisecond {
		t.Errorf("Expected env override 250ms, got %v", values["linger"])
	}

	bad := []simulation.Parameter{{Name: "wall_timeout", Type: "duration", Default: "soon"}}
	if _, err := ResolveParameters(bad); err == nil {
		t.Error("Expected error for malformed duration default")
	}
}

func TestIsInteractiveRespectsSkip(t *testing.T) {
	t.Setenv("DRONESIM_SKIP_PROMPTS", "true")
	if IsInteractive() {
		t.Error("prompts should be skipped")
	}
}

func TestDiscoverSimulationsIn(t *testing.T) {
	root := t.TempDir()
	simDir := filepath.Join(root, "drone-comms")
	if err := os.MkdirAll(simDir, 0755); err != nil {
		t.Fatal(err)
	}
	descriptor := `name: drone-comms
description: test
version: 1.0.0
category: communications
parameters:
  - name: num_drones
    type: integer
    default: 3
    min: 1
`
	if err := os.WriteFile(filepath.Join(simDir, "simulation.yaml"), []byte(descriptor), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "simulation.yaml"), []byte("name: [broken"), 0644); err != nil {
		t.Fatal(err)
	}

	sims, err := DiscoverSimulationsIn(root)
	if err != nil {
		t.Fatalf("DiscoverSimulationsIn: %v", err)
	}
	if len(sims) != 1 {
		t.Fatalf("Expected one valid simulation, got %d", len(sims))
	}

	info, err := FindSimulation(sims, "drone-comms")
	if err != nil {
		t.Fatal(err)
	}
	if info.Path != simDir || len(info.Config.Parameters) != 1 {
		t.Errorf("unexpected info %+v", info)
	}
	if _, err := FindSimulation(sims, "other"); err == nil {
		t.Error("Expected error for unknown simulation")
	}
}
