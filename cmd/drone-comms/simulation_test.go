package dronecomms

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/config"
	"github.com/picogrid/drone-comms-sim/pkg/geom"
	"github.com/picogrid/drone-comms-sim/pkg/simulation"
	"github.com/picogrid/drone-comms-sim/pkg/simulator"
)

func newTestSimulation(t *testing.T, params map[string]interface{}) (*DroneCommsSimulation, *bytes.Buffer) {
	t.Helper()

	sim := NewDroneCommsSimulation().(*DroneCommsSimulation)
	console := &bytes.Buffer{}
	sim.console = console

	base := map[string]interface{}{
		"scenario":   "scenario.yaml",
		"seed":       7,
		"duration":   3.0,
		"narrate":    false,
		"output_dir": t.TempDir(),
	}
	for k, v := range params {
		base[k] = v
	}
	if err := sim.Configure(base); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	return sim, console
}

func TestRegistered(t *testing.T) {
	sim, err := simulation.DefaultRegistry.Get(SimulationName)
	if err != nil {
		t.Fatalf("Expected %s to be registered: %v", SimulationName, err)
	}
	if sim.Name() != SimulationName {
		t.Errorf("Expected name %s, got %s", SimulationName, sim.Name())
	}
}

func TestValidateAndParse(t *testing.T) {
	cfg, err := ValidateAndParse(map[string]interface{}{
		"scenario":   "scenario.yaml",
		"num_drones": 1,
		"seed":       99,
	})
	if err != nil {
		t.Fatalf("ValidateAndParse failed: %v", err)
	}
	if cfg.Fleet.Count != 1 {
		t.Errorf("Expected 1 drone, got %d", cfg.Fleet.Count)
	}
	if cfg.Simulation.Seed != 99 {
		t.Errorf("Expected seed 99, got %d", cfg.Simulation.Seed)
	}
	for _, cmd := range cfg.Fleet.Commands {
		if cmd.Drone >= 1 {
			t.Errorf("command for drone %d should have been dropped", cmd.Drone)
		}
	}

	if _, err := ValidateAndParse(map[string]interface{}{"num_drones": 0}); err == nil {
		t.Error("Expected error for zero drones")
	}
	if _, err := ValidateAndParse(map[string]interface{}{"scenario": 12}); err == nil {
		t.Error("Expected error for non-string scenario")
	}
}

func TestValidateAndParseRejectsBadScenario(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	data := "fleet:\n  count: 2\n  params:\n    mass: -1\n    max_thrust: 30\n"
	if err := os.WriteFile(bad, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write scenario: %v", err)
	}

	if _, err := ValidateAndParse(map[string]interface{}{"scenario": bad}); err == nil {
		t.Error("Expected an invalid scenario file to be rejected")
	}
	if _, err := ValidateAndParse(map[string]interface{}{"scenario": filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("Expected a missing scenario file to be rejected")
	}

	sim := NewDroneCommsSimulation()
	if err := sim.Configure(map[string]interface{}{"scenario": bad}); err == nil {
		t.Error("Expected Configure to fail for an invalid scenario file")
	}
}

func TestRunProducesArtifacts(t *testing.T) {
	sim, console := newTestSimulation(t, nil)
	rec := &countingRecorder{}
	sim.SetRecorder(rec)

	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	report := sim.Report()
	if report == nil {
		t.Fatal("Expected a report after Run")
	}
	if report.Seed != 7 {
		t.Errorf("Expected seed 7 in report, got %d", report.Seed)
	}
	if len(report.Drones) != 3 {
		t.Errorf("Expected 3 drones in report, got %d", len(report.Drones))
	}

	s := report.Summary
	if s.Sent == 0 || s.Sent%3 != 0 {
		t.Errorf("Expected whole status batches for 3 drones, got %d sends", s.Sent)
	}
	if s.Sent != s.Delivered+s.Dropped+s.InFlight+s.Undeliverable {
		t.Errorf("message counts do not add up: %+v", s)
	}
	if rec.sent != s.Sent || rec.delivered != s.Delivered {
		t.Errorf("Expected recorder to see %d/%d, got %d/%d", s.Sent, s.Delivered, rec.sent, rec.delivered)
	}

	if !strings.Contains(console.String(), "=== Simulation Summary") {
		t.Errorf("Expected summary on the console, got:\n%s", console.String())
	}
	if strings.Contains(console.String(), "[SEND]") {
		t.Error("narration should be off")
	}

	dir := sim.config.Output.Directory
	for _, name := range []string{"comms_log.csv", "telemetry.csv", "report.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatalf("failed to read telemetry: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if want := 1 + 30*3; len(lines) != want {
		t.Errorf("Expected %d telemetry lines, got %d", want, len(lines))
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	first, _ := newTestSimulation(t, nil)
	second, _ := newTestSimulation(t, nil)

	if err := first.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := second.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	a, b := first.Report().Summary, second.Report().Summary
	if a.Delivered != b.Delivered || a.Dropped != b.Dropped || a.TotalLatency != b.TotalLatency {
		t.Errorf("same seed gave different runs: %+v vs %+v", a, b)
	}
}

func TestRunNarrates(t *testing.T) {
	sim, console := newTestSimulation(t, map[string]interface{}{"narrate": true, "duration": 1.0})

	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := console.String()
	if !strings.Contains(out, "[t=0.500]") {
		t.Errorf("Expected the first batch narrated at t=0.500, got:\n%s", out)
	}
	if !strings.Contains(out, "Drone0 -> HQ") {
		t.Errorf("Expected Drone0 reports narrated, got:\n%s", out)
	}
}

func TestRunStopped(t *testing.T) {
	sim, _ := newTestSimulation(t, nil)
	if err := sim.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// a second Stop must not panic
	_ = sim.Stop()

	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Expected nil error when stopped, got %v", err)
	}
	if sim.Report() == nil || sim.Report().Summary.Sent != 0 {
		t.Errorf("Expected an empty report for a stopped run, got %+v", sim.Report())
	}
}

func TestRunCancelled(t *testing.T) {
	sim, _ := newTestSimulation(t, map[string]interface{}{"realtime": true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sim.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if sim.Report() == nil {
		t.Error("Expected a report even for a cancelled run")
	}
}

func TestRunWallTimeout(t *testing.T) {
	sim, _ := newTestSimulation(t, map[string]interface{}{
		"realtime":     true,
		"duration":     30.0,
		"wall_timeout": 200 * time.Millisecond,
	})

	start := time.Now()
	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Expected a wall clock limit to end the run cleanly, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Expected the run to stop near the limit, took %s", elapsed)
	}
	if steps := sim.Report().Steps; steps >= 300 {
		t.Errorf("Expected the run cut short, got %d steps", steps)
	}
}

func TestRunUnconfigured(t *testing.T) {
	sim := NewDroneCommsSimulation()
	if err := sim.Run(context.Background()); err == nil {
		t.Error("Expected error running an unconfigured simulation")
	}
}

func TestApplyThrust(t *testing.T) {
	sim, err := simulator.New(simulator.Config{Network: comms.Config{Key: []byte("k")}}, comms.WithSeed(1))
	if err != nil {
		t.Fatalf("simulator.New failed: %v", err)
	}
	id, err := sim.AddDrone(config.GetDefaultConfig().Fleet.Params, geom.V(50, 50))
	if err != nil {
		t.Fatalf("AddDrone failed: %v", err)
	}

	if err := applyThrust(sim, id, config.ThrustSpec{Mode: config.ThrustForce, Vector: geom.V(0, 100)}); err != nil {
		t.Fatalf("applyThrust failed: %v", err)
	}
	if got := sim.Drones()[id].Thrust; got != geom.V(0, 30) {
		t.Errorf("Expected thrust clamped to (0, 30), got %v", got)
	}

	if err := applyThrust(sim, id, config.ThrustSpec{Mode: config.ThrustNone}); err != nil {
		t.Fatalf("applyThrust failed: %v", err)
	}
	if !sim.Drones()[id].Thrust.IsZero() {
		t.Errorf("Expected zero thrust, got %v", sim.Drones()[id].Thrust)
	}

	if err := applyThrust(sim, id, config.ThrustSpec{Mode: "hover"}); err == nil {
		t.Error("Expected error for unknown mode")
	}
	if err := applyThrust(sim, 5, config.ThrustSpec{Mode: config.ThrustNone}); !errors.Is(err, simulator.ErrInvalidDrone) {
		t.Errorf("Expected ErrInvalidDrone, got %v", err)
	}
}

type countingRecorder struct {
	sent, delivered int
}

func (r *countingRecorder) MessageSent(comms.Message)               { r.sent++ }
func (r *countingRecorder) MessageDropped(comms.Message)            {}
func (r *countingRecorder) MessageDelivered(comms.Message, float64) { r.delivered++ }
func (r *countingRecorder) MessageUndeliverable(comms.Message)      {}
func (r *countingRecorder) InFlight(int)                            {}
