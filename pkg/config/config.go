// Package config loads drone-comms scenario files and applies environment
// and command line overrides on top of them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/geom"
	"github.com/picogrid/drone-comms-sim/pkg/physics"
	"github.com/picogrid/drone-comms-sim/pkg/simulator"
)

// Thrust modes accepted in scenario files
const (
	ThrustDirection = "direction"
	ThrustForce     = "force"
	ThrustNone      = "none"
)

// ScenarioConfig holds the complete scenario configuration
type ScenarioConfig struct {
	// Basic simulation settings
	Simulation SimulationSettings `yaml:"simulation"`

	// Physical world
	World WorldConfig `yaml:"world"`

	// Radio network
	Network NetworkConfig `yaml:"network"`

	// Status reporting schedule
	Reporting ReportingConfig `yaml:"reporting"`

	// Drones and thrust commands
	Fleet FleetConfig `yaml:"fleet"`

	// Files written by a run
	Output OutputConfig `yaml:"output"`

	// Console output
	Logging LoggingConfig `yaml:"logging"`
}

// SimulationSettings holds basic simulation settings
type SimulationSettings struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Duration    float64 `yaml:"duration"`  // simulated seconds
	TimeStep    float64 `yaml:"time_step"` // seconds per step
	Realtime    bool    `yaml:"realtime"`  // pace steps against the wall clock
	Seed        uint64  `yaml:"seed"`      // 0 picks a random seed
	// WallTimeout caps the wall clock time of a run; 0 means no limit
	WallTimeout time.Duration `yaml:"wall_timeout"`
}

// WorldConfig describes the bounded world
type WorldConfig struct {
	Gravity geom.Vector `yaml:"gravity"`
	Width   float64     `yaml:"width"`
	Height  float64     `yaml:"height"`
}

// NetworkConfig describes the radio link
type NetworkConfig struct {
	BaseLatency     float64 `yaml:"base_latency"`
	Jitter          float64 `yaml:"jitter"`
	DropProbability float64 `yaml:"drop_probability"`
	Key             string  `yaml:"key"`
}

// ReportingConfig controls the drone status cadence
type ReportingConfig struct {
	Interval    float64 `yaml:"interval"`
	FirstReport float64 `yaml:"first_report"`
	Hub         string  `yaml:"hub"`
}

// ThrustSpec is a thrust setting for one drone
type ThrustSpec struct {
	Mode   string      `yaml:"mode"` // "direction", "force", "none"
	Vector geom.Vector `yaml:"vector"`
}

// DroneSpawn places one drone and gives it an initial thrust
type DroneSpawn struct {
	Position geom.Vector `yaml:"position"`
	Thrust   ThrustSpec  `yaml:"thrust"`
}

// ThrustCommand changes a drone's thrust at a given simulation time
type ThrustCommand struct {
	At     float64    `yaml:"at"`
	Drone  int        `yaml:"drone"`
	Thrust ThrustSpec `yaml:",inline"`
}

// FleetConfig describes the drones
type FleetConfig struct {
	Count    int                 `yaml:"count"`
	Params   physics.DroneParams `yaml:"params"`
	Spawns   []DroneSpawn        `yaml:"spawns"`
	Commands []ThrustCommand     `yaml:"commands"`
}

// OutputConfig names the files a run produces. Empty names disable a file.
type OutputConfig struct {
	Directory    string `yaml:"directory"`
	CommsLog     string `yaml:"comms_log"`
	TelemetryLog string `yaml:"telemetry_log"`
	Report       string `yaml:"report"`
}

// LoggingConfig controls console output
type LoggingConfig struct {
	ConsoleLevel string `yaml:"console_level"`
	Narrate      bool   `yaml:"narrate"`
	NoColor      bool   `yaml:"no_color"`
	Progress     bool   `yaml:"progress"`
}

// Validate checks if the configuration is valid
func (c *ScenarioConfig) Validate() error {
	if c.Simulation.Name == "" {
		return fmt.Errorf("simulation name is required")
	}

	if c.Simulation.TimeStep <= 0 {
		return fmt.Errorf("time step must be positive")
	}

	if c.Simulation.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}

	if c.Simulation.WallTimeout < 0 {
		return fmt.Errorf("wall timeout must not be negative")
	}

	if err := c.PhysicsWorld().Validate(); err != nil {
		return err
	}

	if err := c.CommsConfig().Validate(); err != nil {
		return err
	}

	if c.Reporting.Interval <= 0 {
		return fmt.Errorf("report interval must be positive")
	}

	if c.Reporting.FirstReport < 0 {
		return fmt.Errorf("first report time must not be negative")
	}

	if c.Reporting.Hub == "" {
		return fmt.Errorf("hub endpoint name is required")
	}

	if c.Fleet.Count < 0 {
		return fmt.Errorf("drone count must not be negative")
	}

	if c.Fleet.Params.Mass <= 0 {
		return fmt.Errorf("drone mass must be positive")
	}

	if c.Fleet.Params.MaxThrust < 0 || c.Fleet.Params.MaxSpeed < 0 {
		return fmt.Errorf("drone thrust and speed limits must not be negative")
	}

	for i, s := range c.Fleet.Spawns {
		if err := validateThrust(s.Thrust); err != nil {
			return fmt.Errorf("spawn %d: %w", i, err)
		}
	}

	for i, cmd := range c.Fleet.Commands {
		if cmd.At < 0 {
			return fmt.Errorf("command %d: time must not be negative", i)
		}
		if cmd.Drone < 0 || cmd.Drone >= c.Fleet.Count {
			return fmt.Errorf("command %d: drone %d outside fleet of %d", i, cmd.Drone, c.Fleet.Count)
		}
		if err := validateThrust(cmd.Thrust); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}

	switch strings.ToLower(c.Logging.ConsoleLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("console level must be one of debug, info, warn, error")
	}

	return nil
}

func validateThrust(t ThrustSpec) error {
	switch t.Mode {
	case "", ThrustNone, ThrustDirection, ThrustForce:
		return nil
	default:
		return fmt.Errorf("unknown thrust mode %q", t.Mode)
	}
}

// PhysicsWorld builds the world described by the scenario
func (c *ScenarioConfig) PhysicsWorld() *physics.World {
	return physics.NewWorld(c.World.Gravity, c.World.Width, c.World.Height)
}

// CommsConfig builds the transport configuration
func (c *ScenarioConfig) CommsConfig() comms.Config {
	return comms.Config{
		BaseLatency:     c.Network.BaseLatency,
		Jitter:          c.Network.Jitter,
		DropProbability: c.Network.DropProbability,
		Key:             []byte(c.Network.Key),
	}
}

// SimulatorConfig builds the orchestrator configuration
func (c *ScenarioConfig) SimulatorConfig() simulator.Config {
	return simulator.Config{
		World:          c.PhysicsWorld(),
		Network:        c.CommsConfig(),
		ReportInterval: c.Reporting.Interval,
		FirstReport:    c.Reporting.FirstReport,
		Hub:            c.Reporting.Hub,
	}
}

// SpawnFor returns the spawn of drone i. Drones without an explicit spawn
// are spread evenly along the floor with no thrust.
func (c *ScenarioConfig) SpawnFor(i int) DroneSpawn {
	if i < len(c.Fleet.Spawns) {
		return c.Fleet.Spawns[i]
	}
	spacing := c.World.Width / float64(c.Fleet.Count+1)
	return DroneSpawn{
		Position: geom.V(spacing*float64(i+1), 0),
		Thrust:   ThrustSpec{Mode: ThrustNone},
	}
}

// dropCommandsBeyondFleet removes scripted commands for drones a smaller
// fleet no longer has
func (c *ScenarioConfig) dropCommandsBeyondFleet() {
	kept := c.Fleet.Commands[:0]
	for _, cmd := range c.Fleet.Commands {
		if cmd.Drone < c.Fleet.Count {
			kept = append(kept, cmd)
		}
	}
	c.Fleet.Commands = kept
}

// Steps is the number of fixed steps needed to cover the duration
func (c *ScenarioConfig) Steps() int {
	if c.Simulation.TimeStep <= 0 {
		return 0
	}
	// small epsilon so 10/0.1 does not round down to 99
	return int(c.Simulation.Duration/c.Simulation.TimeStep + 1e-9)
}

// String returns a human-readable representation of the configuration
func (c *ScenarioConfig) String() string {
	return fmt.Sprintf(`Scenario Configuration:
  Name: %s
  Description: %s
  Duration: %.2fs
  Time Step: %.3fs
  Realtime: %t
  Seed: %d
  Wall Timeout: %s

World:
  Gravity: %s
  Size: %gx%g m

Network:
  Base Latency: %.3fs
  Jitter: +/-%.3fs
  Drop Probability: %.2f

Reporting:
  Hub: %s
  Interval: %.2fs
  First Report: %.2fs

Fleet:
  Drones: %d
  Mass: %.2f kg
  Max Thrust: %.2f N
  Max Speed: %.2f m/s
  Scripted Commands: %d

Output:
  Directory: %s
  Comms Log: %s
  Telemetry Log: %s
  Report: %s

Logging:
  Console Level: %s
  Narrate: %t`,
		c.Simulation.Name,
		c.Simulation.Description,
		c.Simulation.Duration,
		c.Simulation.TimeStep,
		c.Simulation.Realtime,
		c.Simulation.Seed,
		orDisabled(durationString(c.Simulation.WallTimeout)),
		c.World.Gravity,
		c.World.Width,
		c.World.Height,
		c.Network.BaseLatency,
		c.Network.Jitter,
		c.Network.DropProbability,
		c.Reporting.Hub,
		c.Reporting.Interval,
		c.Reporting.FirstReport,
		c.Fleet.Count,
		c.Fleet.Params.Mass,
		c.Fleet.Params.MaxThrust,
		c.Fleet.Params.MaxSpeed,
		len(c.Fleet.Commands),
		c.Output.Directory,
		orDisabled(c.Output.CommsLog),
		orDisabled(c.Output.TelemetryLog),
		orDisabled(c.Output.Report),
		c.Logging.ConsoleLevel,
		c.Logging.Narrate,
	)
}

func durationString(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.String()
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

// GetDefaultConfig returns the three-drone status reporting scenario
func GetDefaultConfig() *ScenarioConfig {
	return &ScenarioConfig{
		Simulation: SimulationSettings{
			Name:        "drone-comms",
			Description: "Drone fleet status reporting over a lossy radio link",
			Duration:    10,
			TimeStep:    0.1,
		},

		World: WorldConfig{
			Gravity: geom.V(0, physics.DefaultGravity),
			Width:   physics.DefaultWidth,
			Height:  physics.DefaultHeight,
		},

		Network: NetworkConfig{
			BaseLatency:     0.5,
			Jitter:          0.2,
			DropProbability: 0.15,
			Key:             "USMC-COMMS-KEY",
		},

		Reporting: ReportingConfig{
			Interval:    0.5,
			FirstReport: 0.5,
			Hub:         simulator.DefaultHub,
		},

		Fleet: FleetConfig{
			Count: 3,
			Params: physics.DroneParams{
				Mass:      1.5,
				MaxThrust: 30,
				MaxSpeed:  15,
			},
			Spawns: []DroneSpawn{
				{Position: geom.V(20, 10), Thrust: ThrustSpec{Mode: ThrustDirection, Vector: geom.V(0, 1)}},
				{Position: geom.V(50, 10), Thrust: ThrustSpec{Mode: ThrustDirection, Vector: geom.V(1, 1)}},
				{Position: geom.V(80, 10), Thrust: ThrustSpec{Mode: ThrustForce, Vector: geom.V(-5, 20)}},
			},
		},

		Output: OutputConfig{
			Directory:    ".",
			CommsLog:     "comms_log.csv",
			TelemetryLog: "",
			Report:       "",
		},

		Logging: LoggingConfig{
			ConsoleLevel: "info",
			Narrate:      true,
		},
	}
}
