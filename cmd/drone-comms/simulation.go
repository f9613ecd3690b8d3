package dronecomms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/config"
	"github.com/picogrid/drone-comms-sim/pkg/logger"
	"github.com/picogrid/drone-comms-sim/pkg/reporting"
	"github.com/picogrid/drone-comms-sim/pkg/simulation"
	"github.com/picogrid/drone-comms-sim/pkg/simulator"
)

// SimulationName is the registry and descriptor name of this simulation
const SimulationName = "drone-comms"

// DroneCommsSimulation flies a drone fleet whose members report their status
// to a hub over a lossy, delayed radio link
type DroneCommsSimulation struct {
	config   *config.ScenarioConfig
	recorder comms.Recorder
	console  io.Writer

	mu       sync.Mutex
	report   *reporting.RunReport
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewDroneCommsSimulation creates a new instance of the drone comms simulation
func NewDroneCommsSimulation() simulation.Simulation {
	return &DroneCommsSimulation{
		console:  os.Stdout,
		stopChan: make(chan struct{}),
	}
}

// Name returns the simulation name
func (s *DroneCommsSimulation) Name() string {
	return SimulationName
}

// Description returns the simulation description
func (s *DroneCommsSimulation) Description() string {
	return "Drone fleet physics with encrypted status reports over a lossy, delayed radio link"
}

// Configure sets up the simulation with provided parameters
func (s *DroneCommsSimulation) Configure(params map[string]interface{}) error {
	cfg, err := ValidateAndParse(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	s.config = cfg
	return nil
}

// SetRecorder attaches a statistics observer to the network built by Run
func (s *DroneCommsSimulation) SetRecorder(rec comms.Recorder) {
	s.recorder = rec
}

// Report returns the report of the last completed run, or nil
func (s *DroneCommsSimulation) Report() *reporting.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Run executes the simulation
func (s *DroneCommsSimulation) Run(ctx context.Context) error {
	if s.config == nil {
		return fmt.Errorf("simulation not configured")
	}
	cfg := s.config
	started := time.Now()
	runID := uuid.New()

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	logger.Infof("Starting %s with %d drones (run %s, seed %d)", s.Name(), cfg.Fleet.Count, runID, seed)

	opts := []comms.Option{comms.WithSeed(seed), comms.WithLogger(s.narrator())}

	var commsLog *reporting.CommsLog
	if cfg.Output.CommsLog != "" {
		var err error
		commsLog, err = reporting.CreateCommsLog(s.outputPath(cfg.Output.CommsLog))
		if err != nil {
			return err
		}
		defer func() {
			if err := commsLog.Close(); err != nil {
				logger.Errorf("Failed to close comms log: %v", err)
			}
		}()
		opts = append(opts, comms.WithEventSink(commsLog))
	}
	if s.recorder != nil {
		opts = append(opts, comms.WithRecorder(s.recorder))
	}

	sim, err := simulator.New(cfg.SimulatorConfig(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create simulator: %w", err)
	}
	for i := 0; i < cfg.Fleet.Count; i++ {
		spawn := cfg.SpawnFor(i)
		id, err := sim.AddDrone(cfg.Fleet.Params, spawn.Position)
		if err != nil {
			return fmt.Errorf("failed to add drone %d: %w", i, err)
		}
		if err := applyThrust(sim, id, spawn.Thrust); err != nil {
			return err
		}
		logger.Debugf("Spawned %s at %s", simulator.EndpointName(id), spawn.Position)
	}

	var telemetry *reporting.TelemetryLog
	if cfg.Output.TelemetryLog != "" {
		telemetry, err = reporting.CreateTelemetryLog(s.outputPath(cfg.Output.TelemetryLog))
		if err != nil {
			return err
		}
		defer func() {
			if err := telemetry.Close(); err != nil {
				logger.Errorf("Failed to close telemetry log: %v", err)
			}
		}()
	}

	commands := make([]config.ThrustCommand, len(cfg.Fleet.Commands))
	copy(commands, cfg.Fleet.Commands)
	sort.SliceStable(commands, func(i, j int) bool { return commands[i].At < commands[j].At })

	steps := cfg.Steps()
	dt := cfg.Simulation.TimeStep

	var progress *logger.ProgressBar
	if cfg.Logging.Progress {
		progress = logger.NewProgressBar(steps, "Simulating")
	}

	var tick <-chan time.Time
	if cfg.Simulation.Realtime {
		interval := max(time.Duration(dt*float64(time.Second)), time.Millisecond)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	runCtx := ctx
	if cfg.Simulation.WallTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Simulation.WallTimeout)
		defer cancel()
	}

	runErr := s.loop(runCtx, sim, commands, steps, dt, tick, telemetry, progress)
	if errors.Is(runErr, context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Warnf("%s Wall clock limit of %s reached at t=%.3f", logger.IconTime, cfg.Simulation.WallTimeout, sim.Time())
		runErr = nil
	}
	if progress != nil {
		progress.Finish()
	}

	report := reporting.NewRunReport(runID, cfg.Simulation.Name, seed, sim.Summary(), sim.Drones())
	report.Steps = int(sim.Time()/dt + 0.5)
	report.WallDuration = time.Since(started).Round(time.Millisecond).String()

	s.mu.Lock()
	s.report = report
	s.mu.Unlock()

	report.Print(s.console, cfg.Logging.NoColor)
	_, _ = fmt.Fprintln(s.console)
	report.Table().Fprint(s.console)

	if cfg.Output.Report != "" {
		path := s.outputPath(cfg.Output.Report)
		if err := report.SaveJSON(path); err != nil {
			logger.Errorf("Failed to save report: %v", err)
		} else {
			logger.Infof("%s Report written to %s", logger.IconFile, path)
		}
	}
	if commsLog != nil {
		logger.Infof("%s Comms log: %s (%d rows)", logger.IconFile, s.outputPath(cfg.Output.CommsLog), commsLog.Rows())
	}

	return runErr
}

// loop advances the simulator until every step ran or the run is stopped.
// A nil tick runs as fast as possible.
func (s *DroneCommsSimulation) loop(ctx context.Context, sim *simulator.Simulator, commands []config.ThrustCommand,
	steps int, dt float64, tick <-chan time.Time, telemetry *reporting.TelemetryLog, progress *logger.ProgressBar) error {
	next := 0
	for step := 0; step < steps; step++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.stopChan:
				logger.Info("Simulation stopped by user")
				return nil
			case <-tick:
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.stopChan:
				logger.Info("Simulation stopped by user")
				return nil
			default:
			}
		}

		// commands take effect on the first step that starts at or after their time
		for next < len(commands) && commands[next].At <= sim.Time()+1e-9 {
			cmd := commands[next]
			if err := applyThrust(sim, cmd.Drone, cmd.Thrust); err != nil {
				logger.Warnf("Skipping thrust command at t=%.3f: %v", cmd.At, err)
			} else {
				logger.Debugf("t=%.3f %s thrust %s %s", sim.Time(), simulator.EndpointName(cmd.Drone), cmd.Thrust.Mode, cmd.Thrust.Vector)
			}
			next++
		}

		sim.Step(dt)

		if telemetry != nil {
			if err := telemetry.Write(sim.Time(), sim.Drones()); err != nil {
				return fmt.Errorf("failed to write telemetry: %w", err)
			}
		}
		if progress != nil {
			progress.Increment()
		}
	}

	logger.Successf("Simulation completed after %.3fs of simulated time", sim.Time())
	return nil
}

// Stop gracefully shuts down the simulation
func (s *DroneCommsSimulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// narrator returns the logger that receives per-message console narration
func (s *DroneCommsSimulation) narrator() logger.Logger {
	if !s.config.Logging.Narrate {
		return logger.Discard()
	}
	return logger.NewWithConfig(logger.Config{
		Level:   logger.ParseLevel(s.config.Logging.ConsoleLevel),
		Writer:  s.console,
		NoColor: s.config.Logging.NoColor,
	})
}

func (s *DroneCommsSimulation) outputPath(name string) string {
	if filepath.IsAbs(name) || s.config.Output.Directory == "" {
		return name
	}
	return filepath.Join(s.config.Output.Directory, name)
}

// applyThrust sets a drone's thrust from a scenario thrust spec
func applyThrust(sim *simulator.Simulator, id int, spec config.ThrustSpec) error {
	switch spec.Mode {
	case config.ThrustDirection:
		return sim.SetThrustDirection(id, spec.Vector)
	case config.ThrustForce:
		return sim.SetThrustForce(id, spec.Vector)
	case config.ThrustNone, "":
		return sim.ClearThrust(id)
	default:
		return fmt.Errorf("unknown thrust mode %q", spec.Mode)
	}
}

// init registers the simulation
func init() {
	if err := simulation.DefaultRegistry.Register(SimulationName, NewDroneCommsSimulation); err != nil {
		logger.Errorf("Failed to register simulation: %v", err)
	}
}
