// Package simulator drives a fleet of drones over a shared world and has
// each drone report its status to a hub endpoint at a fixed cadence.
package simulator

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/geom"
	"github.com/picogrid/drone-comms-sim/pkg/physics"
)

// Defaults used when Config leaves a field zero
const (
	DefaultHub            = "HQ"
	DefaultReportInterval = 0.5
)

// ErrInvalidDrone is returned for commands addressed to a drone id that
// does not exist
var ErrInvalidDrone = errors.New("invalid drone id")

// Config describes the world, transport and reporting schedule
type Config struct {
	World          *physics.World
	Network        comms.Config
	ReportInterval float64 // seconds between status batches
	FirstReport    float64 // time of the first batch; 0 means one interval in
	Hub            string
}

// StepReport summarizes one call to Step
type StepReport struct {
	Time          float64
	ReportsSent   int
	Delivered     int
	Undeliverable int
}

// Simulator owns the world, the drones and the network. Drones are indexed
// by creation order and never removed.
type Simulator struct {
	mu sync.Mutex

	world   *physics.World
	network *comms.Network
	hub     string

	drones []*physics.Drone
	names  []string

	clock          float64
	reportInterval float64
	nextReport     float64
}

// New builds a simulator and registers the hub endpoint
func New(cfg Config, opts ...comms.Option) (*Simulator, error) {
	if cfg.World == nil {
		cfg.World = physics.DefaultWorld()
	}
	if err := cfg.World.Validate(); err != nil {
		return nil, fmt.Errorf("invalid world: %w", err)
	}
	if cfg.Hub == "" {
		cfg.Hub = DefaultHub
	}
	if cfg.ReportInterval < 0 {
		return nil, fmt.Errorf("report interval must be >= 0, got %g", cfg.ReportInterval)
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.FirstReport <= 0 {
		cfg.FirstReport = cfg.ReportInterval
	}

	network, err := comms.NewNetwork(cfg.Network, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := network.RegisterEndpoint(cfg.Hub); err != nil {
		return nil, err
	}

	return &Simulator{
		world:          cfg.World,
		network:        network,
		hub:            cfg.Hub,
		reportInterval: cfg.ReportInterval,
		nextReport:     cfg.FirstReport,
	}, nil
}

// EndpointName is the network name of drone id
func EndpointName(id int) string {
	return fmt.Sprintf("Drone%d", id)
}

// AddDrone creates a drone at start and registers its endpoint. The
// returned id is the drone's creation index.
func (s *Simulator) AddDrone(params physics.DroneParams, start geom.Vector) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if params.Mass <= 0 {
		return -1, fmt.Errorf("%w: mass must be positive, got %g", ErrInvalidDrone, params.Mass)
	}

	id := len(s.drones)
	name := EndpointName(id)
	if _, err := s.network.RegisterEndpoint(name); err != nil {
		return -1, err
	}

	s.drones = append(s.drones, physics.NewDrone(id, params, start))
	s.names = append(s.names, name)
	return id, nil
}

func (s *Simulator) drone(id int) (*physics.Drone, error) {
	if id < 0 || id >= len(s.drones) {
		return nil, fmt.Errorf("%w: %d (fleet size %d)", ErrInvalidDrone, id, len(s.drones))
	}
	return s.drones[id], nil
}

// SetThrustDirection applies full thrust along dir to drone id
func (s *Simulator) SetThrustDirection(id int, dir geom.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.drone(id)
	if err != nil {
		return err
	}
	d.SetThrustDirection(dir)
	return nil
}

// SetThrustForce applies a clamped thrust force to drone id
func (s *Simulator) SetThrustForce(id int, force geom.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.drone(id)
	if err != nil {
		return err
	}
	d.SetThrustForce(force)
	return nil
}

// ClearThrust removes thrust from drone id
func (s *Simulator) ClearThrust(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.drone(id)
	if err != nil {
		return err
	}
	d.ClearThrust()
	return nil
}

// Step advances the clock by dt, integrates every drone, sends a status
// batch when one is due and then delivers whatever the network has ready.
//
// At most one batch is sent per step. When dt spans several report
// intervals the schedule skips ahead so it never lags the clock.
func (s *Simulator) Step(dt float64) StepReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock += dt
	for _, d := range s.drones {
		d.Update(dt, s.world)
	}

	report := StepReport{Time: s.clock}

	if s.clock >= s.nextReport {
		for i, d := range s.drones {
			s.network.Send(s.names[i], s.hub, StatusPayload(d.State()), s.clock)
			report.ReportsSent++
		}
		s.advanceReportSchedule()
	}

	res := s.network.Step(s.clock)
	report.Delivered = len(res.Delivered)
	report.Undeliverable = len(res.Undeliverable)
	return report
}

// advanceReportSchedule moves nextReport to the first interval boundary past
// the clock. The jump is computed in one step so coarse steps stay cheap, and
// at magnitudes where adding an interval no longer changes the float the
// schedule resumes from the clock itself.
func (s *Simulator) advanceReportSchedule() {
	k := math.Floor((s.clock-s.nextReport)/s.reportInterval) + 1
	next := s.nextReport + k*s.reportInterval
	if next <= s.clock {
		next = s.clock + s.reportInterval
	}
	if next <= s.clock {
		next = math.Nextafter(s.clock, math.Inf(1))
	}
	s.nextReport = next
}

// StatusPayload formats the status message a drone sends to the hub
func StatusPayload(state physics.DroneState) string {
	return fmt.Sprintf("STATUS pos=(%.2f,%.2f) vel=(%.2f,%.2f)",
		state.Position.X, state.Position.Y, state.Velocity.X, state.Velocity.Y)
}

// Time returns the simulation clock
func (s *Simulator) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// NextReport returns the time of the next status batch
func (s *Simulator) NextReport() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextReport
}

// Drones returns a snapshot of every drone in creation order
func (s *Simulator) Drones() []physics.DroneState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]physics.DroneState, len(s.drones))
	for i, d := range s.drones {
		out[i] = d.State()
	}
	return out
}

// DroneCount returns the fleet size
func (s *Simulator) DroneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drones)
}

// World returns the shared world
func (s *Simulator) World() *physics.World {
	return s.world
}

// Hub returns the name of the status collection endpoint
func (s *Simulator) Hub() string {
	return s.hub
}

// Network exposes the transport for inspection
func (s *Simulator) Network() *comms.Network {
	return s.network
}

// Summary returns the network summary at the current time
func (s *Simulator) Summary() comms.Summary {
	return s.network.Summary(s.Time())
}
