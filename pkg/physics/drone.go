package physics

import (
	"github.com/picogrid/drone-comms-sim/pkg/geom"
)

// DroneParams are the physical limits of a drone. They do not change after
// the drone is created.
type DroneParams struct {
	Mass      float64 `yaml:"mass" json:"mass"`             // kg, must be > 0
	MaxThrust float64 `yaml:"max_thrust" json:"max_thrust"` // N
	MaxSpeed  float64 `yaml:"max_speed" json:"max_speed"`   // m/s, 0 = unlimited
}

// DroneState is a point-in-time snapshot of a drone's motion state
type DroneState struct {
	ID       int         `json:"id"`
	Position geom.Vector `json:"position"`
	Velocity geom.Vector `json:"velocity"`
	Thrust   geom.Vector `json:"thrust"`
}

// Drone is a point mass driven by a thrust vector and world gravity.
//
// Thrust magnitude never exceeds Params().MaxThrust, and after Update the
// position lies inside the world rectangle.
type Drone struct {
	id       int
	params   DroneParams
	position geom.Vector
	velocity geom.Vector
	thrust   geom.Vector
}

// NewDrone creates a drone at rest at start with no thrust applied
func NewDrone(id int, params DroneParams, start geom.Vector) *Drone {
	return &Drone{
		id:       id,
		params:   params,
		position: start,
	}
}

func (d *Drone) ID() int               { return d.id }
func (d *Drone) Params() DroneParams   { return d.params }
func (d *Drone) Position() geom.Vector { return d.position }
func (d *Drone) Velocity() geom.Vector { return d.velocity }
func (d *Drone) Thrust() geom.Vector   { return d.thrust }

// State returns a snapshot of the drone
func (d *Drone) State() DroneState {
	return DroneState{
		ID:       d.id,
		Position: d.position,
		Velocity: d.velocity,
		Thrust:   d.thrust,
	}
}

// SetThrustDirection applies full thrust along direction. A zero direction
// yields zero thrust.
func (d *Drone) SetThrustDirection(direction geom.Vector) {
	d.thrust = direction.Normalized().Scale(d.params.MaxThrust)
}

// SetThrustForce applies force as the thrust vector, scaling it down to
// MaxThrust when it is too large. Direction is always preserved.
func (d *Drone) SetThrustForce(force geom.Vector) {
	mag := force.Length()
	if mag <= d.params.MaxThrust {
		d.thrust = force
		return
	}
	d.thrust = force.Scale(d.params.MaxThrust / mag)
}

// ClearThrust leaves gravity as the only force acting on the drone
func (d *Drone) ClearThrust() {
	d.thrust = geom.Zero
}

// Update advances the drone by dt seconds using semi-implicit Euler
// integration: velocity first, then position from the new velocity.
func (d *Drone) Update(dt float64, world *World) {
	totalForce := d.thrust.Add(world.Gravity.Scale(d.params.Mass))
	acceleration := totalForce.Scale(1.0 / d.params.Mass)

	d.velocity = d.velocity.Add(acceleration.Scale(dt))

	if d.params.MaxSpeed > 0 {
		if speed := d.velocity.Length(); speed > d.params.MaxSpeed {
			d.velocity = d.velocity.Scale(d.params.MaxSpeed / speed)
		}
	}

	d.position = d.position.Add(d.velocity.Scale(dt))

	// Walls stop the drone on the axis that hit them; no bounce.
	if d.position.X < 0 {
		d.position.X, d.velocity.X = 0, 0
	} else if d.position.X > world.Width {
		d.position.X, d.velocity.X = world.Width, 0
	}
	if d.position.Y < 0 {
		d.position.Y, d.velocity.Y = 0, 0
	} else if d.position.Y > world.Height {
		d.position.Y, d.velocity.Y = world.Height, 0
	}
}
