package entity

import (
	"math"

	"github.com/originfall/core/internal/spatial"
)

// Path produces a lazy sequence of waypoints with an associated speed
// (§4.6). It is shared by NPC path following and, eventually, vehicle
// routes; nothing here is NPC-specific.
type Path struct {
	waypoints []spatial.Vec3
	speed     float32
	idx       int
}

// NewPath returns a Path over waypoints traveled at speed world units
// per second.
func NewPath(waypoints []spatial.Vec3, speed float32) *Path {
	return &Path{waypoints: waypoints, speed: speed}
}

// Done reports whether every waypoint has been reached.
func (p *Path) Done() bool { return p.idx >= len(p.waypoints) }

// Speed returns the path's configured travel speed.
func (p *Path) Speed() float32 { return p.speed }

// Tick advances *pos toward the next waypoint by speed*dt world units,
// reporting true iff the position changed this tick (§4.6).
func (p *Path) Tick(pos *spatial.Vec3, dt float32) bool {
	if p.Done() {
		return false
	}
	target := p.waypoints[p.idx]
	dx, dy, dz := target.X-pos.X, target.Y-pos.Y, target.Z-pos.Z
	remaining := float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
	if remaining == 0 {
		p.idx++
		return p.Tick(pos, dt)
	}

	step := p.speed * dt
	if step >= remaining {
		*pos = target
		p.idx++
		return true
	}

	frac := step / remaining
	pos.X += dx * frac
	pos.Y += dy * frac
	pos.Z += dz * frac
	return true
}
