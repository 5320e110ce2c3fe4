// Package scheduler implements the shard's periodic tick runner (§4.5):
// entity tick, vehicle expiry, autosave, and keepalive, each fired on its
// own configurable period from a single monotonic clock source.
//
// Grounded on daemon/transport/scheduler.go's PriorityScheduler, adapted
// from a priority-queue dispatcher draining three channels to a set of
// period-keyed tasks checked once per pass; and on go-theft-craft-server's
// player.Manager.Tick(), whose tick-counter-modulo idiom ("fire every N
// ticks") is the simplest correct way to stagger tasks of different
// periods off one driving clock without a goroutine per task — apt here
// since §5 forbids extra concurrency inside a shard process.
package scheduler

import (
	"time"

	"github.com/originfall/core/internal/db"
	"github.com/originfall/core/internal/entity"
	"github.com/originfall/core/internal/reactor"
	"github.com/originfall/core/internal/spatial"
	"github.com/originfall/core/internal/wire"
)

// Config holds every task's firing period. A zero period disables that
// task entirely (useful for the login server process, which has no
// entity map to tick).
type Config struct {
	TickPeriod          time.Duration
	VehicleExpiryPeriod time.Duration
	AutosavePeriod      time.Duration
	KeepalivePeriod     time.Duration
	SessionIdleTimeout  time.Duration
}

// Gateway is the subset of *db.Gateway the scheduler's autosave task
// needs, kept narrow so tests can supply a fake.
type Gateway interface {
	SavePlayers(batch []*entity.Player) error
}

// Heartbeat is invoked by the keepalive task; a shard process wires this
// to its login-link ping (§4.9), a login process leaves it nil.
type Heartbeat func(now time.Time)

// Scheduler drives the four periodic tasks from one Run call per reactor
// pass. It holds no goroutines of its own — Run is expected to be called
// from the same loop that drives reactor.Poll, so entity/session mutation
// never races with packet handling (§5).
type Scheduler struct {
	cfg Config
	em  *spatial.EntityMap
	r   *reactor.Reactor
	gw  Gateway
	sq  *db.SaveQueue
	hb  Heartbeat

	lastTick, lastVehicle, lastAutosave, lastKeepalive time.Time
}

// New constructs a Scheduler. gw/sq/hb may be nil to disable their
// respective tasks regardless of the configured period.
func New(cfg Config, em *spatial.EntityMap, r *reactor.Reactor, gw Gateway, sq *db.SaveQueue, hb Heartbeat) *Scheduler {
	return &Scheduler{cfg: cfg, em: em, r: r, gw: gw, sq: sq, hb: hb}
}

// Run checks every task's period against now and fires whichever are due.
// Callers pass the same clock reading to every task that fires, so a
// single Run call's tasks observe one consistent "now".
func (s *Scheduler) Run(now time.Time) {
	if s.due(&s.lastTick, s.cfg.TickPeriod, now) {
		s.tickEntities(now)
	}
	if s.due(&s.lastVehicle, s.cfg.VehicleExpiryPeriod, now) {
		s.expireVehicles(now)
	}
	if s.due(&s.lastAutosave, s.cfg.AutosavePeriod, now) {
		s.autosave(now)
	}
	if s.due(&s.lastKeepalive, s.cfg.KeepalivePeriod, now) {
		s.keepalive(now)
	}
}

func (s *Scheduler) due(last *time.Time, period time.Duration, now time.Time) bool {
	if period <= 0 {
		return false
	}
	if now.Sub(*last) < period {
		return false
	}
	*last = now
	return true
}

// tickEntities snapshots every tracked id and ticks each by id, so an
// entity untracked mid-batch (e.g. a disconnect handled by an earlier tick
// in the same pass) is simply skipped rather than causing a stale
// reference (§4.5: "entities are addressed by ID, not reference").
func (s *Scheduler) tickEntities(now time.Time) {
	for _, id := range s.em.GetAllIDs() {
		var e spatial.Entity
		var ok bool
		switch id.Kind {
		case spatial.KindPlayer:
			e, ok = s.em.GetPlayer(id.Num)
		case spatial.KindNPC:
			e, ok = s.em.GetNPC(id.Num)
		}
		if !ok {
			continue
		}
		if ticker, ok := e.(spatial.Ticker); ok {
			ticker.Tick(now, s.em, s.r)
		}
	}
}

// expireVehicles scans every player's vehicle slot, clearing expired
// mounts and broadcasting the dismount (§4.5).
func (s *Scheduler) expireVehicles(now time.Time) {
	for _, id := range s.em.GetPlayerIDs() {
		e, ok := s.em.GetPlayer(id)
		if !ok {
			continue
		}
		p, ok := e.(*entity.Player)
		if !ok {
			continue
		}
		it := p.Equip[entity.VehicleEquipSlot]
		if it.IsEmpty() || !it.Expired(now) {
			continue
		}
		p.Equip[entity.VehicleEquipSlot] = entity.Item{}
		if p.VehicleSpeed == 0 {
			continue
		}
		p.VehicleSpeed = 0
		w := wire.NewWriter(4)
		w.I32(id)
		payload := w.Bytes()
		s.em.ForEachAround(p.ID(), s.r, func(sess *reactor.Session) {
			sess.SendPacket(wire.PFE2CLPCVehicleOffSucc, payload)
		})
	}
}

// autosave persists every tracked player in one transaction (§4.5,
// §4.8). A failed batch is written whole to the save queue rather than
// split player-by-player, since SavePlayers is all-or-nothing. The
// players stay tracked, so the next autosave pass saves them again; this
// package does not drain the save queue.
func (s *Scheduler) autosave(now time.Time) {
	if s.gw == nil {
		return
	}
	var batch []*entity.Player
	for _, id := range s.em.GetPlayerIDs() {
		if e, ok := s.em.GetPlayer(id); ok {
			if p, ok := e.(*entity.Player); ok {
				batch = append(batch, p)
			}
		}
	}
	if len(batch) == 0 {
		return
	}
	if err := s.gw.SavePlayers(batch); err != nil && s.sq != nil {
		for _, p := range batch {
			s.sq.Enqueue(p)
		}
	}
}

// keepalive drops sessions idle past SessionIdleTimeout and invokes the
// configured heartbeat, per §5's "idle keepalive timeout enforced by a
// tick task; expiration marks should_dc = true and the next poll pass
// disconnects them."
func (s *Scheduler) keepalive(now time.Time) {
	if s.cfg.SessionIdleTimeout > 0 {
		for _, sess := range s.r.Sessions() {
			if now.Sub(sess.LastHeard) > s.cfg.SessionIdleTimeout {
				sess.ShouldDC = true
			}
		}
	}
	if s.hb != nil {
		s.hb(now)
	}
}
