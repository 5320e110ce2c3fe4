package entity

import (
	"time"

	"github.com/originfall/core/internal/reactor"
	"github.com/originfall/core/internal/spatial"
	"github.com/originfall/core/internal/wire"
)

// NPCStats is the static, read-only template looked up by Type in the
// process-wide NPC table (internal/gametables). Table-data is "a
// read-only reference" per §3/§5; nothing in this package ever mutates
// an NPCStats.
type NPCStats struct {
	Type      int32
	MaxHP     int32
	Level     int32
	WalkSpeed float32
	RunSpeed  float32
	Team      int32
	AIType    int32
}

// AI is the state machine attached to an NPC instance (§4.6). The
// spec fixes only the interface; concrete behaviors are table-driven
// and live outside this package (a shard's handler-registration code
// picks a concrete AI implementation per AIType).
type AI interface {
	// Tick mutates npc (position via path following, target acquisition,
	// action state) and may emit NPC_MOVE packets to npc's interest set
	// via em.ForEachAround. now is the tick time.
	Tick(npc *NPC, em *spatial.EntityMap, sessions spatial.Sessions, now time.Time)
}

// AIAction is an NPC AI's current behavior state.
type AIAction int

const (
	AIIdle AIAction = iota
	AIMoving
	AIAttacking
	AIFleeing
	AIFollowing
)

// AIState is the mutable state carried between AI ticks: current action,
// target, and cooldown. It is owned by the NPC and detached/reattached
// around each tick (see NPC.Tick) so the AI's own Tick method can freely
// mutate the NPC without aliasing concerns (§9 "borrow-during-tick").
type AIState struct {
	Action    AIAction
	Target    spatial.EntityID
	HasTarget bool
	Cooldown  time.Time
}

// NPC is the non-player entity variant (§3).
type NPC struct {
	id       spatial.EntityID
	Stats    *NPCStats
	Pos      spatial.Vec3
	Rot      float32
	HP       int32
	Instance spatial.InstanceID

	Path           *Path
	LeaderID       *spatial.EntityID
	FollowerIDs    []spatial.EntityID
	GroupID        *int32
	LooseFollow    bool
	InteractingPCs []int32
	Summoned       bool

	State *AIState

	ai AI
}

// NewNPC constructs an NPC at full HP per its static template.
func NewNPC(id int32, stats *NPCStats, pos spatial.Vec3, instance spatial.InstanceID, ai AI) *NPC {
	return &NPC{
		id:       spatial.EntityID{Kind: spatial.KindNPC, Num: id},
		Stats:    stats,
		Pos:      pos,
		Instance: instance,
		HP:       stats.MaxHP,
		ai:       ai,
		State:    &AIState{},
	}
}

// ID, Position, Rotation, SetPosition, SetRotation implement spatial.Entity.
func (n *NPC) ID() spatial.EntityID       { return n.id }
func (n *NPC) Position() spatial.Vec3     { return n.Pos }
func (n *NPC) Rotation() float32          { return n.Rot }
func (n *NPC) SetPosition(v spatial.Vec3) { n.Pos = v }
func (n *NPC) SetRotation(r float32)      { n.Rot = r }

// ChunkCoords reports the chunk n currently occupies by world position;
// it does not consult the entity map (which tracks the last chunk it was
// actually placed in — callers reconcile the two via EntityMap.Update).
func (n *NPC) ChunkCoords() spatial.ChunkCoords {
	return spatial.FromPosition(n.Pos, n.Instance)
}

// SendEnter/SendExit emit NPC_NEW/NPC_EXIT to observer.
func (n *NPC) SendEnter(observer *reactor.Session) {
	w := wire.NewWriter(32)
	w.I32(n.id.Num)
	w.I32(n.Stats.Type)
	w.F32(n.Pos.X)
	w.F32(n.Pos.Y)
	w.F32(n.Pos.Z)
	w.F32(n.Rot)
	w.I32(n.HP)
	observer.SendPacket(wire.PFE2CLNPCNew, w.Bytes())
}

func (n *NPC) SendExit(observer *reactor.Session) {
	w := wire.NewWriter(4)
	w.I32(n.id.Num)
	observer.SendPacket(wire.PFE2CLNPCExit, w.Bytes())
}

// Tick implements spatial.Ticker: an NPC with no AI template is skipped
// (§4.5); otherwise the AI is detached from the NPC for the duration of
// its own tick and reattached afterward (§9 detach-run-reattach), which
// lets AI.Tick mutate n freely without n's own Tick holding a live
// reference to the same AI object across the call.
func (n *NPC) Tick(now time.Time, em *spatial.EntityMap, sessions spatial.Sessions) {
	if n.ai == nil {
		return
	}
	ai := n.ai
	n.ai = nil
	ai.Tick(n, em, sessions, now)
	n.ai = ai
}

// Cleanup implements spatial.Ticker; NPCs currently have no per-entity
// teardown beyond the entity map's own Untrack.
func (n *NPC) Cleanup(em *spatial.EntityMap, sessions spatial.Sessions) {}

// sendMove emits NPC_MOVE to every observer, choosing move style 1 if
// speed exceeds Stats.RunSpeed, else 0 (§4.6).
func (n *NPC) sendMove(em *spatial.EntityMap, sessions spatial.Sessions, speed float32) {
	style := int8(0)
	if speed > n.Stats.RunSpeed {
		style = 1
	}
	w := wire.NewWriter(24)
	w.I32(n.id.Num)
	w.F32(n.Pos.X)
	w.F32(n.Pos.Y)
	w.F32(n.Pos.Z)
	w.I8(style)
	payload := w.Bytes()
	em.ForEachAround(n.id, sessions, func(s *reactor.Session) {
		s.SendPacket(wire.PFE2CLNPCMove, payload)
	})
}

// TickMovementAlongPath advances n along its Path (if any) by dt seconds
// and, if the position changed, broadcasts NPC_MOVE (§4.6).
func (n *NPC) TickMovementAlongPath(em *spatial.EntityMap, sessions spatial.Sessions, dt float32) {
	if n.Path == nil {
		return
	}
	moved := n.Path.Tick(&n.Pos, dt)
	if moved {
		n.sendMove(em, sessions, n.Path.Speed())
	}
	if n.Path.Done() {
		n.Path = nil
	}
}
