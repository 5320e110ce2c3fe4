package entity

import (
	"time"

	"github.com/originfall/core/internal/bitfield"
	"github.com/originfall/core/internal/reactor"
	"github.com/originfall/core/internal/spatial"
	"github.com/originfall/core/internal/wire"
)

// Nano is a collectible in-game power a player may own and equip.
type Nano struct {
	ID      int32
	Skill   int16
	Stamina int32
}

// Style is the player's appearance record (§3: "style (appearance)").
// iConditionBitFlag is hard-coded to 0 per §9 open question (b); no
// status-effect system is implemented.
type Style struct {
	Gender    int8
	FaceStyle int8
	HairStyle int8
	HairColor int8
	SkinColor int8
	EyeColor  int8
	Height    int8
	Body      int8
}

// Player is the durable player aggregate (§3). Fields under "durable
// fields" are the player's persistent state; internal/db does not save or
// load NanoPotions, WeaponBoosts, BannedSince, BannedUntil or CreatedAt,
// and it writes updated_at without reading it back into UpdatedAt. Fields
// under "transient fields" are exported too, but are process-local only
// and are never written to the database.
type Player struct {
	id spatial.EntityID

	// --- durable fields ---
	UID       int64
	SlotNum   int32
	AccountID int64
	Style     Style
	Name      string
	Pos       spatial.Vec3
	Rot       float32
	Instance  spatial.InstanceID

	Level        int32
	HP           int32
	Taros        int64
	FusionMatter int64
	BatteryW     int32
	BatteryN     int32

	NanoPotions  [SizeofNanoSkills]int32
	WeaponBoosts [SizeofNanoSkills]int32

	Guide int32

	Equip      [SizeofEquipSlots]Item
	Inventory  [SizeofInventorySlots]Item
	QuestInv   [SizeofQuestInventorySlots]Item
	Bank       [SizeofBankSlots]Item

	QuestItemCounts map[int32]int32

	NanoBank      map[int32]Nano
	EquippedNanos [EquippedNanoSlots]int32 // nano id, 0 = empty slot
	ActiveNano    int8                     // index into EquippedNanos, -1 = none

	Journal *MissionJournal

	CompletedMissions *bitfield.Field // SizeofCompletedMissionBits bits
	TipFlags          *bitfield.Field // SizeofFirstUseFlags bits
	ScamperFlags      *bitfield.Field // SizeofScamperFlags bits
	SkywayFlags       *bitfield.Field // SizeofSkywayBits bits

	Buddies []int64
	Blocked []int64

	Perms int32 // [1, 99], lower = stronger (§6)
	Muted bool
	BannedSince *time.Time
	BannedUntil *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// --- transient fields (§3: "not persisted") ---
	ClientID       int32
	TradeID        *int64
	VehicleSpeed   float32
	PreWarpMapNum  int32
	BuddyOfferedTo *int64
}

// NewPlayer constructs a Player with every bitfield/map allocated and a
// process-local EntityID already assigned (pcID must come from
// spatial.EntityMap.GenNextPCID, per §3).
func NewPlayer(pcID int32, uid, accountID int64) *Player {
	return &Player{
		id:                spatial.EntityID{Kind: spatial.KindPlayer, Num: pcID},
		UID:               uid,
		AccountID:         accountID,
		Level:             1,
		Perms:             99,
		ActiveNano:        -1,
		QuestItemCounts:   make(map[int32]int32),
		NanoBank:          make(map[int32]Nano),
		Journal:           NewMissionJournal(),
		CompletedMissions: bitfield.New(SizeofCompletedMissionBits),
		TipFlags:          bitfield.New(SizeofFirstUseFlags),
		ScamperFlags:      bitfield.New(SizeofScamperFlags),
		SkywayFlags:       bitfield.New(SizeofSkywayBits),
	}
}

// AssignID gives p a fresh process-local entity id. LoadPlayer constructs
// p with a placeholder id of 0 since the database has no notion of one;
// the pc_enter handler calls AssignID with the value EntityMap.GenNextPCID
// returns before tracking p (§3: "id (process-local) ... loaded on
// pc_enter").
func (p *Player) AssignID(pcID int32) {
	p.id = spatial.EntityID{Kind: spatial.KindPlayer, Num: pcID}
}

// spatial.Entity implementation.
func (p *Player) ID() spatial.EntityID       { return p.id }
func (p *Player) Position() spatial.Vec3     { return p.Pos }
func (p *Player) Rotation() float32          { return p.Rot }
func (p *Player) SetPosition(v spatial.Vec3) { p.Pos = v }
func (p *Player) SetRotation(r float32)      { p.Rot = r }

func (p *Player) ChunkCoords() spatial.ChunkCoords {
	return spatial.FromPosition(p.Pos, p.Instance)
}

// SendEnter/SendExit emit PC_NEW/PC_EXIT to observer (§4.4).
func (p *Player) SendEnter(observer *reactor.Session) {
	w := wire.NewWriter(64)
	w.I32(p.id.Num)
	w.FixedString16(p.Name, 32)
	w.F32(p.Pos.X)
	w.F32(p.Pos.Y)
	w.F32(p.Pos.Z)
	w.F32(p.Rot)
	w.I32(p.Level)
	w.I8(p.Style.Gender)
	observer.SendPacket(wire.PFE2CLPCNew, w.Bytes())
}

func (p *Player) SendExit(observer *reactor.Session) {
	w := wire.NewWriter(4)
	w.I32(p.id.Num)
	observer.SendPacket(wire.PFE2CLPCExit, w.Bytes())
}

// Tick implements spatial.Ticker: players have no per-entity AI, only
// inventory-timer housekeeping (§4.5). Vehicle expiry itself is a
// separate scheduled task (internal/scheduler) that scans every player,
// rather than per-player tick logic, since it must also broadcast and
// touch the entity map — this method only prunes plain expired items.
func (p *Player) Tick(now time.Time, em *spatial.EntityMap, sessions spatial.Sessions) {
	for i := range p.Inventory {
		if p.Inventory[i].Expired(now) {
			p.Inventory[i] = Item{}
		}
	}
	for i := range p.Bank {
		if p.Bank[i].Expired(now) {
			p.Bank[i] = Item{}
		}
	}
}

// Cleanup implements spatial.Ticker; player cleanup (saving, shard
// notification) is orchestrated by the shard's disconnect handler, which
// has access to the DB gateway and login-shard link this package does
// not import.
func (p *Player) Cleanup(em *spatial.EntityMap, sessions spatial.Sessions) {}

// ClearBuddyOffer invalidates any pending buddy offer this player
// initiated. Called from the disconnect path (DESIGN.md open question
// (a) decision: invalidate on disconnect rather than leave dangling).
func (p *Player) ClearBuddyOffer() {
	p.BuddyOfferedTo = nil
}
