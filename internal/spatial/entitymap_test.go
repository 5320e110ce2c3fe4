package spatial

import (
	"testing"

	"github.com/originfall/core/internal/reactor"
)

// fakeEntity is a minimal Entity for exercising EntityMap without the
// full Player/NPC aggregate from internal/entity.
type fakeEntity struct {
	id       EntityID
	pos      Vec3
	rot      float32
	entered  []EntityID
	exited   []EntityID
}

func (f *fakeEntity) ID() EntityID          { return f.id }
func (f *fakeEntity) Position() Vec3        { return f.pos }
func (f *fakeEntity) Rotation() float32     { return f.rot }
func (f *fakeEntity) SetPosition(v Vec3)    { f.pos = v }
func (f *fakeEntity) SetRotation(r float32) { f.rot = r }
func (f *fakeEntity) SendEnter(*reactor.Session) {}
func (f *fakeEntity) SendExit(*reactor.Session)  {}

// fakeSessions never resolves real sessions; tests exercise chunk
// bookkeeping directly rather than through notification side effects.
type fakeSessions struct{}

func (fakeSessions) SessionForPlayer(int32) (*reactor.Session, bool) { return nil, false }

func TestChunkConsistency(t *testing.T) {
	m := New()
	inst := InstanceID{MapNum: 1, ChannelNum: 1}
	a := &fakeEntity{id: EntityID{Kind: KindPlayer, Num: 1}}
	if _, err := m.Track(a); err != nil {
		t.Fatalf("Track: %v", err)
	}

	c := ChunkCoords{CX: 0, CY: 0, Instance: inst}
	if err := m.Update(a.id, &c, fakeSessions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, ok := m.CurrentChunk(a.id)
	if !ok || got != c {
		t.Fatalf("CurrentChunk = %v, %v; want %v, true", got, ok, c)
	}
	set := m.InterestSet(c)
	found := false
	for _, id := range set {
		if id == a.id {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected entity in its own chunk's interest set")
	}
}

func TestUpdateIdempotent(t *testing.T) {
	m := New()
	inst := InstanceID{MapNum: 1, ChannelNum: 1}
	a := &fakeEntity{id: EntityID{Kind: KindPlayer, Num: 1}}
	m.Track(a)

	c := ChunkCoords{CX: 5, CY: 5, Instance: inst}
	if err := m.Update(a.id, &c, fakeSessions{}); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	// second call with the same chunk must be a complete no-op
	if err := m.Update(a.id, &c, fakeSessions{}); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	got, _ := m.CurrentChunk(a.id)
	if got != c {
		t.Fatalf("chunk changed on idempotent Update")
	}
}

func TestChunkCrossingInterest(t *testing.T) {
	// S2: A at (0,0), B at (2,0) -- not in range. A moves to (1,0): now
	// within the 3x3 block of both, so each newly observes the other.
	m := New()
	inst := InstanceID{MapNum: 1, ChannelNum: 1}
	a := &fakeEntity{id: EntityID{Kind: KindPlayer, Num: 1}}
	b := &fakeEntity{id: EntityID{Kind: KindPlayer, Num: 2}}
	m.Track(a)
	m.Track(b)

	cA := ChunkCoords{CX: 0, CY: 0, Instance: inst}
	cB := ChunkCoords{CX: 2, CY: 0, Instance: inst}
	m.Update(a.id, &cA, fakeSessions{})
	m.Update(b.id, &cB, fakeSessions{})

	setA := setOf(m.InterestSet(cA))
	if _, ok := setA[b.id]; ok {
		t.Fatalf("A should not observe B at chunk distance 2")
	}

	cA1 := ChunkCoords{CX: 1, CY: 0, Instance: inst}
	if err := m.Update(a.id, &cA1, fakeSessions{}); err != nil {
		t.Fatalf("Update a to (1,0): %v", err)
	}
	setA1 := setOf(m.InterestSet(cA1))
	if _, ok := setA1[b.id]; !ok {
		t.Fatalf("A should observe B once A is at chunk (1,0)")
	}

	// A moves back to (0,0): should no longer observe B.
	if err := m.Update(a.id, &cA, fakeSessions{}); err != nil {
		t.Fatalf("Update a back to (0,0): %v", err)
	}
	setABack := setOf(m.InterestSet(cA))
	if _, ok := setABack[b.id]; ok {
		t.Fatalf("A should no longer observe B back at chunk (0,0)")
	}
}

func TestUntrackRemovesFromChunk(t *testing.T) {
	m := New()
	inst := InstanceID{MapNum: 1, ChannelNum: 1}
	a := &fakeEntity{id: EntityID{Kind: KindNPC, Num: 7}}
	m.Track(a)
	c := ChunkCoords{CX: 0, CY: 0, Instance: inst}
	m.Update(a.id, &c, fakeSessions{})

	if _, err := m.Untrack(a.id); err != nil {
		t.Fatalf("Untrack: %v", err)
	}
	set := m.InterestSet(c)
	for _, id := range set {
		if id == a.id {
			t.Fatalf("untracked entity still present in chunk")
		}
	}
	if _, ok := m.CurrentChunk(a.id); ok {
		t.Fatalf("untracked entity should report no current chunk")
	}
}

func TestValidateProximity(t *testing.T) {
	m := New()
	inst := InstanceID{MapNum: 1, ChannelNum: 1}
	a := &fakeEntity{id: EntityID{Kind: KindPlayer, Num: 1}, pos: Vec3{X: 0, Y: 0, Z: 0}}
	b := &fakeEntity{id: EntityID{Kind: KindPlayer, Num: 2}, pos: Vec3{X: 100, Y: 0, Z: 0}}
	m.Track(a)
	m.Track(b)
	cA := ChunkCoords{CX: 0, CY: 0, Instance: inst}
	m.Update(a.id, &cA, fakeSessions{})
	m.Update(b.id, &cA, fakeSessions{})

	if err := m.ValidateProximity([]EntityID{a.id, b.id}, 200); err != nil {
		t.Fatalf("expected success within range: %v", err)
	}
	if err := m.ValidateProximity([]EntityID{a.id, b.id}, 50); err == nil {
		t.Fatalf("expected failure outside range")
	}

	untracked := EntityID{Kind: KindPlayer, Num: 99}
	if err := m.ValidateProximity([]EntityID{a.id, untracked}, 1000); err == nil {
		t.Fatalf("expected failure for untracked entity")
	}
}

func TestGenNextPCIDMonotonic(t *testing.T) {
	m := New()
	first := m.GenNextPCID()
	second := m.GenNextPCID()
	if second <= first {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", first, second)
	}
}

func TestChannelPopulationTracking(t *testing.T) {
	m := New()
	inst1 := InstanceID{MapNum: 1, ChannelNum: 1}
	inst2 := InstanceID{MapNum: 1, ChannelNum: 2}
	a := &fakeEntity{id: EntityID{Kind: KindPlayer, Num: 1}}
	m.Track(a)

	c1 := ChunkCoords{CX: 0, CY: 0, Instance: inst1}
	m.Update(a.id, &c1, fakeSessions{})
	if got := m.GetChannelPopulation(1); got != 1 {
		t.Fatalf("channel 1 population = %d, want 1", got)
	}

	c2 := ChunkCoords{CX: 0, CY: 0, Instance: inst2}
	m.Update(a.id, &c2, fakeSessions{})
	if got := m.GetChannelPopulation(1); got != 0 {
		t.Fatalf("channel 1 population after move = %d, want 0", got)
	}
	if got := m.GetChannelPopulation(2); got != 1 {
		t.Fatalf("channel 2 population after move = %d, want 1", got)
	}

	min := m.GetMinPopChannelNum(3)
	if min != 1 && min != 3 {
		t.Fatalf("expected channel 1 or 3 (both empty of the tracked player) to be least-loaded, got %d", min)
	}
}
