package scheduler

import (
	"testing"
	"time"

	"github.com/originfall/core/internal/entity"
	"github.com/originfall/core/internal/spatial"
)

type fakeGateway struct {
	saved [][]*entity.Player
	err   error
}

func (g *fakeGateway) SavePlayers(batch []*entity.Player) error {
	g.saved = append(g.saved, batch)
	return g.err
}

func newTestPlayer(num int32) *entity.Player {
	p := entity.NewPlayer(num, int64(num), 1)
	p.SetPosition(spatial.Vec3{})
	return p
}

func TestDueGatesOnPeriod(t *testing.T) {
	s := &Scheduler{}
	var last time.Time
	now := time.Unix(100, 0)

	if !s.due(&last, time.Second, now) {
		t.Fatalf("expected first call to fire (zero last)")
	}
	if s.due(&last, time.Second, now) {
		t.Fatalf("expected immediate re-check to not fire")
	}
	later := now.Add(2 * time.Second)
	if !s.due(&last, time.Second, later) {
		t.Fatalf("expected call after period elapsed to fire")
	}
}

func TestDueDisabledByZeroPeriod(t *testing.T) {
	s := &Scheduler{}
	var last time.Time
	if s.due(&last, 0, time.Now()) {
		t.Fatalf("expected zero period to never fire")
	}
}

func TestTickEntitiesCallsTick(t *testing.T) {
	em := spatial.New()
	p := newTestPlayer(1)
	em.Track(p)
	em.Update(p.ID(), ptrChunk(spatial.FromPosition(p.Position(), spatial.InstanceID{})), nil)

	p.Inventory[0] = entity.Item{Type: 1, ID: 1}
	past := time.Now().Add(-time.Hour)
	p.Inventory[0].Expiry = &past

	s := New(Config{TickPeriod: time.Millisecond}, em, nil, nil, nil, nil)
	s.tickEntities(time.Now())

	if !p.Inventory[0].IsEmpty() {
		t.Fatalf("expected expired inventory item to be pruned by entity tick")
	}
}

func TestAutosaveBatchesAllPlayers(t *testing.T) {
	em := spatial.New()
	for i := int32(1); i <= 3; i++ {
		p := newTestPlayer(i)
		em.Track(p)
	}
	gw := &fakeGateway{}
	s := New(Config{AutosavePeriod: time.Millisecond}, em, nil, gw, nil, nil)
	s.autosave(time.Now())

	if len(gw.saved) != 1 {
		t.Fatalf("expected exactly one batch save call, got %d", len(gw.saved))
	}
	if len(gw.saved[0]) != 3 {
		t.Fatalf("expected batch of 3 players, got %d", len(gw.saved[0]))
	}
}

func ptrChunk(c spatial.ChunkCoords) *spatial.ChunkCoords { return &c }
