package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/originfall/core/internal/entity"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	dir := t.TempDir()
	g, err := Open(filepath.Join(dir, "player.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

// TestSaveLoadRoundTrip exercises end-to-end scenario S6: taros, a
// completed-mission bit, and a running task with partial kill counts
// must reproduce exactly across a save/load cycle (§8 property 5).
func TestSaveLoadRoundTrip(t *testing.T) {
	g := openTestGateway(t)

	accountID, err := g.CreateAccount("player1", "hash")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	playerID, err := g.CreatePlayerSlot(accountID, 0, "Testman")
	if err != nil {
		t.Fatalf("CreatePlayerSlot: %v", err)
	}

	p := entity.NewPlayer(1, playerID, accountID)
	p.SetTaros(12345)
	if err := p.CompletedMissions.Set(42, true); err != nil {
		t.Fatalf("CompletedMissions.Set: %v", err)
	}
	if err := p.Journal.StartTask(entity.Task{
		TaskID:      7,
		MissionID:   70,
		MissionType: entity.MissionTypeNormal,
		RemainingEnemies: [3]entity.EnemyCount{
			{NPCType: 100, Count: 3},
			{NPCType: 101, Count: 0},
			{NPCType: 102, Count: 0},
		},
	}); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	p.Equip[0] = entity.Item{Type: 1, ID: 55, Opt: 1}
	p.Buddies = append(p.Buddies, 999)
	p.Blocked = append(p.Blocked, 888)
	p.NanoBank[10] = entity.Nano{ID: 10, Skill: 2, Stamina: 5}
	p.QuestItemCounts[200] = 3

	if err := g.SavePlayer(p); err != nil {
		t.Fatalf("SavePlayer: %v", err)
	}

	loaded, err := g.LoadPlayer(accountID, playerID)
	if err != nil {
		t.Fatalf("LoadPlayer: %v", err)
	}

	if loaded.Taros != 12345 {
		t.Fatalf("Taros = %d, want 12345", loaded.Taros)
	}
	if !loaded.CompletedMissions.Get(42) {
		t.Fatalf("expected completed-mission bit 42 set after round trip")
	}
	task, ok := loaded.Journal.FindTask(7)
	if !ok {
		t.Fatalf("expected running task 7 to survive round trip")
	}
	if task.RemainingEnemies[0].Count != 3 {
		t.Fatalf("RemainingEnemies[0].Count = %d, want 3", task.RemainingEnemies[0].Count)
	}
	if loaded.Equip[0].ID != 55 {
		t.Fatalf("Equip[0].ID = %d, want 55", loaded.Equip[0].ID)
	}
	if len(loaded.Buddies) != 1 || loaded.Buddies[0] != 999 {
		t.Fatalf("Buddies = %v, want [999]", loaded.Buddies)
	}
	if len(loaded.Blocked) != 1 || loaded.Blocked[0] != 888 {
		t.Fatalf("Blocked = %v, want [888]", loaded.Blocked)
	}
	if n, ok := loaded.NanoBank[10]; !ok || n.Skill != 2 || n.Stamina != 5 {
		t.Fatalf("NanoBank[10] = %+v, %v", n, ok)
	}
	if loaded.QuestItemCounts[200] != 3 {
		t.Fatalf("QuestItemCounts[200] = %d, want 3", loaded.QuestItemCounts[200])
	}
}

// TestSavePlayersBatchAtomic exercises the batch-save path used by the
// autosave tick (one transaction for the whole tick's dirty set).
func TestSavePlayersBatchAtomic(t *testing.T) {
	g := openTestGateway(t)
	accountID, _ := g.CreateAccount("acct", "hash")

	var batch []*entity.Player
	for i := 0; i < 3; i++ {
		pid, err := g.CreatePlayerSlot(accountID, int32(i), "Name")
		if err != nil {
			t.Fatalf("CreatePlayerSlot: %v", err)
		}
		p := entity.NewPlayer(int32(i), pid, accountID)
		p.SetTaros(int64(i) * 100)
		batch = append(batch, p)
	}

	if err := g.SavePlayers(batch); err != nil {
		t.Fatalf("SavePlayers: %v", err)
	}

	for i, p := range batch {
		loaded, err := g.LoadPlayer(accountID, p.UID)
		if err != nil {
			t.Fatalf("LoadPlayer %d: %v", i, err)
		}
		if loaded.Taros != int64(i)*100 {
			t.Fatalf("player %d Taros = %d, want %d", i, loaded.Taros, int64(i)*100)
		}
	}
}

func TestLoadMissingPlayerReturnsNotFound(t *testing.T) {
	g := openTestGateway(t)
	if _, err := g.LoadPlayer(1, 999); err != ErrNotFound {
		t.Fatalf("LoadPlayer for missing row = %v, want ErrNotFound", err)
	}
}

func TestBanUnban(t *testing.T) {
	g := openTestGateway(t)
	accountID, err := g.CreateAccount("banme", "hash")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	until := time.Now().Add(24 * time.Hour)
	if err := g.Ban(accountID, until, "test violation"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	acct, err := g.FindAccountByID(accountID)
	if err != nil {
		t.Fatalf("FindAccountByID: %v", err)
	}
	if acct.BannedUntil == nil {
		t.Fatalf("expected BannedUntil to be set after Ban")
	}

	if err := g.Unban(accountID); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	acct, err = g.FindAccountByID(accountID)
	if err != nil {
		t.Fatalf("FindAccountByID after unban: %v", err)
	}
	if acct.BannedUntil != nil {
		t.Fatalf("expected BannedUntil cleared after Unban, got %v", acct.BannedUntil)
	}
}
