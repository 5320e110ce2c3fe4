package gametables

import (
	"path/filepath"
	"testing"

	"github.com/originfall/core/internal/entity"
)

func TestLoadSeedAndLookup(t *testing.T) {
	dir := t.TempDir()
	tb, err := Load(filepath.Join(dir, "tables.db"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer tb.Close()

	if err := tb.Seed(
		[]*entity.NPCStats{{Type: 100, MaxHP: 500, Level: 10, RunSpeed: 300}},
		[]WarpDestination{{ID: 1, MapNum: 1, X: 0, Y: 0, Z: 0}},
		[]MissionTemplate{{ID: 1, Name: "test mission"}},
	); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	stats, ok := tb.NPCStats(100)
	if !ok || stats.MaxHP != 500 {
		t.Fatalf("NPCStats(100) = %+v, %v", stats, ok)
	}
	if _, ok := tb.NPCStats(999); ok {
		t.Fatalf("expected no stats for unseeded type")
	}

	warp, ok := tb.Warp(1)
	if !ok || warp.MapNum != 1 {
		t.Fatalf("Warp(1) = %+v, %v", warp, ok)
	}

	mission, ok := tb.Mission(1)
	if !ok || mission.Name != "test mission" {
		t.Fatalf("Mission(1) = %+v, %v", mission, ok)
	}
}

func TestReloadPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.db")

	tb, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tb.Seed([]*entity.NPCStats{{Type: 5, MaxHP: 10}}, nil, nil)
	tb.Close()

	tb2, err := Load(path)
	if err != nil {
		t.Fatalf("reload Load: %v", err)
	}
	defer tb2.Close()
	stats, ok := tb2.NPCStats(5)
	if !ok || stats.MaxHP != 10 {
		t.Fatalf("expected seeded NPC stats to survive reopen, got %+v, %v", stats, ok)
	}
}
