// Package gametables loads the process-wide, read-only NPC/mission/warp
// template caches (§5: "table-data caches are read-only after init";
// §9: "global state... treat tables as immutable after init"). The
// actual table *content* (mission text, NPC stat balancing, warp
// destinations) is explicitly out of scope (§1) — this package only
// owns the loading mechanism and the read accessor surface callers use.
//
// Grounded on daemon/manager/cas_bolt.go's embedded bbolt content store:
// open once, populate buckets, never write again outside of a reload.
package gametables

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/originfall/core/internal/entity"
)

var (
	bucketNPCStats  = []byte("npc_stats")
	bucketWarps     = []byte("warps")
	bucketMissions  = []byte("missions")
)

// WarpDestination is one entry in the warp table (out-of-scope gameplay
// data; the record shape is only here so the loader has something
// concrete to decode).
type WarpDestination struct {
	ID       int32
	MapNum   int32
	X, Y, Z  float32
}

// MissionTemplate is a stub record for the out-of-scope mission table —
// present only so the loader and tests have something to exercise.
type MissionTemplate struct {
	ID   int32
	Name string
}

// Tables is the opened handle to the bbolt-backed cache. Lookups read the
// in-memory maps Load fills; Seed is the one method that writes to the
// underlying *bbolt.DB after Load.
type Tables struct {
	db *bbolt.DB

	npcStats map[int32]*entity.NPCStats
	warps    map[int32]WarpDestination
	missions map[int32]MissionTemplate
}

// Load opens path (creating it if absent) and reads every bucket into
// memory once, so hot-path lookups (NPCStats) never touch bbolt again.
func Load(path string) (*Tables, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("gametables: open %q: %w", path, err)
	}

	t := &Tables{
		db:       db,
		npcStats: make(map[int32]*entity.NPCStats),
		warps:    make(map[int32]WarpDestination),
		missions: make(map[int32]MissionTemplate),
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketNPCStats, bucketWarps, bucketMissions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	err = db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketNPCStats).ForEach(func(k, v []byte) error {
			var stats entity.NPCStats
			if err := json.Unmarshal(v, &stats); err != nil {
				return fmt.Errorf("decode npc_stats %s: %w", k, err)
			}
			t.npcStats[stats.Type] = &stats
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Bucket(bucketWarps).ForEach(func(k, v []byte) error {
			var w WarpDestination
			if err := json.Unmarshal(v, &w); err != nil {
				return fmt.Errorf("decode warp %s: %w", k, err)
			}
			t.warps[w.ID] = w
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketMissions).ForEach(func(k, v []byte) error {
			var m MissionTemplate
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("decode mission %s: %w", k, err)
			}
			t.missions[m.ID] = m
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return t, nil
}

// Close releases the underlying bbolt handle.
func (t *Tables) Close() error { return t.db.Close() }

// NPCStats looks up the static template for npcType, by immutable
// reference (§5).
func (t *Tables) NPCStats(npcType int32) (*entity.NPCStats, bool) {
	s, ok := t.npcStats[npcType]
	return s, ok
}

// Warp looks up a warp destination by id.
func (t *Tables) Warp(id int32) (WarpDestination, bool) {
	w, ok := t.warps[id]
	return w, ok
}

// Mission looks up a mission template by id.
func (t *Tables) Mission(id int32) (MissionTemplate, bool) {
	m, ok := t.missions[id]
	return m, ok
}

// Seed writes a batch of entries directly into the backing store, for
// operator tooling and tests — never called from the hot path, and never
// after a Tables handle has been shared with request-serving code.
func (t *Tables) Seed(npcStats []*entity.NPCStats, warps []WarpDestination, missions []MissionTemplate) error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNPCStats)
		for _, s := range npcStats {
			data, err := json.Marshal(s)
			if err != nil {
				return err
			}
			if err := b.Put(keyOf(s.Type), data); err != nil {
				return err
			}
			t.npcStats[s.Type] = s
		}
		wb := tx.Bucket(bucketWarps)
		for _, w := range warps {
			data, err := json.Marshal(w)
			if err != nil {
				return err
			}
			if err := wb.Put(keyOf(w.ID), data); err != nil {
				return err
			}
			t.warps[w.ID] = w
		}
		mb := tx.Bucket(bucketMissions)
		for _, m := range missions {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := mb.Put(keyOf(m.ID), data); err != nil {
				return err
			}
			t.missions[m.ID] = m
		}
		return nil
	})
}

func keyOf(id int32) []byte {
	return []byte(fmt.Sprintf("%010d", id))
}
