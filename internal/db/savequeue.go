package db

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/originfall/core/internal/entity"
)

// SaveQueue is a durable holding pen for player saves that failed mid-tick
// (connection reset, disk full, a SQL constraint violation the caller
// couldn't immediately recover from). Entries survive a process restart;
// DrainBatch pops them oldest first. Nothing in the shard process calls
// DrainBatch, so entries stay queued until something drains them.
//
// Grounded on daemon/service/dtn_queue.go's bbolt-backed pending-work
// queue, generalized from a (session, chunk) key pair to a player save
// payload and swapped onto go.etcd.io/bbolt (the module's one bbolt
// dependency, already used by internal/gametables) instead of the
// unmaintained boltdb/bolt fork.
type SaveQueue struct {
	db  *bbolt.DB
	seq uint64
}

var bucketPendingSaves = []byte("pending_saves")

// OpenSaveQueue opens (creating if absent) the bbolt file at path.
func OpenSaveQueue(path string) (*SaveQueue, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("db: open save queue %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketPendingSaves)
		return e
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("db: init save queue bucket: %w", err)
	}
	return &SaveQueue{db: db}, nil
}

// Close releases the underlying bbolt handle.
func (q *SaveQueue) Close() error { return q.db.Close() }

// Enqueue durably records p so it can be retried after the caller's own
// immediate save attempt failed. Keys are monotonically increasing so
// DrainBatch replays saves in the order they were queued.
func (q *SaveQueue) Enqueue(p *entity.Player) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("db: encode queued save for player %d: %w", p.UID, err)
	}
	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPendingSaves)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := []byte(fmt.Sprintf("%020d:%d", seq, p.UID))
		return b.Put(key, payload)
	})
}

// Len reports how many saves are currently pending retry.
func (q *SaveQueue) Len() (int, error) {
	n := 0
	err := q.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketPendingSaves).Stats().KeyN
		return nil
	})
	return n, err
}

// DrainBatch pops up to n pending saves, oldest first, removing them from
// the queue. Callers should re-enqueue any player whose retried save
// fails again rather than dropping it.
func (q *SaveQueue) DrainBatch(n int) ([]*entity.Player, error) {
	var out []*entity.Player
	err := q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPendingSaves)
		c := b.Cursor()
		var toDelete [][]byte
		for k, v := c.First(); k != nil && len(out) < n; k, v = c.Next() {
			var p entity.Player
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("db: decode queued save %s: %w", k, err)
			}
			out = append(out, &p)
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// parsePendingKey is unused by the hot path but documents the key shape
// for operator tooling that inspects the bucket directly.
func parsePendingKey(key []byte) (seq uint64, uid int64, err error) {
	s := string(key)
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			seq, err = strconv.ParseUint(s[:i], 10, 64)
			if err != nil {
				return 0, 0, err
			}
			uid, err = strconv.ParseInt(s[i+1:], 10, 64)
			return seq, uid, err
		}
	}
	return 0, 0, fmt.Errorf("db: malformed pending-save key %q", s)
}
