package loginshard

import "sync"

// PendingTable holds LoginData forwarded by the login server, keyed by
// serial_key, until the matching client connects to the shard and
// presents that key in PC_ENTER (§4.9 steps 2-4). The insert (on receipt
// of PLS2FELoginData) runs on the goroutine reading the control link and
// the pop (on PC_ENTER) runs on the shard's reactor goroutine, so every
// access is guarded by a mutex.
type PendingTable struct {
	mu      sync.Mutex
	entries map[uint64]LoginData
}

// NewPendingTable constructs an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[uint64]LoginData)}
}

// Put records ld, keyed by its own SerialKey, overwriting any previous
// entry under the same key.
func (t *PendingTable) Put(ld LoginData) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[ld.SerialKey] = ld
}

// Pop removes and returns the LoginData for serialKey, if present. A
// miss means either the key was never forwarded or PC_ENTER already
// consumed it once — both are the caller's cue to reply PC_ENTER_FAIL.
func (t *PendingTable) Pop(serialKey uint64) (LoginData, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ld, ok := t.entries[serialKey]
	if ok {
		delete(t.entries, serialKey)
	}
	return ld, ok
}

// Len reports the number of tickets awaiting a client connection.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
