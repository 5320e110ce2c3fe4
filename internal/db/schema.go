// Package db implements the transactional player/account persistence
// gateway (§4.8) against a SQL store, plus a durable retry queue for
// saves that fail mid-tick.
//
// The connection-pool setup and schema-bootstrap idiom is grounded
// directly on daemon/manager/persistence.go's PersistentStore: a single
// *sql.DB opened once, a meta/schema_version table checked on connect,
// and explicit tx.Begin/defer tx.Rollback()/tx.Commit() transactions —
// generalized here from one session+bitmap pair to the eight related
// tables the player aggregate spans (§6's persisted schema).
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	account_id    INTEGER PRIMARY KEY AUTOINCREMENT,
	login         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	selected      INTEGER NOT NULL DEFAULT 0,
	account_level INTEGER NOT NULL DEFAULT 99,
	banned_since  TIMESTAMP,
	banned_until  TIMESTAMP,
	ban_reason    TEXT
);

CREATE TABLE IF NOT EXISTS players (
	player_id       INTEGER PRIMARY KEY,
	account_id      INTEGER NOT NULL REFERENCES accounts(account_id),
	slot            INTEGER NOT NULL,
	name            TEXT NOT NULL,
	style_blob      BLOB NOT NULL,
	x_coordinate    REAL NOT NULL,
	y_coordinate    REAL NOT NULL,
	z_coordinate    REAL NOT NULL,
	angle           REAL NOT NULL,
	map_num         INTEGER NOT NULL,
	channel_num     INTEGER NOT NULL,
	instance_num    INTEGER NOT NULL DEFAULT 0,
	level           INTEGER NOT NULL,
	hp              INTEGER NOT NULL,
	fusion_matter   INTEGER NOT NULL,
	taros           INTEGER NOT NULL,
	battery_w       INTEGER NOT NULL,
	battery_n       INTEGER NOT NULL,
	guide           INTEGER NOT NULL DEFAULT 0,
	equip_blob      BLOB NOT NULL,
	inventory_blob  BLOB NOT NULL,
	bank_blob       BLOB NOT NULL,
	quest_item_counts_blob BLOB NOT NULL,
	equipped_nanos_blob BLOB NOT NULL,
	active_nano     INTEGER NOT NULL DEFAULT -1,
	warp_location_flag  BLOB NOT NULL,
	skyway_location_flag BLOB NOT NULL,
	first_use_flag  BLOB NOT NULL,
	completed_missions_flag BLOB NOT NULL,
	tutorial_flag   INTEGER NOT NULL DEFAULT 0,
	payzone_flag    INTEGER NOT NULL DEFAULT 0,
	perms           INTEGER NOT NULL DEFAULT 99,
	muted           INTEGER NOT NULL DEFAULT 0,
	updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS nanos (
	player_id INTEGER NOT NULL REFERENCES players(player_id),
	id        INTEGER NOT NULL,
	skill     INTEGER NOT NULL,
	stamina   INTEGER NOT NULL,
	PRIMARY KEY (player_id, id)
);

CREATE TABLE IF NOT EXISTS items (
	player_id INTEGER NOT NULL REFERENCES players(player_id),
	location  INTEGER NOT NULL,
	slot      INTEGER NOT NULL,
	id        INTEGER NOT NULL,
	type      INTEGER NOT NULL,
	opt       INTEGER NOT NULL,
	time_limit TIMESTAMP,
	PRIMARY KEY (player_id, location, slot)
);

CREATE TABLE IF NOT EXISTS quest_items (
	player_id INTEGER NOT NULL REFERENCES players(player_id),
	id        INTEGER NOT NULL,
	count     INTEGER NOT NULL,
	PRIMARY KEY (player_id, id)
);

CREATE TABLE IF NOT EXISTS running_quests (
	player_id INTEGER NOT NULL REFERENCES players(player_id),
	slot_index INTEGER NOT NULL,
	task_id   INTEGER NOT NULL,
	mission_id INTEGER NOT NULL,
	mission_type INTEGER NOT NULL,
	remaining_npc_count_1 INTEGER NOT NULL,
	remaining_npc_count_2 INTEGER NOT NULL,
	remaining_npc_count_3 INTEGER NOT NULL,
	fail_time TIMESTAMP,
	completed INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, slot_index)
);

CREATE TABLE IF NOT EXISTS buddies (
	player_id_a INTEGER NOT NULL,
	player_id_b INTEGER NOT NULL,
	PRIMARY KEY (player_id_a, player_id_b)
);

CREATE TABLE IF NOT EXISTS blocks (
	player_id         INTEGER NOT NULL,
	blocked_player_id INTEGER NOT NULL,
	PRIMARY KEY (player_id, blocked_player_id)
);
`

// open wires a *sql.DB with the same pool settings
// daemon/manager/persistence.go uses, and bootstraps the schema.
func open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %q: %w", dsn, err)
	}
	conn.SetMaxOpenConns(1) // §5: "process-wide single-flight (one outstanding statement at a time)"
	conn.SetMaxIdleConns(1)

	if err := bootstrapSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// bootstrapSchema runs the create-tables DDL on every open (each statement
// is CREATE ... IF NOT EXISTS) and, when meta has no db_version row,
// records schemaVersion under that key. No protocol version is recorded.
// A failure here is fatal per §7 ("the DB's migration failure...
// terminates the process after logging") — callers should treat a
// non-nil error from Open as unrecoverable at startup.
func bootstrapSchema(conn *sql.DB) error {
	if _, err := conn.Exec(schemaDDL); err != nil {
		return fmt.Errorf("db: apply schema: %w", err)
	}

	var have string
	err := conn.QueryRow(`SELECT value FROM meta WHERE key = 'db_version'`).Scan(&have)
	switch {
	case err == sql.ErrNoRows:
		_, err = conn.Exec(`INSERT INTO meta (key, value) VALUES ('db_version', ?)`, fmt.Sprintf("%d", schemaVersion))
		if err != nil {
			return fmt.Errorf("db: record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("db: query schema version: %w", err)
	}
	return nil
}
