package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/originfall/core/internal/bitfield"
	"github.com/originfall/core/internal/entity"
	"github.com/originfall/core/internal/spatial"
)

// Gateway is the synchronous blocking persistence interface (§4.8).
// It is process-wide and single-flight: exactly one statement
// outstanding at a time (§5), enforced by the connection pool's
// MaxOpenConns(1).
type Gateway struct {
	conn *sql.DB
}

// Open connects to dsn and bootstraps the schema if needed.
func Open(dsn string) (*Gateway, error) {
	conn, err := open(dsn)
	if err != nil {
		return nil, err
	}
	return &Gateway{conn: conn}, nil
}

// Close releases the underlying connection.
func (g *Gateway) Close() error { return g.conn.Close() }

// Ping verifies the underlying connection is alive, for use by
// observability.DatabaseCheck.
func (g *Gateway) Ping(ctx context.Context) error { return g.conn.PingContext(ctx) }

// --- accounts ---

// Account is the durable account record (§6).
type Account struct {
	AccountID    int64
	Login        string
	PasswordHash string
	Selected     int32
	AccountLevel int32
	BannedSince  *time.Time
	BannedUntil  *time.Time
	BanReason    string
}

// FindAccountByLogin looks up an account by its unique login name.
func (g *Gateway) FindAccountByLogin(login string) (*Account, error) {
	row := g.conn.QueryRow(`SELECT account_id, login, password_hash, selected, account_level, banned_since, banned_until, ban_reason FROM accounts WHERE login = ?`, login)
	return scanAccount(row)
}

// FindAccountByID looks up an account by primary key.
func (g *Gateway) FindAccountByID(id int64) (*Account, error) {
	row := g.conn.QueryRow(`SELECT account_id, login, password_hash, selected, account_level, banned_since, banned_until, ban_reason FROM accounts WHERE account_id = ?`, id)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	var banReason sql.NullString
	err := row.Scan(&a.AccountID, &a.Login, &a.PasswordHash, &a.Selected, &a.AccountLevel, &a.BannedSince, &a.BannedUntil, &banReason)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: find account: %w", err)
	}
	a.BanReason = banReason.String
	return &a, nil
}

// Ban sets an account's ban window and reason.
func (g *Gateway) Ban(accountID int64, until time.Time, reason string) error {
	_, err := g.conn.Exec(`UPDATE accounts SET banned_since = ?, banned_until = ?, ban_reason = ? WHERE account_id = ?`,
		time.Now(), until, reason, accountID)
	if err != nil {
		return fmt.Errorf("db: ban account %d: %w", accountID, err)
	}
	return nil
}

// Unban clears an account's ban window.
func (g *Gateway) Unban(accountID int64) error {
	_, err := g.conn.Exec(`UPDATE accounts SET banned_since = NULL, banned_until = NULL, ban_reason = '' WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("db: unban account %d: %w", accountID, err)
	}
	return nil
}

// ErrNotFound is returned for any load that finds no matching row.
var ErrNotFound = fmt.Errorf("db: not found")

// --- player load ---

// LoadPlayer reconstructs a Player aggregate for (accountID, pcUID) from
// its row plus the six related tables (§4.8).
func (g *Gateway) LoadPlayer(accountID, pcUID int64) (*entity.Player, error) {
	row := g.conn.QueryRow(`
		SELECT player_id, slot, name, style_blob, x_coordinate, y_coordinate, z_coordinate, angle,
		       map_num, channel_num, instance_num, level, hp, fusion_matter, taros, battery_w, battery_n,
		       guide, equip_blob, inventory_blob, bank_blob, quest_item_counts_blob, equipped_nanos_blob,
		       active_nano, warp_location_flag, skyway_location_flag, first_use_flag,
		       completed_missions_flag, perms, muted
		FROM players WHERE player_id = ? AND account_id = ?`, pcUID, accountID)

	var (
		playerID                                                      int64
		slot                                                          int32
		name                                                          string
		styleBlob, equipBlob, invBlob, bankBlob, questCountBlob, nanoEqBlob []byte
		x, y, z, angle                                                float32
		mapNum, channelNum, instanceNum                                int32
		level, hp                                                      int32
		fusionMatter, taros                                            int64
		batteryW, batteryN, guide                                      int32
		activeNano                                                    int8
		warpBlob, skywayBlob, firstUseBlob, missionsBlob              []byte
		perms                                                          int32
		muted                                                          bool
	)
	err := row.Scan(&playerID, &slot, &name, &styleBlob, &x, &y, &z, &angle,
		&mapNum, &channelNum, &instanceNum, &level, &hp, &fusionMatter, &taros, &batteryW, &batteryN,
		&guide, &equipBlob, &invBlob, &bankBlob, &questCountBlob, &nanoEqBlob,
		&activeNano, &warpBlob, &skywayBlob, &firstUseBlob, &missionsBlob, &perms, &muted)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: load player %d: %w", pcUID, err)
	}

	p := entity.NewPlayer(0, playerID, accountID)
	p.SlotNum = slot
	p.Name = name
	p.Pos = spatial.Vec3{X: x, Y: y, Z: z}
	p.Rot = angle
	p.Instance = spatial.InstanceID{MapNum: mapNum, ChannelNum: channelNum, InstanceNum: instanceNum}
	p.Level = level
	p.HP = hp
	p.FusionMatter = fusionMatter
	p.Taros = taros
	p.BatteryW = batteryW
	p.BatteryN = batteryN
	p.Guide = guide
	p.ActiveNano = activeNano
	p.Perms = perms
	p.Muted = muted

	if err := json.Unmarshal(styleBlob, &p.Style); err != nil {
		return nil, fmt.Errorf("db: decode style: %w", err)
	}
	if err := decodeItems(equipBlob, p.Equip[:]); err != nil {
		return nil, fmt.Errorf("db: decode equip: %w", err)
	}
	if err := decodeItems(invBlob, p.Inventory[:]); err != nil {
		return nil, fmt.Errorf("db: decode inventory: %w", err)
	}
	if err := decodeItems(bankBlob, p.Bank[:]); err != nil {
		return nil, fmt.Errorf("db: decode bank: %w", err)
	}
	if err := json.Unmarshal(questCountBlob, &p.QuestItemCounts); err != nil {
		return nil, fmt.Errorf("db: decode quest item counts: %w", err)
	}
	if err := json.Unmarshal(nanoEqBlob, &p.EquippedNanos); err != nil {
		return nil, fmt.Errorf("db: decode equipped nanos: %w", err)
	}
	if f, err := bitfield.FromBytes(entity.SizeofScamperFlags, warpBlob); err == nil {
		p.ScamperFlags = f
	}
	if f, err := bitfield.FromBytes(entity.SizeofSkywayBits, skywayBlob); err == nil {
		p.SkywayFlags = f
	}
	if f, err := bitfield.FromBytes(entity.SizeofFirstUseFlags, firstUseBlob); err == nil {
		p.TipFlags = f
	}
	if f, err := bitfield.FromBytes(entity.SizeofCompletedMissionBits, missionsBlob); err == nil {
		p.CompletedMissions = f
	}

	if err := g.loadNanos(p); err != nil {
		return nil, err
	}
	if err := g.loadQuestItems(p); err != nil {
		return nil, err
	}
	if err := g.loadRunningQuests(p); err != nil {
		return nil, err
	}
	if err := g.loadBuddies(p); err != nil {
		return nil, err
	}
	if err := g.loadBlocks(p); err != nil {
		return nil, err
	}

	return p, nil
}

func decodeItems(blob []byte, dst []entity.Item) error {
	var items []entity.Item
	if err := json.Unmarshal(blob, &items); err != nil {
		return err
	}
	n := len(items)
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst, items[:n])
	return nil
}

func (g *Gateway) loadNanos(p *entity.Player) error {
	rows, err := g.conn.Query(`SELECT id, skill, stamina FROM nanos WHERE player_id = ?`, p.UID)
	if err != nil {
		return fmt.Errorf("db: load nanos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n entity.Nano
		if err := rows.Scan(&n.ID, &n.Skill, &n.Stamina); err != nil {
			return fmt.Errorf("db: scan nano: %w", err)
		}
		p.NanoBank[n.ID] = n
	}
	return rows.Err()
}

func (g *Gateway) loadQuestItems(p *entity.Player) error {
	rows, err := g.conn.Query(`SELECT id, count FROM quest_items WHERE player_id = ?`, p.UID)
	if err != nil {
		return fmt.Errorf("db: load quest items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int32
		var count int32
		if err := rows.Scan(&id, &count); err != nil {
			return fmt.Errorf("db: scan quest item: %w", err)
		}
		p.QuestItemCounts[id] = count
	}
	return rows.Err()
}

func (g *Gateway) loadRunningQuests(p *entity.Player) error {
	rows, err := g.conn.Query(`SELECT slot_index, task_id, mission_id, mission_type, remaining_npc_count_1, remaining_npc_count_2, remaining_npc_count_3, fail_time, completed FROM running_quests WHERE player_id = ?`, p.UID)
	if err != nil {
		return fmt.Errorf("db: load running quests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slot int
		var t entity.Task
		var c1, c2, c3 int32
		var failTime sql.NullTime
		if err := rows.Scan(&slot, &t.TaskID, &t.MissionID, &t.MissionType, &c1, &c2, &c3, &failTime, &t.Completed); err != nil {
			return fmt.Errorf("db: scan running quest: %w", err)
		}
		t.RemainingEnemies[0].Count, t.RemainingEnemies[1].Count, t.RemainingEnemies[2].Count = c1, c2, c3
		if failTime.Valid {
			t.FailTime = &failTime.Time
		}
		p.Journal.PlaceTask(slot, t)
	}
	return rows.Err()
}

func (g *Gateway) loadBuddies(p *entity.Player) error {
	rows, err := g.conn.Query(`SELECT player_id_b FROM buddies WHERE player_id_a = ?`, p.UID)
	if err != nil {
		return fmt.Errorf("db: load buddies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return fmt.Errorf("db: scan buddy: %w", err)
		}
		p.Buddies = append(p.Buddies, uid)
	}
	return rows.Err()
}

func (g *Gateway) loadBlocks(p *entity.Player) error {
	rows, err := g.conn.Query(`SELECT blocked_player_id FROM blocks WHERE player_id = ?`, p.UID)
	if err != nil {
		return fmt.Errorf("db: load blocks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return fmt.Errorf("db: scan block: %w", err)
		}
		p.Blocked = append(p.Blocked, uid)
	}
	return rows.Err()
}

// CreateAccount inserts a new account row and returns the assigned id.
func (g *Gateway) CreateAccount(login, passwordHash string) (int64, error) {
	res, err := g.conn.Exec(`INSERT INTO accounts (login, password_hash) VALUES (?, ?)`, login, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("db: create account %q: %w", login, err)
	}
	return res.LastInsertId()
}

// CreatePlayerSlot allocates a new, empty player row in slot for account,
// returning the new player_id. Callers populate the remainder via SavePlayer.
func (g *Gateway) CreatePlayerSlot(accountID int64, slot int32, name string) (int64, error) {
	empty, _ := json.Marshal([]entity.Item{})
	emptyMap, _ := json.Marshal(map[int32]int32{})
	emptyNanos, _ := json.Marshal([entity.EquippedNanoSlots]int32{})
	style, _ := json.Marshal(entity.Style{})
	zeroBits := func(n int) []byte { return bitfield.New(n).ToBytes() }

	res, err := g.conn.Exec(`
		INSERT INTO players (
			account_id, slot, name, style_blob, x_coordinate, y_coordinate, z_coordinate, angle,
			map_num, channel_num, instance_num, level, hp, fusion_matter, taros, battery_w, battery_n,
			guide, equip_blob, inventory_blob, bank_blob, quest_item_counts_blob, equipped_nanos_blob,
			active_nano, warp_location_flag, skyway_location_flag, first_use_flag,
			completed_missions_flag, perms, muted, updated_at
		) VALUES (?, ?, ?, ?, 0, 0, 0, 0, 1, 1, 0, 1, 100, 0, 0, 0, 0, 0, ?, ?, ?, ?, ?, -1, ?, ?, ?, ?, 99, 0, ?)`,
		accountID, slot, name, style,
		empty, empty, empty, emptyMap, emptyNanos,
		zeroBits(entity.SizeofScamperFlags), zeroBits(entity.SizeofSkywayBits),
		zeroBits(entity.SizeofFirstUseFlags), zeroBits(entity.SizeofCompletedMissionBits),
		time.Now())
	if err != nil {
		return 0, fmt.Errorf("db: create player slot: %w", err)
	}
	return res.LastInsertId()
}

// SavePlayer persists p in full, following the exact transactional
// sequence §4.8 mandates: scalar fields (incl. bitfields as blobs), then
// clear-and-rewrite each related table in order, then commit. Any error
// rolls the whole transaction back, leaving no partial state observable
// (§7, §8 property 5).
func (g *Gateway) SavePlayer(p *entity.Player) error {
	tx, err := g.conn.Begin()
	if err != nil {
		return fmt.Errorf("db: begin save for player %d: %w", p.UID, err)
	}
	defer tx.Rollback()

	if err := saveScalarFields(tx, p); err != nil {
		return err
	}
	if err := saveNanos(tx, p); err != nil {
		return err
	}
	if err := saveItems(tx, p); err != nil {
		return err
	}
	if err := saveQuestItems(tx, p); err != nil {
		return err
	}
	if err := saveRunningQuests(tx, p); err != nil {
		return err
	}
	if err := saveBuddies(tx, p); err != nil {
		return err
	}
	if err := saveBlocks(tx, p); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit save for player %d: %w", p.UID, err)
	}
	return nil
}

// SavePlayers saves every player in batch within a single transaction, so
// a tick's worth of autosaves either all land or none do.
func (g *Gateway) SavePlayers(batch []*entity.Player) error {
	tx, err := g.conn.Begin()
	if err != nil {
		return fmt.Errorf("db: begin batch save: %w", err)
	}
	defer tx.Rollback()

	for _, p := range batch {
		if err := saveScalarFields(tx, p); err != nil {
			return err
		}
		if err := saveNanos(tx, p); err != nil {
			return err
		}
		if err := saveItems(tx, p); err != nil {
			return err
		}
		if err := saveQuestItems(tx, p); err != nil {
			return err
		}
		if err := saveRunningQuests(tx, p); err != nil {
			return err
		}
		if err := saveBuddies(tx, p); err != nil {
			return err
		}
		if err := saveBlocks(tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit batch save of %d players: %w", len(batch), err)
	}
	return nil
}

func saveScalarFields(tx *sql.Tx, p *entity.Player) error {
	style, err := json.Marshal(p.Style)
	if err != nil {
		return fmt.Errorf("db: encode style: %w", err)
	}
	equip, err := json.Marshal(p.Equip[:])
	if err != nil {
		return fmt.Errorf("db: encode equip: %w", err)
	}
	inv, err := json.Marshal(p.Inventory[:])
	if err != nil {
		return fmt.Errorf("db: encode inventory: %w", err)
	}
	bank, err := json.Marshal(p.Bank[:])
	if err != nil {
		return fmt.Errorf("db: encode bank: %w", err)
	}
	questCounts, err := json.Marshal(p.QuestItemCounts)
	if err != nil {
		return fmt.Errorf("db: encode quest item counts: %w", err)
	}
	nanoEq, err := json.Marshal(p.EquippedNanos)
	if err != nil {
		return fmt.Errorf("db: encode equipped nanos: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE players SET
			slot = ?, name = ?, style_blob = ?, x_coordinate = ?, y_coordinate = ?, z_coordinate = ?, angle = ?,
			map_num = ?, channel_num = ?, instance_num = ?, level = ?, hp = ?, fusion_matter = ?, taros = ?,
			battery_w = ?, battery_n = ?, guide = ?, equip_blob = ?, inventory_blob = ?, bank_blob = ?,
			quest_item_counts_blob = ?, equipped_nanos_blob = ?, active_nano = ?,
			warp_location_flag = ?, skyway_location_flag = ?, first_use_flag = ?, completed_missions_flag = ?,
			perms = ?, muted = ?, updated_at = ?
		WHERE player_id = ?`,
		p.SlotNum, p.Name, style, p.Pos.X, p.Pos.Y, p.Pos.Z, p.Rot,
		p.Instance.MapNum, p.Instance.ChannelNum, p.Instance.InstanceNum, p.Level, p.HP, p.FusionMatter, p.Taros,
		p.BatteryW, p.BatteryN, p.Guide, equip, inv, bank,
		questCounts, nanoEq, p.ActiveNano,
		p.ScamperFlags.ToBytes(), p.SkywayFlags.ToBytes(), p.TipFlags.ToBytes(), p.CompletedMissions.ToBytes(),
		p.Perms, p.Muted, time.Now(),
		p.UID)
	if err != nil {
		return fmt.Errorf("db: save scalar fields for player %d: %w", p.UID, err)
	}
	return nil
}

func saveNanos(tx *sql.Tx, p *entity.Player) error {
	if _, err := tx.Exec(`DELETE FROM nanos WHERE player_id = ?`, p.UID); err != nil {
		return fmt.Errorf("db: clear nanos for player %d: %w", p.UID, err)
	}
	for id, n := range p.NanoBank {
		if _, err := tx.Exec(`INSERT INTO nanos (player_id, id, skill, stamina) VALUES (?, ?, ?, ?)`,
			p.UID, id, n.Skill, n.Stamina); err != nil {
			return fmt.Errorf("db: save nano %d for player %d: %w", id, p.UID, err)
		}
	}
	return nil
}

func saveItems(tx *sql.Tx, p *entity.Player) error {
	if _, err := tx.Exec(`DELETE FROM items WHERE player_id = ?`, p.UID); err != nil {
		return fmt.Errorf("db: clear items for player %d: %w", p.UID, err)
	}
	locs := []struct {
		loc   entity.InventoryLocation
		items []entity.Item
	}{
		{entity.LocationEquip, p.Equip[:]},
		{entity.LocationMain, p.Inventory[:]},
		{entity.LocationQuest, p.QuestInv[:]},
		{entity.LocationBank, p.Bank[:]},
	}
	for _, l := range locs {
		for slot, it := range l.items {
			if it.IsEmpty() {
				continue
			}
			if _, err := tx.Exec(`INSERT INTO items (player_id, location, slot, id, type, opt, time_limit) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.UID, int(l.loc), slot, it.ID, it.Type, it.Opt, it.Expiry); err != nil {
				return fmt.Errorf("db: save item (loc=%d slot=%d) for player %d: %w", l.loc, slot, p.UID, err)
			}
		}
	}
	return nil
}

func saveQuestItems(tx *sql.Tx, p *entity.Player) error {
	if _, err := tx.Exec(`DELETE FROM quest_items WHERE player_id = ?`, p.UID); err != nil {
		return fmt.Errorf("db: clear quest items for player %d: %w", p.UID, err)
	}
	for id, count := range p.QuestItemCounts {
		if count == 0 {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO quest_items (player_id, id, count) VALUES (?, ?, ?)`, p.UID, id, count); err != nil {
			return fmt.Errorf("db: save quest item %d for player %d: %w", id, p.UID, err)
		}
	}
	return nil
}

func saveRunningQuests(tx *sql.Tx, p *entity.Player) error {
	if _, err := tx.Exec(`DELETE FROM running_quests WHERE player_id = ?`, p.UID); err != nil {
		return fmt.Errorf("db: clear running quests for player %d: %w", p.UID, err)
	}
	for slot, t := range p.Journal.SlottedTasks() {
		if t == nil {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO running_quests (player_id, slot_index, task_id, mission_id, mission_type, remaining_npc_count_1, remaining_npc_count_2, remaining_npc_count_3, fail_time, completed) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.UID, slot, t.TaskID, t.MissionID, t.MissionType, t.RemainingEnemies[0].Count, t.RemainingEnemies[1].Count, t.RemainingEnemies[2].Count, t.FailTime, t.Completed); err != nil {
			return fmt.Errorf("db: save running quest %d for player %d: %w", t.TaskID, p.UID, err)
		}
	}
	return nil
}

func saveBuddies(tx *sql.Tx, p *entity.Player) error {
	if _, err := tx.Exec(`DELETE FROM buddies WHERE player_id_a = ?`, p.UID); err != nil {
		return fmt.Errorf("db: clear buddies for player %d: %w", p.UID, err)
	}
	for _, uid := range p.Buddies {
		if _, err := tx.Exec(`INSERT INTO buddies (player_id_a, player_id_b) VALUES (?, ?)`, p.UID, uid); err != nil {
			return fmt.Errorf("db: save buddy %d for player %d: %w", uid, p.UID, err)
		}
	}
	return nil
}

func saveBlocks(tx *sql.Tx, p *entity.Player) error {
	if _, err := tx.Exec(`DELETE FROM blocks WHERE player_id = ?`, p.UID); err != nil {
		return fmt.Errorf("db: clear blocks for player %d: %w", p.UID, err)
	}
	for _, uid := range p.Blocked {
		if _, err := tx.Exec(`INSERT INTO blocks (player_id, blocked_player_id) VALUES (?, ?)`, p.UID, uid); err != nil {
			return fmt.Errorf("db: save block %d for player %d: %w", uid, p.UID, err)
		}
	}
	return nil
}
