package entity

import "fmt"

// AddBuddy appends uid to the buddy list, failing if already present or
// the list is full (§4.7).
func (p *Player) AddBuddy(uid int64) (slot int, err error) {
	for i, existing := range p.Buddies {
		if existing == uid {
			return i, fmt.Errorf("entity: %d is already a buddy", uid)
		}
	}
	if len(p.Buddies) >= SizeofBuddylistSlot {
		return 0, fmt.Errorf("entity: buddy list full")
	}
	p.Buddies = append(p.Buddies, uid)
	return len(p.Buddies) - 1, nil
}

// RemoveBuddy drops uid from the buddy list, if present.
func (p *Player) RemoveBuddy(uid int64) error {
	for i, existing := range p.Buddies {
		if existing == uid {
			p.Buddies = append(p.Buddies[:i], p.Buddies[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("entity: %d is not a buddy", uid)
}

// UpdateFirstUseFlag sets the tip-flag bit for offset (1..=129), §4.7.
func (p *Player) UpdateFirstUseFlag(offset int) error {
	if offset < 1 || offset > SizeofFirstUseFlags {
		return fmt.Errorf("entity: first-use flag offset %d out of range [1,%d]", offset, SizeofFirstUseFlags)
	}
	return p.TipFlags.Set(offset-1, true)
}

// UpdateScamperFlags unlocks scamper destination offset (1..=32), §4.7.
func (p *Player) UpdateScamperFlags(offset int) error {
	if offset < 1 || offset > SizeofScamperFlags {
		return fmt.Errorf("entity: scamper flag offset %d out of range [1,%d]", offset, SizeofScamperFlags)
	}
	return p.ScamperFlags.Set(offset-1, true)
}

// UpdateSkywayFlags unlocks skyway destination offset (1..=SizeofSkywayBits), §4.7.
func (p *Player) UpdateSkywayFlags(offset int) error {
	if offset < 1 || offset > SizeofSkywayBits {
		return fmt.Errorf("entity: skyway flag offset %d out of range [1,%d]", offset, SizeofSkywayBits)
	}
	return p.SkywayFlags.Set(offset-1, true)
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetTaros clamps and stores x (§4.7/§8 invariant 6).
func (p *Player) SetTaros(x int64) { p.Taros = clampInt64(x, 0, PCCandyMax) }

// SetFusionMatter clamps and stores x.
func (p *Player) SetFusionMatter(x int64) { p.FusionMatter = clampInt64(x, 0, PCFMMax) }

// SetHP clamps x to >= 0.
func (p *Player) SetHP(x int32) { p.HP = clampInt32(x, 0, 1<<30) }

// SetLevel clamps x to [1, PCLevelMax].
func (p *Player) SetLevel(x int32) { p.Level = clampInt32(x, 1, PCLevelMax) }

// SetWeaponBoosts sets rate index idx (or all if idx==0, per §9 open
// question (c)'s preserved overload) to x, clamped to a battery-sized range.
func (p *Player) SetWeaponBoosts(idx int, x int32) error {
	x = clampInt32(x, 0, PCBatteryMax)
	if idx == 0 {
		for i := range p.WeaponBoosts {
			p.WeaponBoosts[i] = x
		}
		return nil
	}
	if idx < 1 || idx > len(p.WeaponBoosts) {
		return fmt.Errorf("entity: weapon boost index %d out of range", idx)
	}
	p.WeaponBoosts[idx-1] = x
	return nil
}

// SetNanoPotions mirrors SetWeaponBoosts's idx==0 "set all" overload.
func (p *Player) SetNanoPotions(idx int, x int32) error {
	x = clampInt32(x, 0, PCBatteryMax)
	if idx == 0 {
		for i := range p.NanoPotions {
			p.NanoPotions[i] = x
		}
		return nil
	}
	if idx < 1 || idx > len(p.NanoPotions) {
		return fmt.Errorf("entity: nano potion index %d out of range", idx)
	}
	p.NanoPotions[idx-1] = x
	return nil
}

// ChangeNano equips nanoID (or clears the slot if nanoID is nil) into
// slot (§4.7: slot in [0,3)).
func (p *Player) ChangeNano(slot int, nanoID *int32) error {
	if slot < 0 || slot >= EquippedNanoSlots {
		return fmt.Errorf("entity: nano slot %d out of range [0,%d)", slot, EquippedNanoSlots)
	}
	if nanoID == nil {
		p.EquippedNanos[slot] = 0
		return nil
	}
	if _, owned := p.NanoBank[*nanoID]; !owned {
		return fmt.Errorf("entity: nano %d not unlocked", *nanoID)
	}
	p.EquippedNanos[slot] = *nanoID
	return nil
}

// UnlockNano adds id to the nano bank if not already owned.
func (p *Player) UnlockNano(id int32) error {
	if _, owned := p.NanoBank[id]; owned {
		return fmt.Errorf("entity: nano %d already unlocked", id)
	}
	if len(p.NanoBank) >= SizeofNanoBank {
		return fmt.Errorf("entity: nano bank full")
	}
	p.NanoBank[id] = Nano{ID: id}
	return nil
}

// TuneNano sets the skill index for an owned nano (§4.7: skill in
// [0, SizeofNanoSkills)).
func (p *Player) TuneNano(id int32, skillIdx *int) error {
	nano, owned := p.NanoBank[id]
	if !owned {
		return fmt.Errorf("entity: nano %d not unlocked", id)
	}
	if skillIdx == nil {
		nano.Skill = -1
		p.NanoBank[id] = nano
		return nil
	}
	if *skillIdx < 0 || *skillIdx >= SizeofNanoSkills {
		return fmt.Errorf("entity: nano skill index %d out of range [0,%d)", *skillIdx, SizeofNanoSkills)
	}
	nano.Skill = int16(*skillIdx)
	p.NanoBank[id] = nano
	return nil
}

// ItemRef locates one item slot across the player's inventories.
type ItemRef struct {
	Location InventoryLocation
	Slot     int
}

func (p *Player) inventorySlice(loc InventoryLocation) []Item {
	switch loc {
	case LocationEquip:
		return p.Equip[:]
	case LocationMain:
		return p.Inventory[:]
	case LocationQuest:
		return p.QuestInv[:]
	case LocationBank:
		return p.Bank[:]
	default:
		return nil
	}
}

// FindItemsAny searches all four inventories, in the fixed order
// Equip/Main/Quest/Bank, returning every (location, slot) whose item
// satisfies pred (§4.7).
func (p *Player) FindItemsAny(pred func(Item) bool) []ItemRef {
	var out []ItemRef
	for _, loc := range inventoryOrder {
		slots := p.inventorySlice(loc)
		for i, it := range slots {
			if pred(it) {
				out = append(out, ItemRef{Location: loc, Slot: i})
			}
		}
	}
	return out
}

// GetItem reads slot in the given location, bounds-checked by that
// location's capacity.
func (p *Player) GetItem(loc InventoryLocation, slot int) (Item, error) {
	slots := p.inventorySlice(loc)
	if slots == nil || slot < 0 || slot >= len(slots) {
		return Item{}, fmt.Errorf("entity: slot %d out of range for location %d", slot, loc)
	}
	return slots[slot], nil
}

// GetItemMut is GetItem's mutation gate: it fails while a trade is in
// progress, to prevent live mutation of tradeable items (§4.7). The
// caller still receives the current value; mutation happens via SetItem,
// which performs the same trade-in-progress check.
func (p *Player) GetItemMut(loc InventoryLocation, slot int) (Item, error) {
	if p.TradeID != nil {
		return Item{}, fmt.Errorf("entity: cannot mutate items while a trade is in progress")
	}
	return p.GetItem(loc, slot)
}

// SetItem writes it into slot, bounds-checked and trade-gated the same
// way as GetItemMut.
func (p *Player) SetItem(loc InventoryLocation, slot int, it Item) error {
	if p.TradeID != nil {
		return fmt.Errorf("entity: cannot mutate items while a trade is in progress")
	}
	slots := p.inventorySlice(loc)
	if slots == nil || slot < 0 || slot >= len(slots) {
		return fmt.Errorf("entity: slot %d out of range for location %d", slot, loc)
	}
	slots[slot] = it
	return nil
}
