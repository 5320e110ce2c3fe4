package entity

import "testing"

func newTestPlayer() *Player {
	return NewPlayer(1, 1001, 1)
}

func TestAddBuddyBoundedAndDuplicate(t *testing.T) {
	p := newTestPlayer()
	for i := 0; i < SizeofBuddylistSlot; i++ {
		if _, err := p.AddBuddy(int64(100 + i)); err != nil {
			t.Fatalf("AddBuddy #%d: %v", i, err)
		}
	}
	if _, err := p.AddBuddy(999); err == nil {
		t.Fatalf("expected failure once buddy list is full")
	}
	if _, err := p.AddBuddy(100); err == nil {
		t.Fatalf("expected failure adding an existing buddy twice")
	}
}

func TestRemoveBuddy(t *testing.T) {
	p := newTestPlayer()
	p.AddBuddy(42)
	if err := p.RemoveBuddy(42); err != nil {
		t.Fatalf("RemoveBuddy: %v", err)
	}
	if err := p.RemoveBuddy(42); err == nil {
		t.Fatalf("expected failure removing an absent buddy")
	}
}

func TestClampCorrectness(t *testing.T) {
	p := newTestPlayer()
	p.SetTaros(PCCandyMax + 1000)
	if p.Taros != PCCandyMax {
		t.Fatalf("Taros = %d, want clamped to %d", p.Taros, int64(PCCandyMax))
	}
	p.SetLevel(0)
	if p.Level != 1 {
		t.Fatalf("Level = %d, want clamped to 1", p.Level)
	}
	p.SetLevel(999)
	if p.Level != PCLevelMax {
		t.Fatalf("Level = %d, want clamped to %d", p.Level, PCLevelMax)
	}
	p.SetHP(-5)
	if p.HP != 0 {
		t.Fatalf("HP = %d, want clamped to 0", p.HP)
	}
}

func TestSetItemBounds(t *testing.T) {
	p := newTestPlayer()
	if err := p.SetItem(LocationMain, SizeofInventorySlots, Item{Type: 1, ID: 2}); err == nil {
		t.Fatalf("expected out-of-range slot to fail")
	}
	if err := p.SetItem(LocationMain, 0, Item{Type: 1, ID: 2}); err != nil {
		t.Fatalf("SetItem in range: %v", err)
	}
	got, err := p.GetItem(LocationMain, 0)
	if err != nil || got.ID != 2 {
		t.Fatalf("GetItem after SetItem = %+v, %v", got, err)
	}
}

func TestGetItemMutBlockedDuringTrade(t *testing.T) {
	p := newTestPlayer()
	tradeID := int64(55)
	p.TradeID = &tradeID
	if _, err := p.GetItemMut(LocationMain, 0); err == nil {
		t.Fatalf("expected GetItemMut to fail while a trade is in progress")
	}
	if err := p.SetItem(LocationMain, 0, Item{Type: 1, ID: 1}); err == nil {
		t.Fatalf("expected SetItem to fail while a trade is in progress")
	}
}

func TestFindItemsAnySearchOrder(t *testing.T) {
	p := newTestPlayer()
	p.Equip[0] = Item{Type: 9, ID: 1}
	p.Inventory[3] = Item{Type: 9, ID: 2}
	p.Bank[1] = Item{Type: 9, ID: 3}

	refs := p.FindItemsAny(func(it Item) bool { return it.Type == 9 })
	if len(refs) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(refs))
	}
	if refs[0].Location != LocationEquip || refs[1].Location != LocationMain || refs[2].Location != LocationBank {
		t.Fatalf("FindItemsAny did not search in fixed Equip/Main/Quest/Bank order: %+v", refs)
	}
}

func TestUpdateFirstUseFlagRange(t *testing.T) {
	p := newTestPlayer()
	if err := p.UpdateFirstUseFlag(1); err != nil {
		t.Fatalf("UpdateFirstUseFlag(1): %v", err)
	}
	if !p.TipFlags.Get(0) {
		t.Fatalf("expected bit 0 set for offset 1")
	}
	if err := p.UpdateFirstUseFlag(0); err == nil {
		t.Fatalf("expected failure for offset 0")
	}
	if err := p.UpdateFirstUseFlag(SizeofFirstUseFlags + 1); err == nil {
		t.Fatalf("expected failure for offset beyond range")
	}
}

func TestChangeNanoRequiresUnlock(t *testing.T) {
	p := newTestPlayer()
	if err := p.ChangeNano(0, int32Ptr(5)); err == nil {
		t.Fatalf("expected failure equipping an unowned nano")
	}
	p.UnlockNano(5)
	if err := p.ChangeNano(0, int32Ptr(5)); err != nil {
		t.Fatalf("ChangeNano after unlock: %v", err)
	}
	if err := p.ChangeNano(3, int32Ptr(5)); err == nil {
		t.Fatalf("expected failure for out-of-range slot")
	}
}

func TestWeaponBoostsSetAllOverload(t *testing.T) {
	p := newTestPlayer()
	if err := p.SetWeaponBoosts(0, 42); err != nil {
		t.Fatalf("SetWeaponBoosts(0, ...): %v", err)
	}
	for i, v := range p.WeaponBoosts {
		if v != 42 {
			t.Fatalf("WeaponBoosts[%d] = %d, want 42 after idx=0 set-all", i, v)
		}
	}
}

func int32Ptr(v int32) *int32 { return &v }
