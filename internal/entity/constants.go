package entity

// Hard limits and clamp maxima from §4.7/§6. Names mirror the legacy
// protocol's own constant names so the DB schema and wire payloads stay
// legible against them.
const (
	SizeofEquipSlots   = 9
	SizeofInventorySlots = 100
	SizeofQuestInventorySlots = 40
	SizeofBankSlots    = 100

	SizeofBuddylistSlot = 50
	SizeofBlockedList   = 50

	SizeofFirstUseFlags = 129 // offsets 1..=129
	SizeofScamperFlags  = 32  // offsets 1..=32
	SizeofSkywayBits    = 256
	SizeofCompletedMissionBits = 1024

	SizeofNanoBank  = 36
	SizeofNanoSkills = 3
	EquippedNanoSlots = 3

	PCCandyMax   = 3_000_000_000
	PCLevelMax   = 36
	PCFMMax      = 2_000_000_000
	PCBatteryMax = 9999

	// VehicleEquipSlot is the equip-array index carrying a player's mounted
	// vehicle item, if any (§4.5 vehicle expiry scans "all players' vehicle
	// slots").
	VehicleEquipSlot = SizeofEquipSlots - 1

	// RangeInteract is the maximum distance (world units) two players may
	// be apart for a proximity-gated interaction such as a buddy request
	// (§8 S3) to succeed.
	RangeInteract = 15.0
)
