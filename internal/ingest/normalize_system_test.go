package ingest

import "testing"

func validFSDJump() *FSDJumpEvent {
	return &FSDJumpEvent{
		Timestamp:           "2026-01-15T12:00:00Z",
		SystemAddress:       10477373803,
		StarSystem:          "Sol",
		StarPos:             []float64{0, 0, 0},
		BodyID:              0,
		Body:                "Sol",
		BodyType:            "Star",
		Population:          22780919531,
		SystemAllegiance:    "Federation",
		SystemEconomy:       "$economy_Refinery;",
		SystemSecondEconomy: "$economy_Service;",
		SystemGovernment:    "$government_Democracy;",
		SystemSecurity:      "$SYSTEM_SECURITY_high;",
		SystemFaction:       &SystemFactionRef{Name: "Mother Gaia", State: "Boom"},
		PowerplayState:      "Controlled",
		Powers:              []string{"Zachary Hudson"},
		Factions: []FactionInfo{
			{
				Name:         "Mother Gaia",
				Influence:    0.45,
				Happiness:    "$Faction_HappinessBand2;",
				Allegiance:   "Federation",
				FactionState: "Boom",
				Government:   "Democracy",
				ActiveStates: []FactionStateInfo{{State: "Boom"}},
				PendingStates: []FactionStateInfo{
					{State: "Expansion", Trend: 1},
				},
				RecoveringStates: []FactionStateInfo{
					{State: "PublicHoliday", Trend: -1},
				},
			},
			{
				Name:       "Sol Workers' Party",
				Influence:  0.2,
				Happiness:  "$Faction_HappinessBand2;",
				Allegiance: "Federation",
				Government: "Democracy",
			},
		},
		Conflicts: []ConflictInfo{
			{
				Status:   "active",
				WarType:  "election",
				Faction1: ConflictFactionInfo{Name: "Mother Gaia", Stake: "Galileo", WonDays: 2},
				Faction2: ConflictFactionInfo{Name: "Sol Workers' Party", Stake: "", WonDays: 1},
			},
		},
	}
}

func TestNormalizeFSDJump(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	bundle := normalizeFSDJump(validFSDJump(), nil)

	if len(bundle.Systems) != 1 || len(bundle.Bodies) != 1 {
		t.Fatalf("bundle = %d systems, %d bodies, want 1 and 1", len(bundle.Systems), len(bundle.Bodies))
	}

	system := bundle.Systems[0]

	if system.SystemAddress != 10477373803 || system.StarSystem != "Sol" {
		t.Errorf("system identity = %d/%s", system.SystemAddress, system.StarSystem)
	}

	if system.Population == nil || *system.Population != 22780919531 {
		t.Error("population should be set")
	}

	if system.FactionName == nil || *system.FactionName != "Mother Gaia" {
		t.Error("controlling faction name should be set")
	}

	if system.NumPowers == nil || *system.NumPowers != 1 {
		t.Error("NumPowers should be 1")
	}

	if system.NumFactions == nil || *system.NumFactions != 2 {
		t.Error("NumFactions should be 2")
	}

	if system.NumConflicts == nil || *system.NumConflicts != 1 {
		t.Error("NumConflicts should be 1")
	}

	if len(system.Powers) != 1 || system.Powers[0].Power != "Zachary Hudson" {
		t.Errorf("powers = %+v", system.Powers)
	}

	// The first faction carries one state of each type.
	states := system.Factions[0].States
	if len(states) != 3 {
		t.Fatalf("faction states = %d, want 3", len(states))
	}

	byType := make(map[string]SystemFactionState)
	for _, s := range states {
		byType[s.Type] = s
	}

	if byType["Active"].State != "Boom" || byType["Active"].Trend != 0 {
		t.Errorf("active state = %+v", byType["Active"])
	}

	if byType["Pending"].State != "Expansion" || byType["Pending"].Trend != 1 {
		t.Errorf("pending state = %+v", byType["Pending"])
	}

	if byType["Recovering"].State != "PublicHoliday" || byType["Recovering"].Trend != -1 {
		t.Errorf("recovering state = %+v", byType["Recovering"])
	}

	conflict := system.Conflicts[0]
	if conflict.Faction1Name != "Mother Gaia" || conflict.Faction1WonDays != 2 {
		t.Errorf("conflict faction 1 = %+v", conflict)
	}

	// The arrival body row is minimal: identity only, no nullable fields.
	body := bundle.Bodies[0]
	if body.SystemAddress != 10477373803 || body.BodyID != 0 || body.BodyName != "Sol" || body.BodyType != "Star" {
		t.Errorf("arrival body = %+v", body)
	}

	if body.DistanceFromArrivalLS != nil {
		t.Error("arrival body should carry no scan detail")
	}
}

func TestNormalizeFSDJump_UncontrolledSystem(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	event := validFSDJump()
	event.SystemFaction = nil
	event.Powers = nil
	event.Factions = nil
	event.Conflicts = nil

	bundle := normalizeFSDJump(event, nil)
	system := bundle.Systems[0]

	// Empty strings, not nulls, for the controlling faction columns.
	if system.FactionName == nil || *system.FactionName != "" {
		t.Error("uncontrolled system should store an empty faction name")
	}

	if system.FactionState == nil || *system.FactionState != "" {
		t.Error("uncontrolled system should store an empty faction state")
	}

	// The political collections are concrete even when empty, so they
	// replace whatever an earlier event stored.
	if system.Powers == nil || len(system.Powers) != 0 {
		t.Error("powers should be concrete and empty")
	}

	if system.Factions == nil || len(system.Factions) != 0 {
		t.Error("factions should be concrete and empty")
	}

	if system.Conflicts == nil || len(system.Conflicts) != 0 {
		t.Error("conflicts should be concrete and empty")
	}

	if system.NumPowers == nil || *system.NumPowers != 0 {
		t.Error("NumPowers should be 0")
	}
}

func TestNormalizeFSDJump_SquadronFactionDefault(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	squadron := true
	event := validFSDJump()
	event.Factions[0].SquadronFaction = &squadron

	bundle := normalizeFSDJump(event, nil)

	if !bundle.Systems[0].Factions[0].SquadronFaction {
		t.Error("explicit squadron flag should carry through")
	}

	// Absent flag defaults to false.
	if bundle.Systems[0].Factions[1].SquadronFaction {
		t.Error("absent squadron flag should default to false")
	}
}

func TestNormalizeCarrierJump(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	jump := validFSDJump()

	event := &CarrierJumpEvent{
		Timestamp:           jump.Timestamp,
		SystemAddress:       jump.SystemAddress,
		MarketID:            3700005376,
		StationName:         "K7Q-BQL",
		StationType:         "FleetCarrier",
		StarSystem:          jump.StarSystem,
		StarPos:             jump.StarPos,
		BodyID:              jump.BodyID,
		Body:                jump.Body,
		BodyType:            jump.BodyType,
		Population:          jump.Population,
		SystemAllegiance:    jump.SystemAllegiance,
		SystemEconomy:       jump.SystemEconomy,
		SystemSecondEconomy: jump.SystemSecondEconomy,
		SystemGovernment:    jump.SystemGovernment,
		SystemSecurity:      jump.SystemSecurity,
		SystemFaction:       jump.SystemFaction,
		PowerplayState:      jump.PowerplayState,
		Powers:              jump.Powers,
		Factions:            jump.Factions,
		Conflicts:           jump.Conflicts,
	}

	bundle := normalizeCarrierJump(event, nil)

	// Same system and arrival body as an FSD jump, plus the carrier.
	if len(bundle.Systems) != 1 || len(bundle.Bodies) != 1 || len(bundle.Stations) != 1 {
		t.Fatalf("bundle = %d systems, %d bodies, %d stations", len(bundle.Systems), len(bundle.Bodies), len(bundle.Stations))
	}

	carrier := bundle.Stations[0]

	if carrier.MarketID != 3700005376 || carrier.StationName != "K7Q-BQL" || carrier.StationType != "FleetCarrier" {
		t.Errorf("carrier = %+v", carrier)
	}

	if carrier.SystemAddress != 10477373803 {
		t.Errorf("carrier system = %d, want destination system", carrier.SystemAddress)
	}

	// The jump says nothing about the carrier's market or services, so
	// the collections stay nil and preserve stored state.
	if carrier.Economies != nil || carrier.Services != nil {
		t.Error("carrier jump should not touch station collections")
	}

	if carrier.StationGovernment != nil {
		t.Error("carrier jump should not touch station detail columns")
	}
}
