package ingest

// normalizeFSDJump converts a hyperspace arrival into a full system
// snapshot plus a minimal row for the arrival body. The political
// child collections are always concrete, so an event that reports no
// powers or factions clears whatever an earlier event stored.
func normalizeFSDJump(e *FSDJumpEvent, _ *Envelope) Bundle {
	powers := make([]SystemPower, 0, len(e.Powers))
	for _, power := range e.Powers {
		powers = append(powers, SystemPower{
			SystemAddress: e.SystemAddress,
			Power:         power,
		})
	}

	factions := make([]SystemFaction, 0, len(e.Factions))

	for _, f := range e.Factions {
		states := make([]SystemFactionState, 0, len(f.ActiveStates)+len(f.PendingStates)+len(f.RecoveringStates))

		for _, s := range f.ActiveStates {
			states = append(states, SystemFactionState{
				SystemAddress: e.SystemAddress,
				FactionName:   f.Name,
				Type:          "Active",
				State:         s.State,
			})
		}

		for _, s := range f.PendingStates {
			states = append(states, SystemFactionState{
				SystemAddress: e.SystemAddress,
				FactionName:   f.Name,
				Type:          "Pending",
				State:         s.State,
				Trend:         s.Trend,
			})
		}

		for _, s := range f.RecoveringStates {
			states = append(states, SystemFactionState{
				SystemAddress: e.SystemAddress,
				FactionName:   f.Name,
				Type:          "Recovering",
				State:         s.State,
				Trend:         s.Trend,
			})
		}

		squadron := false
		if f.SquadronFaction != nil {
			squadron = *f.SquadronFaction
		}

		factions = append(factions, SystemFaction{
			SystemAddress:   e.SystemAddress,
			Name:            f.Name,
			Influence:       f.Influence,
			Happiness:       f.Happiness,
			Allegiance:      f.Allegiance,
			FactionState:    f.FactionState,
			Government:      f.Government,
			SquadronFaction: squadron,
			States:          states,
		})
	}

	conflicts := make([]SystemConflict, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		conflicts = append(conflicts, SystemConflict{
			SystemAddress:   e.SystemAddress,
			Status:          c.Status,
			WarType:         c.WarType,
			Faction1Name:    c.Faction1.Name,
			Faction1Stake:   c.Faction1.Stake,
			Faction1WonDays: c.Faction1.WonDays,
			Faction2Name:    c.Faction2.Name,
			Faction2Stake:   c.Faction2.Stake,
			Faction2WonDays: c.Faction2.WonDays,
		})
	}

	// An uncontrolled system stores empty strings, not nulls, for the
	// controlling faction and powerplay columns.
	factionName, factionState := "", ""
	if e.SystemFaction != nil {
		factionName = e.SystemFaction.Name
		factionState = e.SystemFaction.State
	}

	system := System{
		SystemAddress:   e.SystemAddress,
		StarPos:         e.StarPos,
		StarSystem:      e.StarSystem,
		PrimaryBodyID:   ptr(e.BodyID),
		PrimaryBodyType: ptr(e.BodyType),
		PrimaryBodyName: ptr(e.Body),
		Population:      ptr(e.Population),
		Allegiance:      ptr(e.SystemAllegiance),
		Economy:         ptr(e.SystemEconomy),
		SecondEconomy:   ptr(e.SystemSecondEconomy),
		FactionName:     ptr(factionName),
		FactionState:    ptr(factionState),
		Security:        ptr(e.SystemSecurity),
		PowerplayState:  ptr(e.PowerplayState),
		Government:      ptr(e.SystemGovernment),
		NumPowers:       ptr(len(powers)),
		NumFactions:     ptr(len(factions)),
		NumConflicts:    ptr(len(conflicts)),
		Powers:          powers,
		Factions:        factions,
		Conflicts:       conflicts,
	}

	body := Body{
		SystemAddress: e.SystemAddress,
		BodyID:        e.BodyID,
		BodyName:      e.Body,
		BodyType:      e.BodyType,
	}

	return Bundle{
		Systems: []System{system},
		Bodies:  []Body{body},
	}
}

// normalizeCarrierJump treats a carrier arrival as an FSD jump made by
// a station: the same system and body rows, plus the carrier itself.
// The carrier row carries no child collections, so an existing market
// or service list survives the jump.
func normalizeCarrierJump(e *CarrierJumpEvent, env *Envelope) Bundle {
	jump := FSDJumpEvent{
		Timestamp:           e.Timestamp,
		SystemAddress:       e.SystemAddress,
		StarSystem:          e.StarSystem,
		StarPos:             e.StarPos,
		BodyID:              e.BodyID,
		Body:                e.Body,
		BodyType:            e.BodyType,
		Population:          e.Population,
		SystemAllegiance:    e.SystemAllegiance,
		SystemEconomy:       e.SystemEconomy,
		SystemSecondEconomy: e.SystemSecondEconomy,
		SystemGovernment:    e.SystemGovernment,
		SystemSecurity:      e.SystemSecurity,
		SystemFaction:       e.SystemFaction,
		PowerplayState:      e.PowerplayState,
		Powers:              e.Powers,
		Factions:            e.Factions,
		Conflicts:           e.Conflicts,
	}

	bundle := normalizeFSDJump(&jump, env)

	bundle.Stations = append(bundle.Stations, Station{
		MarketID:      e.MarketID,
		SystemAddress: e.SystemAddress,
		StationName:   e.StationName,
		StationType:   e.StationType,
	})

	return bundle
}
