package ingest

import "fmt"

// normalizeDocked converts a docking confirmation into one station
// row. Economy and service collections are always concrete because the
// event always reports them; a station that lost its services has them
// cleared.
func normalizeDocked(e *DockedEvent, _ *Envelope) Bundle {
	economies := make([]StationEconomy, 0, len(e.StationEconomies))
	for _, economy := range e.StationEconomies {
		economies = append(economies, StationEconomy{
			MarketID:   e.MarketID,
			Name:       economy.Name,
			Proportion: economy.Proportion,
		})
	}

	services := make([]StationService, 0, len(e.StationServices))
	for _, service := range e.StationServices {
		services = append(services, StationService{
			MarketID: e.MarketID,
			Name:     service,
		})
	}

	var numEconomies, numServices *int

	if len(economies) > 0 {
		numEconomies = ptr(len(economies))
	}

	if len(services) > 0 {
		numServices = ptr(len(services))
	}

	factionState := e.StationFaction.FactionState
	if factionState == "" {
		factionState = "None"
	}

	allegiance := e.StationAllegiance
	if allegiance == "" {
		allegiance = "Independent"
	}

	stationState := e.StationState
	if stationState == "" {
		stationState = "None"
	}

	station := Station{
		MarketID:            e.MarketID,
		SystemAddress:       e.SystemAddress,
		StationName:         e.StationName,
		StationType:         e.StationType,
		DistFromStarLS:      ptr(e.DistFromStarLS),
		StationGovernment:   ptr(e.StationGovernment),
		StationAllegiance:   ptr(allegiance),
		StationFactionName:  ptr(e.StationFaction.Name),
		StationFactionState: ptr(factionState),
		StationEconomy:      ptr(e.StationEconomy),
		StationState:        ptr(stationState),
		NumStationEconomies: numEconomies,
		NumStationServices:  numServices,
		LandingPadsLarge:    ptr(e.LandingPads.Large),
		LandingPadsMedium:   ptr(e.LandingPads.Medium),
		LandingPadsSmall:    ptr(e.LandingPads.Small),
		Economies:           economies,
		Services:            services,
	}

	return Bundle{Stations: []Station{station}}
}

// normalizeApproachSettlement converts a settlement approach into
// either a station or a landmark. Settlements that trade carry a
// MarketID and are stations; the rest are landmarks keyed by a
// synthetic auxiliary ID so repeated approaches coalesce.
//
// Unlike Docked, the station fields here are optional on the wire, so
// absent collections stay nil and preserve whatever a docking already
// stored.
func normalizeApproachSettlement(e *ApproachSettlementEvent, _ *Envelope) Bundle {
	if e.MarketID == nil || *e.MarketID == 0 {
		landmark := Landmark{
			AuxiliaryID:   ptr(fmt.Sprintf("%d-%d-%s", e.SystemAddress, e.BodyID, e.Name)),
			SystemAddress: e.SystemAddress,
			BodyID:        e.BodyID,
			Latitude:      e.Latitude,
			Longitude:     e.Longitude,
			Name:          e.Name,
		}

		return Bundle{Landmarks: []Landmark{landmark}}
	}

	var economies []StationEconomy

	if e.StationEconomies != nil {
		economies = make([]StationEconomy, 0, len(e.StationEconomies))
		for _, economy := range e.StationEconomies {
			economies = append(economies, StationEconomy{
				MarketID:   *e.MarketID,
				Name:       economy.Name,
				Proportion: economy.Proportion,
			})
		}
	}

	var services []StationService

	if e.StationServices != nil {
		services = make([]StationService, 0, len(e.StationServices))
		for _, service := range e.StationServices {
			services = append(services, StationService{
				MarketID: *e.MarketID,
				Name:     service,
			})
		}
	}

	var numEconomies, numServices *int

	if len(economies) > 0 {
		numEconomies = ptr(len(economies))
	}

	if len(services) > 0 {
		numServices = ptr(len(services))
	}

	factionName, factionState := "None", "None"
	if e.StationFaction != nil {
		factionName = e.StationFaction.Name

		factionState = e.StationFaction.FactionState
		if factionState == "" {
			factionState = "None"
		}
	}

	government := e.StationGovernment
	if government == "" {
		government = "None"
	}

	allegiance := e.StationAllegiance
	if allegiance == "" {
		allegiance = "Independent"
	}

	economy := e.StationEconomy
	if economy == "" {
		economy = "None"
	}

	station := Station{
		MarketID:            *e.MarketID,
		SystemAddress:       e.SystemAddress,
		StationName:         e.Name,
		StationType:         "Settlement",
		BodyID:              ptr(e.BodyID),
		Latitude:            ptr(e.Latitude),
		Longitude:           ptr(e.Longitude),
		StationGovernment:   ptr(government),
		StationAllegiance:   ptr(allegiance),
		StationFactionName:  ptr(factionName),
		StationFactionState: ptr(factionState),
		StationEconomy:      ptr(economy),
		NumStationEconomies: numEconomies,
		NumStationServices:  numServices,
		Economies:           economies,
		Services:            services,
	}

	return Bundle{Stations: []Station{station}}
}
