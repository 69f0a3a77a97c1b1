package ingest

import (
	"errors"
	"fmt"
)

// ErrInvalidEvent is returned when a strictly decoded event is missing
// required fields. Lines failing validation count as failures, not
// skips.
var ErrInvalidEvent = errors.New("invalid event")

const starPosComponents = 3

type (
	// SystemFactionRef names the controlling faction of a system.
	SystemFactionRef struct {
		Name  string `json:"Name"`
		State string `json:"State"`
	}

	// FactionStateInfo is one entry of a faction state list. Trend is
	// only populated for pending and recovering states.
	FactionStateInfo struct {
		State string `json:"State"`
		Trend int    `json:"Trend"`
	}

	// FactionInfo is one minor faction as reported by a jump event.
	FactionInfo struct {
		Name            string  `json:"Name"`
		Influence       float64 `json:"Influence"`
		Happiness       string  `json:"Happiness"`
		Allegiance      string  `json:"Allegiance"`
		FactionState    string  `json:"FactionState"`
		Government      string  `json:"Government"`
		SquadronFaction *bool   `json:"SquadronFaction"`

		ActiveStates     []FactionStateInfo `json:"ActiveStates"`
		PendingStates    []FactionStateInfo `json:"PendingStates"`
		RecoveringStates []FactionStateInfo `json:"RecoveringStates"`
	}

	// ConflictFactionInfo is one side of a faction conflict.
	ConflictFactionInfo struct {
		Name    string `json:"Name"`
		Stake   string `json:"Stake"`
		WonDays int    `json:"WonDays"`
	}

	// ConflictInfo is one ongoing conflict as reported by a jump event.
	ConflictInfo struct {
		Status   string              `json:"Status"`
		WarType  string              `json:"WarType"`
		Faction1 ConflictFactionInfo `json:"Faction1"`
		Faction2 ConflictFactionInfo `json:"Faction2"`
	}

	// FSDJumpEvent is a hyperspace arrival carrying the full political
	// snapshot of the destination system.
	FSDJumpEvent struct {
		Timestamp           string    `json:"timestamp"`
		SystemAddress       int64     `json:"SystemAddress"`
		StarSystem          string    `json:"StarSystem"`
		StarPos             []float64 `json:"StarPos"`
		BodyID              int64     `json:"BodyID"`
		Body                string    `json:"Body"`
		BodyType            string    `json:"BodyType"`
		Population          int64     `json:"Population"`
		SystemAllegiance    string    `json:"SystemAllegiance"`
		SystemEconomy       string    `json:"SystemEconomy"`
		SystemSecondEconomy string    `json:"SystemSecondEconomy"`
		SystemGovernment    string    `json:"SystemGovernment"`
		SystemSecurity      string    `json:"SystemSecurity"`

		SystemFaction  *SystemFactionRef `json:"SystemFaction"`
		PowerplayState string            `json:"PowerplayState"`
		Powers         []string          `json:"Powers"`
		Factions       []FactionInfo     `json:"Factions"`
		Conflicts      []ConflictInfo    `json:"Conflicts"`
	}

	// CarrierJumpEvent is a fleet carrier hyperspace arrival. It carries
	// the same system snapshot as an FSD jump plus the carrier's own
	// station identity.
	CarrierJumpEvent struct {
		Timestamp     string `json:"timestamp"`
		SystemAddress int64  `json:"SystemAddress"`
		MarketID      int64  `json:"MarketID"`
		StationName   string `json:"StationName"`
		StationType   string `json:"StationType"`

		StarSystem          string    `json:"StarSystem"`
		StarPos             []float64 `json:"StarPos"`
		BodyID              int64     `json:"BodyID"`
		Body                string    `json:"Body"`
		BodyType            string    `json:"BodyType"`
		Population          int64     `json:"Population"`
		SystemAllegiance    string    `json:"SystemAllegiance"`
		SystemEconomy       string    `json:"SystemEconomy"`
		SystemSecondEconomy string    `json:"SystemSecondEconomy"`
		SystemGovernment    string    `json:"SystemGovernment"`
		SystemSecurity      string    `json:"SystemSecurity"`

		SystemFaction  *SystemFactionRef `json:"SystemFaction"`
		PowerplayState string            `json:"PowerplayState"`
		Powers         []string          `json:"Powers"`
		Factions       []FactionInfo     `json:"Factions"`
		Conflicts      []ConflictInfo    `json:"Conflicts"`
	}

	// BodyParentInfo is one entry of a scan's parent chain. Exactly one
	// of the members is set per entry.
	BodyParentInfo struct {
		Star   *int64 `json:"Star"`
		Planet *int64 `json:"Planet"`
		Ring   *int64 `json:"Ring"`
		Null   *int64 `json:"Null"`
	}

	// BodyCompositionInfo is the bulk composition of a planetary body.
	BodyCompositionInfo struct {
		Ice   float64 `json:"Ice"`
		Metal float64 `json:"Metal"`
		Rock  float64 `json:"Rock"`
	}

	// NamedPercent is a name with a percentage share, used for surface
	// materials and atmosphere composition.
	NamedPercent struct {
		Name    string  `json:"Name"`
		Percent float64 `json:"Percent"`
	}

	// BodyRingInfo is one ring or belt described by a scan.
	BodyRingInfo struct {
		Name      string  `json:"Name"`
		RingClass string  `json:"RingClass"`
		MassMT    float64 `json:"MassMT"`
		InnerRad  float64 `json:"InnerRad"`
		OuterRad  float64 `json:"OuterRad"`
	}

	// ScanEvent is a detailed scan of a star or planetary body.
	ScanEvent struct {
		Timestamp             string  `json:"timestamp"`
		ScanType              string  `json:"ScanType"`
		SystemAddress         int64   `json:"SystemAddress"`
		StarSystem            string  `json:"StarSystem"`
		BodyID                int64   `json:"BodyID"`
		BodyName              string  `json:"BodyName"`
		DistanceFromArrivalLS float64 `json:"DistanceFromArrivalLS"`

		MeanAnomaly        *float64 `json:"MeanAnomaly"`
		Eccentricity       *float64 `json:"Eccentricity"`
		AscendingNode      *float64 `json:"AscendingNode"`
		Periapsis          *float64 `json:"Periapsis"`
		SemiMajorAxis      *float64 `json:"SemiMajorAxis"`
		OrbitalPeriod      *float64 `json:"OrbitalPeriod"`
		OrbitalInclination *float64 `json:"OrbitalInclination"`
		TidalLock          *bool    `json:"TidalLock"`
		RotationPeriod     *float64 `json:"RotationPeriod"`
		AxialTilt          *float64 `json:"AxialTilt"`
		Radius             *float64 `json:"Radius"`
		MassEM             *float64 `json:"MassEM"`
		StellarMass        *float64 `json:"StellarMass"`
		AgeMY              *int64   `json:"Age_MY"`
		StarType           *string  `json:"StarType"`
		PlanetClass        *string  `json:"PlanetClass"`
		Subclass           *int64   `json:"Subclass"`
		AtmosphereType     *string  `json:"AtmosphereType"`
		AbsoluteMagnitude  *float64 `json:"AbsoluteMagnitude"`
		Luminosity         *string  `json:"Luminosity"`
		SurfaceTemperature *float64 `json:"SurfaceTemperature"`
		SurfaceGravity     *float64 `json:"SurfaceGravity"`
		SurfacePressure    *float64 `json:"SurfacePressure"`
		Volcanism          *string  `json:"Volcanism"`
		TerraformState     *string  `json:"TerraformState"`
		Landable           *bool    `json:"Landable"`
		Atmosphere         *string  `json:"Atmosphere"`
		ReserveLevel       *string  `json:"ReserveLevel"`

		Parents               []BodyParentInfo     `json:"Parents"`
		Composition           *BodyCompositionInfo `json:"Composition"`
		Materials             []NamedPercent       `json:"Materials"`
		AtmosphereComposition []NamedPercent       `json:"AtmosphereComposition"`
		Rings                 []BodyRingInfo       `json:"Rings"`
	}

	// ScanBaryCentreEvent describes the orbital parameters of a
	// barycentre between co-orbiting bodies. Every field is required.
	ScanBaryCentreEvent struct {
		Timestamp          string  `json:"timestamp"`
		SystemAddress      int64   `json:"SystemAddress"`
		StarSystem         string  `json:"StarSystem"`
		BodyID             int64   `json:"BodyID"`
		MeanAnomaly        float64 `json:"MeanAnomaly"`
		Eccentricity       float64 `json:"Eccentricity"`
		AscendingNode      float64 `json:"AscendingNode"`
		Periapsis          float64 `json:"Periapsis"`
		SemiMajorAxis      float64 `json:"SemiMajorAxis"`
		OrbitalPeriod      float64 `json:"OrbitalPeriod"`
		OrbitalInclination float64 `json:"OrbitalInclination"`
	}

	// StationEconomyInfo is one economy share of a station.
	StationEconomyInfo struct {
		Name       string  `json:"Name"`
		Proportion float64 `json:"Proportion"`
	}

	// StationFactionInfo names the faction controlling a station.
	StationFactionInfo struct {
		Name         string `json:"Name"`
		FactionState string `json:"FactionState"`
	}

	// LandingPadsInfo is the landing pad complement of a station.
	LandingPadsInfo struct {
		Small  int `json:"Small"`
		Medium int `json:"Medium"`
		Large  int `json:"Large"`
	}

	// DockedEvent is a docking confirmation carrying the full station
	// description.
	DockedEvent struct {
		Timestamp         string  `json:"timestamp"`
		SystemAddress     int64   `json:"SystemAddress"`
		MarketID          int64   `json:"MarketID"`
		StationName       string  `json:"StationName"`
		StationType       string  `json:"StationType"`
		DistFromStarLS    float64 `json:"DistFromStarLS"`
		StationGovernment string  `json:"StationGovernment"`
		StationAllegiance string  `json:"StationAllegiance"`
		StationEconomy    string  `json:"StationEconomy"`
		StationState      string  `json:"StationState"`

		StationEconomies []StationEconomyInfo `json:"StationEconomies"`
		StationFaction   *StationFactionInfo  `json:"StationFaction"`
		StationServices  []string             `json:"StationServices"`
		LandingPads      *LandingPadsInfo     `json:"LandingPads"`
	}

	// ApproachSettlementEvent is an approach to a planetary settlement.
	// Settlements with a MarketID become stations; the rest become
	// landmarks.
	ApproachSettlementEvent struct {
		Timestamp     string  `json:"timestamp"`
		SystemAddress int64   `json:"SystemAddress"`
		Name          string  `json:"Name"`
		MarketID      *int64  `json:"MarketID"`
		BodyID        int64   `json:"BodyID"`
		BodyName      string  `json:"BodyName"`
		Latitude      float64 `json:"Latitude"`
		Longitude     float64 `json:"Longitude"`

		StationGovernment string               `json:"StationGovernment"`
		StationAllegiance string               `json:"StationAllegiance"`
		StationEconomy    string               `json:"StationEconomy"`
		StationEconomies  []StationEconomyInfo `json:"StationEconomies"`
		StationFaction    *StationFactionInfo  `json:"StationFaction"`
		StationServices   []string             `json:"StationServices"`
	}

	// CodexEntryEvent is a codex discovery at a location on a body.
	CodexEntryEvent struct {
		Timestamp          string   `json:"timestamp"`
		EntryID            int64    `json:"EntryID"`
		SystemAddress      int64    `json:"SystemAddress"`
		BodyID             int64    `json:"BodyID"`
		BodyName           string   `json:"BodyName"`
		Latitude           float64  `json:"Latitude"`
		Longitude          float64  `json:"Longitude"`
		Name               string   `json:"Name"`
		Region             string   `json:"Region"`
		Category           string   `json:"Category"`
		SubCategory        string   `json:"SubCategory"`
		NearestDestination string   `json:"NearestDestination"`
		VoucherAmount      int64    `json:"VoucherAmount"`
		Traits             []string `json:"Traits"`
	}

	// MarketCommodityInfo is one commodity listing of a market snapshot.
	// The numeric fields default to zero when the listing omits them.
	MarketCommodityInfo struct {
		Name      string  `json:"name"`
		Category  *string `json:"category"`
		Stock     int64   `json:"stock"`
		Demand    int64   `json:"demand"`
		Supply    int64   `json:"supply"`
		BuyPrice  int64   `json:"buyPrice"`
		SellPrice int64   `json:"sellPrice"`
	}

	// MarketEvent is a commodity market snapshot.
	MarketEvent struct {
		Timestamp   string                `json:"timestamp"`
		MarketID    int64                 `json:"marketId"`
		Commodities []MarketCommodityInfo `json:"commodities"`
	}

	// OutfittingEvent is an outfitting inventory snapshot.
	OutfittingEvent struct {
		Timestamp string   `json:"timestamp"`
		MarketID  int64    `json:"marketId"`
		Modules   []string `json:"modules"`
	}

	// ShipyardEvent is a shipyard inventory snapshot.
	ShipyardEvent struct {
		Timestamp string   `json:"timestamp"`
		MarketID  int64    `json:"marketId"`
		Ships     []string `json:"ships"`
	}

	// SignalCountInfo is one signal type with its occurrence count.
	SignalCountInfo struct {
		Type  string `json:"Type"`
		Count int    `json:"Count"`
	}

	// GenusInfo is one biological genus found by a surface scan.
	GenusInfo struct {
		Genus string `json:"Genus"`
	}

	// SAASignalsFoundEvent reports the signals and genuses found by a
	// full surface scan of a body.
	SAASignalsFoundEvent struct {
		Timestamp     string            `json:"timestamp"`
		SystemAddress int64             `json:"SystemAddress"`
		BodyID        int64             `json:"BodyID"`
		BodyName      string            `json:"BodyName"`
		Signals       []SignalCountInfo `json:"Signals"`
		Genuses       []GenusInfo       `json:"Genuses"`
	}

	// FSSBodySignalsEvent reports the signals detected on a body during
	// system scanning.
	FSSBodySignalsEvent struct {
		Timestamp     string            `json:"timestamp"`
		SystemAddress int64             `json:"SystemAddress"`
		BodyID        int64             `json:"BodyID"`
		BodyName      string            `json:"BodyName"`
		Signals       []SignalCountInfo `json:"Signals"`
	}

	// FSSSignalInfo is one signal picked up by the full spectrum
	// scanner. SystemAddress may be absent on older journals, in which
	// case the wrapper's address applies.
	FSSSignalInfo struct {
		Timestamp     string `json:"timestamp"`
		SystemAddress int64  `json:"SystemAddress"`
		SignalName    string `json:"SignalName"`
		SignalType    string `json:"SignalType"`
		IsStation     bool   `json:"IsStation"`
	}

	// FSSSignalDiscoveredEvent is the batched wrapper the relay builds
	// around individual FSS signal discoveries.
	FSSSignalDiscoveredEvent struct {
		Timestamp     string          `json:"timestamp"`
		SystemAddress int64           `json:"SystemAddress"`
		Signals       []FSSSignalInfo `json:"signals"`
	}
)

// Validation checks cover the fields whose zero value cannot occur in a
// well-formed message: identifiers, names, the position vector, and the
// timestamp. Fields where an empty string is legal game data (such as
// the allegiance of an unoccupied system) are accepted as-is.

// Validate checks the required fields of an FSD jump.
func (e *FSDJumpEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.StarSystem == "" {
		return fmt.Errorf("%w: StarSystem is required", ErrInvalidEvent)
	}

	if len(e.StarPos) != starPosComponents {
		return fmt.Errorf("%w: StarPos must have %d components", ErrInvalidEvent, starPosComponents)
	}

	return nil
}

// Validate checks the required fields of a carrier jump.
func (e *CarrierJumpEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.MarketID <= 0 {
		return fmt.Errorf("%w: MarketID is required", ErrInvalidEvent)
	}

	if e.StationName == "" {
		return fmt.Errorf("%w: StationName is required", ErrInvalidEvent)
	}

	if e.StationType == "" {
		return fmt.Errorf("%w: StationType is required", ErrInvalidEvent)
	}

	if e.StarSystem == "" {
		return fmt.Errorf("%w: StarSystem is required", ErrInvalidEvent)
	}

	if len(e.StarPos) != starPosComponents {
		return fmt.Errorf("%w: StarPos must have %d components", ErrInvalidEvent, starPosComponents)
	}

	return nil
}

// Validate checks the required fields of a body scan.
func (e *ScanEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.ScanType == "" {
		return fmt.Errorf("%w: ScanType is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.StarSystem == "" {
		return fmt.Errorf("%w: StarSystem is required", ErrInvalidEvent)
	}

	if e.BodyName == "" {
		return fmt.Errorf("%w: BodyName is required", ErrInvalidEvent)
	}

	return nil
}

// Validate checks the required fields of a barycentre scan.
func (e *ScanBaryCentreEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.StarSystem == "" {
		return fmt.Errorf("%w: StarSystem is required", ErrInvalidEvent)
	}

	return nil
}

// Validate checks the required fields of a docking event.
func (e *DockedEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.MarketID <= 0 {
		return fmt.Errorf("%w: MarketID is required", ErrInvalidEvent)
	}

	if e.StationName == "" {
		return fmt.Errorf("%w: StationName is required", ErrInvalidEvent)
	}

	if e.StationType == "" {
		return fmt.Errorf("%w: StationType is required", ErrInvalidEvent)
	}

	if e.StationGovernment == "" {
		return fmt.Errorf("%w: StationGovernment is required", ErrInvalidEvent)
	}

	if e.StationEconomy == "" {
		return fmt.Errorf("%w: StationEconomy is required", ErrInvalidEvent)
	}

	if e.StationEconomies == nil {
		return fmt.Errorf("%w: StationEconomies is required", ErrInvalidEvent)
	}

	if e.StationFaction == nil {
		return fmt.Errorf("%w: StationFaction is required", ErrInvalidEvent)
	}

	if e.StationServices == nil {
		return fmt.Errorf("%w: StationServices is required", ErrInvalidEvent)
	}

	if e.LandingPads == nil {
		return fmt.Errorf("%w: LandingPads is required", ErrInvalidEvent)
	}

	return nil
}

// Validate checks the required fields of a settlement approach.
func (e *ApproachSettlementEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.Name == "" {
		return fmt.Errorf("%w: Name is required", ErrInvalidEvent)
	}

	if e.BodyName == "" {
		return fmt.Errorf("%w: BodyName is required", ErrInvalidEvent)
	}

	return nil
}

// Validate checks the required fields of a codex discovery.
func (e *CodexEntryEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.EntryID <= 0 {
		return fmt.Errorf("%w: EntryID is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.Name == "" {
		return fmt.Errorf("%w: Name is required", ErrInvalidEvent)
	}

	if e.Category == "" {
		return fmt.Errorf("%w: Category is required", ErrInvalidEvent)
	}

	if e.Traits == nil {
		return fmt.Errorf("%w: Traits is required", ErrInvalidEvent)
	}

	return nil
}

// Validate checks the required fields of a market snapshot.
func (e *MarketEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.MarketID <= 0 {
		return fmt.Errorf("%w: marketId is required", ErrInvalidEvent)
	}

	if e.Commodities == nil {
		return fmt.Errorf("%w: commodities is required", ErrInvalidEvent)
	}

	for i := range e.Commodities {
		if e.Commodities[i].Name == "" {
			return fmt.Errorf("%w: commodity name is required", ErrInvalidEvent)
		}
	}

	return nil
}

// Validate checks the required fields of an outfitting snapshot.
func (e *OutfittingEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.MarketID <= 0 {
		return fmt.Errorf("%w: marketId is required", ErrInvalidEvent)
	}

	if e.Modules == nil {
		return fmt.Errorf("%w: modules is required", ErrInvalidEvent)
	}

	return nil
}

// Validate checks the required fields of a shipyard snapshot.
func (e *ShipyardEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.MarketID <= 0 {
		return fmt.Errorf("%w: marketId is required", ErrInvalidEvent)
	}

	if e.Ships == nil {
		return fmt.Errorf("%w: ships is required", ErrInvalidEvent)
	}

	return nil
}

// Validate checks the required fields of a surface signal scan.
func (e *SAASignalsFoundEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.BodyName == "" {
		return fmt.Errorf("%w: BodyName is required", ErrInvalidEvent)
	}

	if e.Signals == nil {
		return fmt.Errorf("%w: Signals is required", ErrInvalidEvent)
	}

	for i := range e.Signals {
		if e.Signals[i].Type == "" {
			return fmt.Errorf("%w: signal Type is required", ErrInvalidEvent)
		}
	}

	return nil
}

// Validate checks the required fields of a body signals report.
func (e *FSSBodySignalsEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.BodyName == "" {
		return fmt.Errorf("%w: BodyName is required", ErrInvalidEvent)
	}

	if e.Signals == nil {
		return fmt.Errorf("%w: Signals is required", ErrInvalidEvent)
	}

	for i := range e.Signals {
		if e.Signals[i].Type == "" {
			return fmt.Errorf("%w: signal Type is required", ErrInvalidEvent)
		}
	}

	return nil
}

// Validate checks the required fields of an FSS discovery batch.
func (e *FSSSignalDiscoveredEvent) Validate() error {
	if e.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	if e.SystemAddress <= 0 {
		return fmt.Errorf("%w: SystemAddress is required", ErrInvalidEvent)
	}

	if e.Signals == nil {
		return fmt.Errorf("%w: signals is required", ErrInvalidEvent)
	}

	for i := range e.Signals {
		if e.Signals[i].SignalName == "" {
			return fmt.Errorf("%w: SignalName is required", ErrInvalidEvent)
		}
	}

	return nil
}
