// Package ingest provides the domain models and pipeline for replaying
// EDDN daily journal archives into the galaxy database.
//
// An archive line carries one EDDN envelope. The pipeline decodes the
// envelope, normalizes it into entity rows (systems, bodies, stations,
// landmarks, markets, shipyards, outfittings, signals), and hands the
// resulting Bundle to an EventWriter for freshness-gated persistence.
package ingest

import (
	"github.com/starlog-io/starlog/internal/canonical"
)

// Entity kind names used for serialization locks and cache keys.
// These match the model_name column of the ingestion_lock table, so
// they must stay stable across writers.
const (
	KindSystem     = "System"
	KindBody       = "Body"
	KindStation    = "Station"
	KindLandmark   = "Landmark"
	KindMarket     = "Market"
	KindShipyard   = "Shipyard"
	KindOutfitting = "Outfitting"
	KindSignal     = "Signal"
)

type (
	// System is one row of the system table plus its child collections.
	//
	// Pointer fields map to nullable columns: a nil pointer leaves the
	// stored value untouched on update, a non-nil pointer overwrites it.
	// Child slices follow the same convention at the collection level:
	// nil means "event said nothing, keep what is stored", non-nil
	// (including empty) means "replace the stored collection".
	System struct {
		SystemAddress int64
		StarPos       []float64
		StarSystem    string

		PrimaryBodyID   *int64
		PrimaryBodyType *string
		PrimaryBodyName *string
		Population      *int64
		Allegiance      *string
		Economy         *string
		SecondEconomy   *string
		FactionName     *string
		FactionState    *string
		Security        *string
		PowerplayState  *string
		Government      *string
		NumPowers       *int
		NumFactions     *int
		NumConflicts    *int

		Powers    []SystemPower
		Factions  []SystemFaction
		Conflicts []SystemConflict
	}

	// SystemPower is one controlling or contesting power in a system.
	SystemPower struct {
		SystemAddress int64
		Power         string
	}

	// SystemFaction is one minor faction present in a system.
	SystemFaction struct {
		SystemAddress   int64
		Name            string
		Influence       float64
		Happiness       string
		Allegiance      string
		FactionState    string
		Government      string
		SquadronFaction bool

		States []SystemFactionState
	}

	// SystemFactionState is one active, pending, or recovering state of
	// a faction. Type is "Active", "Pending", or "Recovering".
	SystemFactionState struct {
		SystemAddress int64
		FactionName   string
		Type          string
		State         string
		Trend         int
	}

	// SystemConflict is one ongoing conflict between two factions.
	SystemConflict struct {
		SystemAddress   int64
		Status          string
		WarType         string
		Faction1Name    string
		Faction1Stake   string
		Faction1WonDays int
		Faction2Name    string
		Faction2Stake   string
		Faction2WonDays int
	}

	// Body is one row of the body table plus its child collections.
	// Keyed by (SystemAddress, BodyID).
	Body struct {
		SystemAddress int64
		BodyID        int64
		BodyName      string
		BodyType      string

		DistanceFromArrivalLS    *float64
		MeanAnomaly              *float64
		Eccentricity             *float64
		AscendingNode            *float64
		Periapsis                *float64
		SemiMajorAxis            *float64
		OrbitalPeriod            *float64
		OrbitalInclination       *float64
		TidalLock                *bool
		RotationPeriod           *float64
		AxialTilt                *float64
		Radius                   *float64
		MassEM                   *float64
		StellarMass              *float64
		AgeMY                    *int64
		StarType                 *string
		PlanetClass              *string
		Subclass                 *int64
		Parent                   *int64
		AtmosphereType           *string
		AbsoluteMagnitude        *float64
		Luminosity               *string
		SurfaceTemperature       *float64
		SurfaceGravity           *float64
		SurfacePressure          *float64
		Volcanism                *string
		TerraformState           *string
		Landable                 *bool
		Atmosphere               *string
		ReserveLevel             *string
		CompositionIce           *float64
		CompositionMetal         *float64
		CompositionRock          *float64
		NumMaterials             *int
		NumAtmosphereComposition *int
		NumRings                 *int

		Materials             []BodyMaterial
		AtmosphereComposition []BodyAtmosphereComposition
		Rings                 []BodyRing
	}

	// BodyMaterial is one surface material entry of a landable body.
	BodyMaterial struct {
		SystemAddress int64
		BodyID        int64
		Name          string
		Percent       float64
	}

	// BodyAtmosphereComposition is one atmosphere component of a body.
	BodyAtmosphereComposition struct {
		SystemAddress int64
		BodyID        int64
		Name          string
		Percent       float64
	}

	// BodyRing is one planetary ring or asteroid belt around a body.
	BodyRing struct {
		SystemAddress int64
		BodyID        int64
		Name          string
		RingClass     string
		MassMT        float64
		InnerRad      float64
		OuterRad      float64
	}

	// Station is one row of the station table plus its child
	// collections. Keyed by MarketID.
	Station struct {
		MarketID      int64
		SystemAddress int64
		StationName   string
		StationType   string

		BodyID              *int64
		Latitude            *float64
		Longitude           *float64
		DistFromStarLS      *float64
		StationGovernment   *string
		StationAllegiance   *string
		StationFactionName  *string
		StationFactionState *string
		StationEconomy      *string
		StationState        *string
		NumStationServices  *int
		NumStationEconomies *int
		LandingPadsLarge    *int
		LandingPadsMedium   *int
		LandingPadsSmall    *int

		Economies []StationEconomy
		Services  []StationService
	}

	// StationEconomy is one economy share of a station.
	StationEconomy struct {
		MarketID   int64
		Name       string
		Proportion float64
	}

	// StationService is one service offered by a station.
	StationService struct {
		MarketID int64
		Name     string
	}

	// Landmark is one row of the landmark table. Identity is the pair
	// (EntryID, AuxiliaryID), either of which may be null: codex
	// discoveries carry an EntryID, marketless settlements carry a
	// synthetic AuxiliaryID instead.
	Landmark struct {
		EntryID     *int64
		AuxiliaryID *string

		SystemAddress int64
		BodyID        int64
		Latitude      float64
		Longitude     float64
		Name          string

		Region             *string
		Category           *string
		SubCategory        *string
		NearestDestination *string
		VoucherAmount      *int64
		NumTraits          *int

		Traits []string
	}

	// Signal is one row of the signal table. Identity is the tuple
	// (SystemAddress, BodyID, Type, SignalName) with nullable members.
	Signal struct {
		SystemAddress int64
		BodyID        *int64
		Type          string
		Count         int
		SignalName    *string
	}

	// Market is one commodity market snapshot keyed by marketId.
	Market struct {
		MarketID  int64
		Timestamp string

		Commodities []MarketCommodity
	}

	// MarketCommodity is one commodity listing of a market.
	MarketCommodity struct {
		MarketID  int64
		Name      string
		Category  *string
		Stock     int64
		Demand    int64
		Supply    int64
		BuyPrice  int64
		SellPrice int64
	}

	// Shipyard is one shipyard inventory snapshot keyed by marketId.
	Shipyard struct {
		MarketID  int64
		Timestamp string
		NumShips  int

		Ships []ShipyardShip
	}

	// ShipyardShip is one hull offered by a shipyard.
	ShipyardShip struct {
		MarketID int64
		Name     string
	}

	// Outfitting is one outfitting inventory snapshot keyed by marketId.
	Outfitting struct {
		MarketID  int64
		Timestamp string
		NumItems  int

		Items []OutfittingItem
	}

	// OutfittingItem is one module offered by an outfitting service.
	OutfittingItem struct {
		MarketID int64
		Name     string
	}

	// Bundle aggregates every entity row produced from a single event.
	// An empty bundle means the event carried nothing persistable.
	Bundle struct {
		Systems     []System
		Stations    []Station
		Bodies      []Body
		Landmarks   []Landmark
		Markets     []Market
		Shipyards   []Shipyard
		Outfittings []Outfitting
		Signals     []Signal
	}
)

// Ref returns the serialization reference for this system.
func (s *System) Ref() (canonical.Ref, error) {
	key, err := canonical.Key(map[string]any{"SystemAddress": s.SystemAddress})
	if err != nil {
		return canonical.Ref{}, err
	}

	return canonical.Ref{Kind: KindSystem, Key: key}, nil
}

// Ref returns the serialization reference for this body.
func (b *Body) Ref() (canonical.Ref, error) {
	key, err := canonical.Key(map[string]any{
		"SystemAddress": b.SystemAddress,
		"BodyID":        b.BodyID,
	})
	if err != nil {
		return canonical.Ref{}, err
	}

	return canonical.Ref{Kind: KindBody, Key: key}, nil
}

// Ref returns the serialization reference for this station.
func (s *Station) Ref() (canonical.Ref, error) {
	key, err := canonical.Key(map[string]any{"MarketID": s.MarketID})
	if err != nil {
		return canonical.Ref{}, err
	}

	return canonical.Ref{Kind: KindStation, Key: key}, nil
}

// Ref returns the serialization reference for this landmark. Null
// identity members are serialized as JSON null so that codex and
// settlement landmarks never collide.
func (l *Landmark) Ref() (canonical.Ref, error) {
	key, err := canonical.Key(map[string]any{
		"EntryID":     l.EntryID,
		"AuxiliaryID": l.AuxiliaryID,
	})
	if err != nil {
		return canonical.Ref{}, err
	}

	return canonical.Ref{Kind: KindLandmark, Key: key}, nil
}

// Ref returns the serialization reference for this signal.
func (s *Signal) Ref() (canonical.Ref, error) {
	key, err := canonical.Key(map[string]any{
		"SystemAddress": s.SystemAddress,
		"BodyID":        s.BodyID,
		"Type":          s.Type,
		"SignalName":    s.SignalName,
	})
	if err != nil {
		return canonical.Ref{}, err
	}

	return canonical.Ref{Kind: KindSignal, Key: key}, nil
}

// Ref returns the serialization reference for this market. The key
// field is spelled marketId to match the commodity schema column.
func (m *Market) Ref() (canonical.Ref, error) {
	key, err := canonical.Key(map[string]any{"marketId": m.MarketID})
	if err != nil {
		return canonical.Ref{}, err
	}

	return canonical.Ref{Kind: KindMarket, Key: key}, nil
}

// Ref returns the serialization reference for this shipyard.
func (s *Shipyard) Ref() (canonical.Ref, error) {
	key, err := canonical.Key(map[string]any{"marketId": s.MarketID})
	if err != nil {
		return canonical.Ref{}, err
	}

	return canonical.Ref{Kind: KindShipyard, Key: key}, nil
}

// Ref returns the serialization reference for this outfitting service.
func (o *Outfitting) Ref() (canonical.Ref, error) {
	key, err := canonical.Key(map[string]any{"marketId": o.MarketID})
	if err != nil {
		return canonical.Ref{}, err
	}

	return canonical.Ref{Kind: KindOutfitting, Key: key}, nil
}

// Empty reports whether the bundle contains no entity rows at all.
func (b *Bundle) Empty() bool {
	return len(b.Systems) == 0 &&
		len(b.Stations) == 0 &&
		len(b.Bodies) == 0 &&
		len(b.Landmarks) == 0 &&
		len(b.Markets) == 0 &&
		len(b.Shipyards) == 0 &&
		len(b.Outfittings) == 0 &&
		len(b.Signals) == 0
}

// Refs collects the serialization reference of every row in the
// bundle, in persistence order. Callers pass the result through
// canonical.LockOrder before acquiring row locks.
func (b *Bundle) Refs() ([]canonical.Ref, error) {
	refs := make([]canonical.Ref, 0,
		len(b.Systems)+len(b.Stations)+len(b.Bodies)+len(b.Landmarks)+
			len(b.Markets)+len(b.Shipyards)+len(b.Outfittings)+len(b.Signals))

	for i := range b.Systems {
		ref, err := b.Systems[i].Ref()
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	for i := range b.Stations {
		ref, err := b.Stations[i].Ref()
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	for i := range b.Bodies {
		ref, err := b.Bodies[i].Ref()
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	for i := range b.Landmarks {
		ref, err := b.Landmarks[i].Ref()
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	for i := range b.Markets {
		ref, err := b.Markets[i].Ref()
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	for i := range b.Shipyards {
		ref, err := b.Shipyards[i].Ref()
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	for i := range b.Outfittings {
		ref, err := b.Outfittings[i].Ref()
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	for i := range b.Signals {
		ref, err := b.Signals[i].Ref()
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	return refs, nil
}
