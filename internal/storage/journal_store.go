package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/starlog-io/starlog/internal/canonical"
	"github.com/starlog-io/starlog/internal/config"
	"github.com/starlog-io/starlog/internal/ingest"
)

// Sentinel errors for journal event storage operations.
var (
	// ErrJournalStoreFailed is returned when applying a bundle fails.
	ErrJournalStoreFailed = errors.New("journal event storage failed")

	// ErrLockNotAvailable is returned when the 3-second lock_timeout expires
	// while waiting for another writer's sentinel row.
	ErrLockNotAvailable = errors.New("row lock wait timed out")

	// ErrDeadlockDetected is returned when PostgreSQL aborts the transaction
	// to break a deadlock. With canonical lock ordering this should not
	// happen between journal writers; it can still occur against external
	// sessions touching the same tables.
	ErrDeadlockDetected = errors.New("deadlock detected")

	// ErrDatabaseUnavailable is returned when the connection to the database
	// is lost mid-operation. Callers that retry (the live stream consumer)
	// key their backoff on this.
	ErrDatabaseUnavailable = errors.New("database connection unavailable")

	// ErrNilRecencyCache is returned when a JournalStore is created without
	// a timestamp cache.
	ErrNilRecencyCache = errors.New("recency cache cannot be nil")

	// JournalStore implements ingest.EventWriter (freshness-gated
	// persistence for normalized event bundles).
	_ ingest.EventWriter = (*JournalStore)(nil)
)

const (
	// sentinelEvent names the per-entity serialization row in
	// ingestion_lock. Locking it FOR UPDATE serializes all events touching
	// that entity, across event kinds and across processes.
	sentinelEvent = "__lock__"

	// sentinelTimestamp is the fixed timestamp stored on sentinel rows.
	// It is never compared against; the row exists only to be locked.
	sentinelTimestamp = "1970-01-01T00:00:00Z"
)

type (
	// JournalStore applies normalized bundles to PostgreSQL under the
	// freshness gate:
	//
	//  1. An in-memory recency cache drops events that are already known
	//     to be stale, without spending a transaction.
	//  2. Per transaction, sentinel rows are locked in canonical order,
	//     then each (entity, event-kind) freshness row is upserted with a
	//     10-second monotone guard. Any guard rejection rolls back the
	//     whole event.
	//  3. Parent rows merge only non-null incoming columns; non-null child
	//     collections replace the stored set wholesale.
	JournalStore struct {
		conn   *Connection
		cache  *ingest.RecencyCache
		logger *slog.Logger
	}

	// column is one column of a parent upsert: its name, bound value, and
	// whether a conflicting row takes the incoming value. Identity columns
	// and null-valued optional columns never merge, so stored values
	// survive events that do not carry them.
	column struct {
		name  string
		value any
		merge bool
		cast  string
	}
)

// NewJournalStore creates the PostgreSQL-backed event writer.
// The connection and cache are both required; the cache is shared between
// the archive pipeline and the live stream consumer so they filter each
// other's stale events.
func NewJournalStore(conn *Connection, cache *ingest.RecencyCache) (*JournalStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	if cache == nil {
		return nil, ErrNilRecencyCache
	}

	return &JournalStore{
		conn:  conn,
		cache: cache,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// HealthCheck verifies the underlying database connection is healthy.
func (s *JournalStore) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	return s.conn.HealthCheck(ctx)
}

// Apply implements ingest.EventWriter.
//
// It persists one bundle atomically under the freshness gate. The event
// tag and timestamp guard every entity the bundle touches: if any
// entity's stored timestamp for this event kind is not older by more
// than 10 seconds, nothing is written and Apply returns (false, nil).
//
// Transaction shape, per event:
//
//	BEGIN; SET LOCAL lock_timeout = '3s';
//	for each entity ref in canonical lock order:
//	    lock sentinel row; guarded upsert of the freshness row
//	parent upserts + child replacements
//	COMMIT
//
// Lock timeouts, deadlock aborts, and connection failures return an
// error; the caller counts those as line failures.
func (s *JournalStore) Apply(ctx context.Context, bundle *ingest.Bundle, event, timestamp string) (bool, error) {
	if bundle == nil {
		return false, fmt.Errorf("%w: bundle is nil", ErrJournalStoreFailed)
	}

	if event == "" {
		return false, fmt.Errorf("%w: event kind is empty", ErrJournalStoreFailed)
	}

	eventTime, err := canonical.ParseTimestamp(timestamp)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrJournalStoreFailed, err)
	}

	refs, err := bundle.Refs()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrJournalStoreFailed, err)
	}

	if len(refs) == 0 {
		return false, nil
	}

	// Optimistic pre-filter: if the cache already holds a timestamp at
	// least as new for any touched row, the database guard would reject
	// this event anyway. The database stays authoritative for everything
	// the cache lets through.
	for _, ref := range refs {
		if !s.cache.IsNewerAndUpdate(ref.Kind, ref.Key, event, timestamp) {
			s.logger.Debug("stale event dropped by recency cache",
				slog.String("event", event),
				slog.String("model", ref.Kind),
				slog.String("primary_key", ref.Key),
				slog.String("timestamp", timestamp),
			)

			return false, nil
		}
	}

	ordered := canonical.LockOrder(refs)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, classifyDatabaseError("begin transaction", err)
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	// SET LOCAL scopes the timeout to this transaction only.
	if _, err := tx.ExecContext(ctx, "SET LOCAL lock_timeout = '3s'"); err != nil {
		return false, classifyDatabaseError("set lock timeout", err)
	}

	for _, ref := range ordered {
		if err := s.acquireSentinel(ctx, tx, ref); err != nil {
			return false, classifyDatabaseError("acquire sentinel", err)
		}

		applied, err := s.guardEvent(ctx, tx, ref, event, eventTime)
		if err != nil {
			return false, classifyDatabaseError("freshness guard", err)
		}

		if !applied {
			s.logger.Debug("stale event rejected by freshness guard",
				slog.String("event", event),
				slog.String("model", ref.Kind),
				slog.String("primary_key", ref.Key),
				slog.Time("timestamp", eventTime),
			)

			return false, nil
		}
	}

	if err := s.applyBundle(ctx, tx, bundle); err != nil {
		return false, classifyDatabaseError("apply bundle", err)
	}

	if err := tx.Commit(); err != nil {
		return false, classifyDatabaseError("commit", err)
	}

	return true, nil
}

// acquireSentinel creates the entity's sentinel row on demand and locks
// it. The lock is held until the surrounding transaction commits or
// rolls back, serializing every event that touches this entity.
func (s *JournalStore) acquireSentinel(ctx context.Context, tx *sql.Tx, ref canonical.Ref) error {
	insert := `
		INSERT INTO ingestion_lock (model_name, primary_key, event, timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (model_name, primary_key, event) DO NOTHING
	`

	if _, err := tx.ExecContext(ctx, insert, ref.Kind, ref.Key, sentinelEvent, sentinelTimestamp); err != nil {
		return fmt.Errorf("failed to insert sentinel row: %w", err)
	}

	// ON CONFLICT DO NOTHING does not lock a pre-existing row, so the
	// exclusive lock is taken explicitly.
	lock := `
		SELECT timestamp FROM ingestion_lock
		WHERE model_name = $1 AND primary_key = $2 AND event = $3
		FOR UPDATE
	`

	var ts time.Time
	if err := tx.QueryRowContext(ctx, lock, ref.Kind, ref.Key, sentinelEvent).Scan(&ts); err != nil {
		return fmt.Errorf("failed to lock sentinel row: %w", err)
	}

	return nil
}

// guardEvent performs the conditional upsert of the real freshness row
// for (entity, event-kind): insert if absent, else update only when the
// incoming timestamp exceeds the stored one by more than 10 seconds.
// Returns whether a row was written; false means the event is stale.
func (s *JournalStore) guardEvent(
	ctx context.Context,
	tx *sql.Tx,
	ref canonical.Ref,
	event string,
	eventTime time.Time,
) (bool, error) {
	query := `
		INSERT INTO ingestion_lock (model_name, primary_key, event, timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (model_name, primary_key, event) DO UPDATE
		SET timestamp = EXCLUDED.timestamp
		WHERE EXCLUDED.timestamp > ingestion_lock.timestamp + INTERVAL '10 seconds'
	`

	result, err := tx.ExecContext(ctx, query, ref.Kind, ref.Key, event, eventTime)
	if err != nil {
		return false, fmt.Errorf("failed to upsert freshness row: %w", err)
	}

	written, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read guard result: %w", err)
	}

	return written > 0, nil
}

// applyBundle writes every entity row of the bundle inside the caller's
// transaction, parents before their children.
func (s *JournalStore) applyBundle(ctx context.Context, tx *sql.Tx, bundle *ingest.Bundle) error {
	for i := range bundle.Systems {
		if err := s.applySystem(ctx, tx, &bundle.Systems[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Stations {
		if err := s.applyStation(ctx, tx, &bundle.Stations[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Bodies {
		if err := s.applyBody(ctx, tx, &bundle.Bodies[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Landmarks {
		if err := s.applyLandmark(ctx, tx, &bundle.Landmarks[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Markets {
		if err := s.applyMarket(ctx, tx, &bundle.Markets[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Shipyards {
		if err := s.applyShipyard(ctx, tx, &bundle.Shipyards[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Outfittings {
		if err := s.applyOutfitting(ctx, tx, &bundle.Outfittings[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Signals {
		if err := s.applySignal(ctx, tx, &bundle.Signals[i]); err != nil {
			return err
		}
	}

	return nil
}

// applySystem upserts the system row and replaces whichever child
// collections the event supplied. Faction states ride along with their
// faction; deleting system_factions cascades to system_faction_states.
func (s *JournalStore) applySystem(ctx context.Context, tx *sql.Tx, sys *ingest.System) error {
	cols := []column{
		keyCol("system_address", sys.SystemAddress),
		{name: "star_pos", value: starPosValue(sys.StarPos), merge: len(sys.StarPos) == 3, cast: "::vector"},
		valCol("star_system", sys.StarSystem),
		optCol("primary_body_id", sys.PrimaryBodyID),
		optCol("primary_body_type", sys.PrimaryBodyType),
		optCol("primary_body_name", sys.PrimaryBodyName),
		optCol("population", sys.Population),
		optCol("allegiance", sys.Allegiance),
		optCol("economy", sys.Economy),
		optCol("second_economy", sys.SecondEconomy),
		optCol("faction_name", sys.FactionName),
		optCol("faction_state", sys.FactionState),
		optCol("security", sys.Security),
		optCol("powerplay_state", sys.PowerplayState),
		optCol("government", sys.Government),
		optCol("num_powers", sys.NumPowers),
		optCol("num_factions", sys.NumFactions),
		optCol("num_conflicts", sys.NumConflicts),
	}

	if err := s.upsertParent(ctx, tx, "systems", "(system_address)", cols); err != nil {
		return fmt.Errorf("failed to upsert system: %w", err)
	}

	if sys.Powers != nil {
		if err := s.clearChildRows(ctx, tx, "system_powers", "system_address = $1", sys.SystemAddress); err != nil {
			return err
		}

		for i := range sys.Powers {
			p := &sys.Powers[i]
			if err := s.insertChildRow(ctx, tx, "system_powers",
				[]string{"system_address", "power"},
				[]any{p.SystemAddress, p.Power},
			); err != nil {
				return err
			}
		}
	}

	if sys.Factions != nil {
		if err := s.clearChildRows(ctx, tx, "system_factions", "system_address = $1", sys.SystemAddress); err != nil {
			return err
		}

		for i := range sys.Factions {
			f := &sys.Factions[i]
			if err := s.insertChildRow(ctx, tx, "system_factions",
				[]string{
					"system_address", "name", "influence", "happiness",
					"allegiance", "faction_state", "government", "squadron_faction",
				},
				[]any{
					f.SystemAddress, f.Name, f.Influence, f.Happiness,
					f.Allegiance, f.FactionState, f.Government, f.SquadronFaction,
				},
			); err != nil {
				return err
			}

			for j := range f.States {
				st := &f.States[j]
				if err := s.insertChildRow(ctx, tx, "system_faction_states",
					[]string{"system_address", "faction_name", "type", "state", "trend"},
					[]any{st.SystemAddress, st.FactionName, st.Type, st.State, st.Trend},
				); err != nil {
					return err
				}
			}
		}
	}

	if sys.Conflicts != nil {
		if err := s.clearChildRows(ctx, tx, "system_conflicts", "system_address = $1", sys.SystemAddress); err != nil {
			return err
		}

		for i := range sys.Conflicts {
			c := &sys.Conflicts[i]
			if err := s.insertChildRow(ctx, tx, "system_conflicts",
				[]string{
					"system_address", "status", "war_type",
					"faction1_name", "faction1_stake", "faction1_won_days",
					"faction2_name", "faction2_stake", "faction2_won_days",
				},
				[]any{
					c.SystemAddress, c.Status, c.WarType,
					c.Faction1Name, c.Faction1Stake, c.Faction1WonDays,
					c.Faction2Name, c.Faction2Stake, c.Faction2WonDays,
				},
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyStation upserts the station row and replaces its economy and
// service sets when supplied.
func (s *JournalStore) applyStation(ctx context.Context, tx *sql.Tx, st *ingest.Station) error {
	cols := []column{
		keyCol("market_id", st.MarketID),
		valCol("system_address", st.SystemAddress),
		valCol("station_name", st.StationName),
		valCol("station_type", st.StationType),
		optCol("body_id", st.BodyID),
		optCol("latitude", st.Latitude),
		optCol("longitude", st.Longitude),
		optCol("dist_from_star_ls", st.DistFromStarLS),
		optCol("station_government", st.StationGovernment),
		optCol("station_allegiance", st.StationAllegiance),
		optCol("station_faction_name", st.StationFactionName),
		optCol("station_faction_state", st.StationFactionState),
		optCol("station_economy", st.StationEconomy),
		optCol("station_state", st.StationState),
		optCol("num_station_services", st.NumStationServices),
		optCol("num_station_economies", st.NumStationEconomies),
		optCol("landing_pads_large", st.LandingPadsLarge),
		optCol("landing_pads_medium", st.LandingPadsMedium),
		optCol("landing_pads_small", st.LandingPadsSmall),
	}

	if err := s.upsertParent(ctx, tx, "stations", "(market_id)", cols); err != nil {
		return fmt.Errorf("failed to upsert station: %w", err)
	}

	if st.Economies != nil {
		if err := s.clearChildRows(ctx, tx, "station_economies", "market_id = $1", st.MarketID); err != nil {
			return err
		}

		for i := range st.Economies {
			e := &st.Economies[i]
			if err := s.insertChildRow(ctx, tx, "station_economies",
				[]string{"market_id", "name", "proportion"},
				[]any{e.MarketID, e.Name, e.Proportion},
			); err != nil {
				return err
			}
		}
	}

	if st.Services != nil {
		if err := s.clearChildRows(ctx, tx, "station_services", "market_id = $1", st.MarketID); err != nil {
			return err
		}

		for i := range st.Services {
			sv := &st.Services[i]
			if err := s.insertChildRow(ctx, tx, "station_services",
				[]string{"market_id", "name"},
				[]any{sv.MarketID, sv.Name},
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyBody upserts the body row and replaces its material, atmosphere,
// and ring sets when supplied.
func (s *JournalStore) applyBody(ctx context.Context, tx *sql.Tx, b *ingest.Body) error {
	cols := []column{
		keyCol("system_address", b.SystemAddress),
		keyCol("body_id", b.BodyID),
		valCol("body_name", b.BodyName),
		valCol("body_type", b.BodyType),
		optCol("distance_from_arrival_ls", b.DistanceFromArrivalLS),
		optCol("mean_anomaly", b.MeanAnomaly),
		optCol("eccentricity", b.Eccentricity),
		optCol("ascending_node", b.AscendingNode),
		optCol("periapsis", b.Periapsis),
		optCol("semi_major_axis", b.SemiMajorAxis),
		optCol("orbital_period", b.OrbitalPeriod),
		optCol("orbital_inclination", b.OrbitalInclination),
		optCol("tidal_lock", b.TidalLock),
		optCol("rotation_period", b.RotationPeriod),
		optCol("axial_tilt", b.AxialTilt),
		optCol("radius", b.Radius),
		optCol("mass_em", b.MassEM),
		optCol("stellar_mass", b.StellarMass),
		optCol("age_my", b.AgeMY),
		optCol("star_type", b.StarType),
		optCol("planet_class", b.PlanetClass),
		optCol("subclass", b.Subclass),
		optCol("parent", b.Parent),
		optCol("atmosphere_type", b.AtmosphereType),
		optCol("absolute_magnitude", b.AbsoluteMagnitude),
		optCol("luminosity", b.Luminosity),
		optCol("surface_temperature", b.SurfaceTemperature),
		optCol("surface_gravity", b.SurfaceGravity),
		optCol("surface_pressure", b.SurfacePressure),
		optCol("volcanism", b.Volcanism),
		optCol("terraform_state", b.TerraformState),
		optCol("landable", b.Landable),
		optCol("atmosphere", b.Atmosphere),
		optCol("reserve_level", b.ReserveLevel),
		optCol("composition_ice", b.CompositionIce),
		optCol("composition_metal", b.CompositionMetal),
		optCol("composition_rock", b.CompositionRock),
		optCol("num_materials", b.NumMaterials),
		optCol("num_atmosphere_composition", b.NumAtmosphereComposition),
		optCol("num_rings", b.NumRings),
	}

	if err := s.upsertParent(ctx, tx, "bodies", "(system_address, body_id)", cols); err != nil {
		return fmt.Errorf("failed to upsert body: %w", err)
	}

	if b.Materials != nil {
		if err := s.clearChildRows(ctx, tx, "body_materials",
			"system_address = $1 AND body_id = $2", b.SystemAddress, b.BodyID); err != nil {
			return err
		}

		for i := range b.Materials {
			m := &b.Materials[i]
			if err := s.insertChildRow(ctx, tx, "body_materials",
				[]string{"system_address", "body_id", "name", "percent"},
				[]any{m.SystemAddress, m.BodyID, m.Name, m.Percent},
			); err != nil {
				return err
			}
		}
	}

	if b.AtmosphereComposition != nil {
		if err := s.clearChildRows(ctx, tx, "body_atmosphere_composition",
			"system_address = $1 AND body_id = $2", b.SystemAddress, b.BodyID); err != nil {
			return err
		}

		for i := range b.AtmosphereComposition {
			a := &b.AtmosphereComposition[i]
			if err := s.insertChildRow(ctx, tx, "body_atmosphere_composition",
				[]string{"system_address", "body_id", "name", "percent"},
				[]any{a.SystemAddress, a.BodyID, a.Name, a.Percent},
			); err != nil {
				return err
			}
		}
	}

	if b.Rings != nil {
		if err := s.clearChildRows(ctx, tx, "body_rings",
			"system_address = $1 AND body_id = $2", b.SystemAddress, b.BodyID); err != nil {
			return err
		}

		for i := range b.Rings {
			r := &b.Rings[i]
			if err := s.insertChildRow(ctx, tx, "body_rings",
				[]string{"system_address", "body_id", "name", "ring_class", "mass_mt", "inner_rad", "outer_rad"},
				[]any{r.SystemAddress, r.BodyID, r.Name, r.RingClass, r.MassMT, r.InnerRad, r.OuterRad},
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyLandmark upserts the landmark row against its coalesce identity
// index and keys trait rows off the returned synthetic id.
func (s *JournalStore) applyLandmark(ctx context.Context, tx *sql.Tx, l *ingest.Landmark) error {
	cols := []column{
		{name: "entry_id", value: l.EntryID},
		{name: "auxiliary_id", value: l.AuxiliaryID},
		valCol("system_address", l.SystemAddress),
		valCol("body_id", l.BodyID),
		valCol("latitude", l.Latitude),
		valCol("longitude", l.Longitude),
		valCol("name", l.Name),
		optCol("region", l.Region),
		optCol("category", l.Category),
		optCol("sub_category", l.SubCategory),
		optCol("nearest_destination", l.NearestDestination),
		optCol("voucher_amount", l.VoucherAmount),
		optCol("num_traits", l.NumTraits),
	}

	conflict := "(COALESCE(entry_id, -1), COALESCE(auxiliary_id, ''))"

	landmarkID, err := s.upsertParentReturningID(ctx, tx, "landmarks", conflict, cols)
	if err != nil {
		return fmt.Errorf("failed to upsert landmark: %w", err)
	}

	if l.Traits != nil {
		if err := s.clearChildRows(ctx, tx, "landmark_traits", "landmark_id = $1", landmarkID); err != nil {
			return err
		}

		for _, trait := range l.Traits {
			if err := s.insertChildRow(ctx, tx, "landmark_traits",
				[]string{"landmark_id", "trait"},
				[]any{landmarkID, trait},
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyMarket upserts the market snapshot and replaces its commodity
// listing when supplied.
func (s *JournalStore) applyMarket(ctx context.Context, tx *sql.Tx, m *ingest.Market) error {
	cols := []column{
		keyCol("market_id", m.MarketID),
		valCol("timestamp", m.Timestamp),
	}

	if err := s.upsertParent(ctx, tx, "markets", "(market_id)", cols); err != nil {
		return fmt.Errorf("failed to upsert market: %w", err)
	}

	if m.Commodities != nil {
		if err := s.clearChildRows(ctx, tx, "market_commodities", "market_id = $1", m.MarketID); err != nil {
			return err
		}

		for i := range m.Commodities {
			c := &m.Commodities[i]
			if err := s.insertChildRow(ctx, tx, "market_commodities",
				[]string{"market_id", "name", "category", "stock", "demand", "supply", "buy_price", "sell_price"},
				[]any{c.MarketID, c.Name, c.Category, c.Stock, c.Demand, c.Supply, c.BuyPrice, c.SellPrice},
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyShipyard upserts the shipyard snapshot and replaces its hull
// listing when supplied.
func (s *JournalStore) applyShipyard(ctx context.Context, tx *sql.Tx, sy *ingest.Shipyard) error {
	cols := []column{
		keyCol("market_id", sy.MarketID),
		valCol("timestamp", sy.Timestamp),
		valCol("num_ships", sy.NumShips),
	}

	if err := s.upsertParent(ctx, tx, "shipyards", "(market_id)", cols); err != nil {
		return fmt.Errorf("failed to upsert shipyard: %w", err)
	}

	if sy.Ships != nil {
		if err := s.clearChildRows(ctx, tx, "shipyard_ships", "market_id = $1", sy.MarketID); err != nil {
			return err
		}

		for i := range sy.Ships {
			sh := &sy.Ships[i]
			if err := s.insertChildRow(ctx, tx, "shipyard_ships",
				[]string{"market_id", "name"},
				[]any{sh.MarketID, sh.Name},
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyOutfitting upserts the outfitting snapshot and replaces its
// module listing when supplied.
func (s *JournalStore) applyOutfitting(ctx context.Context, tx *sql.Tx, o *ingest.Outfitting) error {
	cols := []column{
		keyCol("market_id", o.MarketID),
		valCol("timestamp", o.Timestamp),
		valCol("num_items", o.NumItems),
	}

	if err := s.upsertParent(ctx, tx, "outfittings", "(market_id)", cols); err != nil {
		return fmt.Errorf("failed to upsert outfitting: %w", err)
	}

	if o.Items != nil {
		if err := s.clearChildRows(ctx, tx, "outfitting_modules", "market_id = $1", o.MarketID); err != nil {
			return err
		}

		for i := range o.Items {
			item := &o.Items[i]
			if err := s.insertChildRow(ctx, tx, "outfitting_modules",
				[]string{"market_id", "name"},
				[]any{item.MarketID, item.Name},
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// applySignal upserts the signal row against its coalesce identity
// index. Signals have no children.
func (s *JournalStore) applySignal(ctx context.Context, tx *sql.Tx, sig *ingest.Signal) error {
	cols := []column{
		keyCol("system_address", sig.SystemAddress),
		{name: "body_id", value: sig.BodyID},
		keyCol("type", sig.Type),
		{name: "signal_name", value: sig.SignalName},
		valCol("count", sig.Count),
	}

	conflict := "(system_address, COALESCE(body_id, -1), type, COALESCE(signal_name, ''))"

	if err := s.upsertParent(ctx, tx, "signals", conflict, cols); err != nil {
		return fmt.Errorf("failed to upsert signal: %w", err)
	}

	return nil
}

// upsertParent executes a partial-merge upsert for one parent row.
func (s *JournalStore) upsertParent(
	ctx context.Context,
	tx *sql.Tx,
	table, conflict string,
	cols []column,
) error {
	query, args := buildUpsert(table, conflict, cols, "")

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}

	return nil
}

// upsertParentReturningID is upsertParent with RETURNING id, for parents
// whose children key off a synthetic row id.
func (s *JournalStore) upsertParentReturningID(
	ctx context.Context,
	tx *sql.Tx,
	table, conflict string,
	cols []column,
) (int64, error) {
	query, args := buildUpsert(table, conflict, cols, "id")

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", table, err)
	}

	return id, nil
}

// clearChildRows deletes the stored child set for one parent before a
// replacement insert.
func (s *JournalStore) clearChildRows(
	ctx context.Context,
	tx *sql.Tx,
	table, where string,
	args ...any,
) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, where)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	return nil
}

// insertChildRow inserts one child row. Conflicts on the child primary
// key are ignored so intra-batch duplicates collapse silently.
func (s *JournalStore) insertChildRow(
	ctx context.Context,
	tx *sql.Tx,
	table string,
	names []string,
	args []any,
) error {
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "),
	)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}

	return nil
}

// buildUpsert assembles the partial-merge upsert statement for one
// parent row. Every column is inserted; only merge columns take the
// incoming value on conflict, so null never erases a stored value.
// updated_at is always refreshed, which also keeps the statement valid
// when an event carries nothing but identity columns.
func buildUpsert(table, conflict string, cols []column, returning string) (string, []any) {
	names := make([]string, 0, len(cols))
	placeholders := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	set := make([]string, 0, len(cols)+1)

	for i, col := range cols {
		names = append(names, col.name)
		placeholders = append(placeholders, fmt.Sprintf("$%d%s", i+1, col.cast))
		args = append(args, col.value)

		if col.merge {
			set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", col.name, col.name))
		}
	}

	set = append(set, "updated_at = NOW()")

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT %s DO UPDATE SET %s",
		table,
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
		conflict,
		strings.Join(set, ", "),
	)

	if returning != "" {
		query += " RETURNING " + returning
	}

	return query, args
}

// keyCol is an identity column: inserted, never merged on conflict.
func keyCol(name string, value any) column {
	return column{name: name, value: value}
}

// valCol is a required payload column: inserted and always merged.
func valCol(name string, value any) column {
	return column{name: name, value: value, merge: true}
}

// optCol is a nullable payload column: inserted (nil becomes SQL NULL)
// and merged only when the event carried a value.
func optCol[T any](name string, v *T) column {
	return column{name: name, value: v, merge: v != nil}
}

// starPosValue formats galactic coordinates for the pgvector column,
// or NULL when the event carried none.
func starPosValue(pos []float64) any {
	if len(pos) != 3 {
		return nil
	}

	return fmt.Sprintf("[%v,%v,%v]", pos[0], pos[1], pos[2])
}

// classifyDatabaseError wraps a raw database error with the sentinel
// callers key on: lock timeouts (55P03) and deadlock aborts (40P01) get
// their own sentinels, lost connections map to ErrDatabaseUnavailable,
// everything else to ErrJournalStoreFailed.
func classifyDatabaseError(operation string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03":
			return fmt.Errorf("%w: %s: %w", ErrLockNotAvailable, operation, err)
		case "40P01":
			return fmt.Errorf("%w: %s: %w", ErrDeadlockDetected, operation, err)
		}
	}

	if isDatabaseConnectionError(err) {
		return fmt.Errorf("%w: %s: %w", ErrDatabaseUnavailable, operation, err)
	}

	return fmt.Errorf("%w: %s: %w", ErrJournalStoreFailed, operation, err)
}

// isDatabaseConnectionError checks if an error indicates database connection failure.
// Uses PostgreSQL error codes (Class 08) and standard database/sql errors for robust detection.
func isDatabaseConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Class 08 = Connection Exception: 08000, 08003, 08006, 08001, 08004
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}
