package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// ErrInvalidDay is returned when a day designator is not a calendar
// date in YYYY-MM-DD form.
var ErrInvalidDay = errors.New("invalid day")

// ParseDay parses a YYYY-MM-DD day designator in UTC, the form the
// archive host names its daily files by.
func ParseDay(value string) (time.Time, error) {
	day, err := time.ParseInLocation(dayLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDay, value)
	}

	return day, nil
}

// FormatDay renders a day in the YYYY-MM-DD form used across run
// requests and reports.
func FormatDay(day time.Time) string {
	return day.Format(dayLayout)
}

// Dataset binds one archive stream to its event decoding and
// normalization. Name doubles as the dataset identifier in run
// requests; FileBase is the archive file name prefix; Event is the
// event tag the dataset accepts.
type Dataset struct {
	Name     string
	FileBase string
	Event    string

	convert func(*Envelope) (Bundle, error)
}

// ArchiveFile returns the daily archive file name for this dataset.
func (d Dataset) ArchiveFile(day time.Time) string {
	return fmt.Sprintf("%s-%s.jsonl.bz2", d.FileBase, day.Format(dayLayout))
}

// Convert strictly decodes the envelope's message body into this
// dataset's event type, validates it, and normalizes it into entity
// rows. Callers are expected to have checked the event tag already.
func (d Dataset) Convert(env *Envelope) (Bundle, error) {
	return d.convert(env)
}

// validatable constrains bind to event pointer types that carry their
// own required-field checks.
type validatable[E any] interface {
	*E
	Validate() error
}

// bind wires an event type and its normalizer into a dataset convert
// function: strict decode, validate, normalize.
func bind[E any, PE validatable[E]](normalize func(PE, *Envelope) Bundle) func(*Envelope) (Bundle, error) {
	return func(env *Envelope) (Bundle, error) {
		var event E

		if err := json.Unmarshal(env.Message, &event); err != nil {
			return Bundle{}, fmt.Errorf("%w: %w", ErrEventDecode, err)
		}

		typed := PE(&event)
		if err := typed.Validate(); err != nil {
			return Bundle{}, err
		}

		return normalize(typed, env), nil
	}
}

// datasets is the registry of every archive stream the pipeline can
// replay. Order here is the order RunAll dispatches them in.
var datasets = []Dataset{
	{Name: "FSDJump", FileBase: "Journal.FSDJump", Event: "FSDJump", convert: bind(normalizeFSDJump)},
	{Name: "Scan", FileBase: "Journal.Scan", Event: "Scan", convert: bind(normalizeScan)},
	{Name: "ScanBaryCentre", FileBase: "Journal.ScanBaryCentre", Event: "ScanBaryCentre", convert: bind(normalizeScanBaryCentre)},
	{Name: "Docked", FileBase: "Journal.Docked", Event: "Docked", convert: bind(normalizeDocked)},
	{Name: "ApproachSettlement", FileBase: "Journal.ApproachSettlement", Event: "ApproachSettlement", convert: bind(normalizeApproachSettlement)},
	{Name: "CarrierJump", FileBase: "Journal.CarrierJump", Event: "CarrierJump", convert: bind(normalizeCarrierJump)},
	{Name: "CodexEntry", FileBase: "Journal.CodexEntry", Event: "CodexEntry", convert: bind(normalizeCodexEntry)},
	{Name: "Market", FileBase: "Commodity", Event: "Market", convert: bind(normalizeMarket)},
	{Name: "Outfitting", FileBase: "Outfitting", Event: "Outfitting", convert: bind(normalizeOutfitting)},
	{Name: "Shipyard", FileBase: "Shipyard", Event: "Shipyard", convert: bind(normalizeShipyard)},
	{Name: "SAASignalsFound", FileBase: "Journal.SAASignalsFound", Event: "SAASignalsFound", convert: bind(normalizeSAASignalsFound)},
	{Name: "FSSSignalDiscovered", FileBase: "Journal.FSSSignalDiscovered", Event: "FSSSignalDiscovered", convert: bind(normalizeFSSSignalDiscovered)},
	{Name: "FSSBodySignals", FileBase: "Journal.FSSBodySignals", Event: "FSSBodySignals", convert: bind(normalizeFSSBodySignals)},
}

// Datasets returns every registered dataset in dispatch order.
func Datasets() []Dataset {
	out := make([]Dataset, len(datasets))
	copy(out, datasets)

	return out
}

// DatasetByName looks up a dataset by its identifier.
func DatasetByName(name string) (Dataset, bool) {
	for _, d := range datasets {
		if d.Name == name {
			return d, true
		}
	}

	return Dataset{}, false
}

// DatasetByEvent looks up the dataset that handles an event tag.
func DatasetByEvent(event string) (Dataset, bool) {
	for _, d := range datasets {
		if d.Event == event {
			return d, true
		}
	}

	return Dataset{}, false
}

// DatasetNames returns the identifiers of every registered dataset.
func DatasetNames() []string {
	names := make([]string, len(datasets))
	for i, d := range datasets {
		names[i] = d.Name
	}

	return names
}
