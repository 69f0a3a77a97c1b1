package ingest

import (
	"encoding/json"
	"time"
)

type (
	// Envelope is the EDDN wrapper around a single journal message.
	// Message is kept raw so each dataset can apply its own strict
	// decoding after the permissive envelope pass; Meta holds the
	// routing fields extracted from the raw message.
	Envelope struct {
		Header  Header          `json:"header"`
		Message json.RawMessage `json:"message"`

		Meta MessageMeta `json:"-"`
	}

	// Header identifies the uploader and relay that produced a message.
	Header struct {
		UploaderID       string `json:"uploaderID"`
		GameVersion      string `json:"gameversion"`
		GameBuild        string `json:"gamebuild"`
		SoftwareName     string `json:"softwareName"`
		SoftwareVersion  string `json:"softwareVersion"`
		GatewayTimestamp string `json:"gatewayTimestamp"`
	}

	// MessageMeta carries the routing fields shared by every message
	// body: the event tag, the in-game timestamp, and the galaxy flags.
	// Commodity-style schemas omit the event tag, so Event may be empty.
	MessageMeta struct {
		Event     string `json:"event"`
		Timestamp string `json:"timestamp"`
		Horizons  bool   `json:"horizons"`
		Odyssey   bool   `json:"odyssey"`
	}
)

// Processable reports whether the message comes from a galaxy state we
// persist. Only events flagged as both Horizons and Odyssey describe
// the shared live galaxy; everything else is skipped.
func (e *Envelope) Processable() bool {
	return e.Meta.Horizons && e.Meta.Odyssey
}

// Outcome classifies what happened to a single archive line.
type Outcome string

// Line outcomes.
const (
	// OutcomeSuccess means the line was decoded, normalized, and
	// committed to the database.
	OutcomeSuccess Outcome = "success"

	// OutcomeSkipped means the line was well formed but intentionally
	// not persisted: wrong galaxy flags, wrong event kind, an empty
	// bundle, or stale against the freshness gate.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailure means the line could not be persisted: envelope
	// parse errors, strict decode or validation errors, or database
	// errors including lock timeouts and deadlocks.
	OutcomeFailure Outcome = "failure"
)

// IsValid returns true if the outcome is one of the defined values.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeSkipped, OutcomeFailure:
		return true
	default:
		return false
	}
}

// RunStatus reports how a dataset run ended.
type RunStatus string

// Run statuses.
const (
	// RunCompleted means the archive was read to the end. Individual
	// line failures do not fail the run; they show up in the counters.
	RunCompleted RunStatus = "completed"

	// RunFailed means the run aborted before reaching the end of the
	// archive, for example on a non-2xx fetch or a mid-stream error.
	RunFailed RunStatus = "failed"
)

// IsValid returns true if the status is one of the defined values.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunCompleted, RunFailed:
		return true
	default:
		return false
	}
}

// RunReport summarizes one dataset replay: which archive was read, how
// each line fared, and how long the run took. Duration is nanoseconds
// when serialized.
type RunReport struct {
	RunID   string    `json:"runId"`
	Dataset string    `json:"dataset"`
	Day     string    `json:"day"`
	Status  RunStatus `json:"status"`
	Input   string    `json:"input"`
	Total   int       `json:"total"`
	Success int       `json:"success"`
	Skipped int       `json:"skipped"`
	Failure int       `json:"failure"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	Error string `json:"error,omitempty"`
}

// Record adds one line outcome to the report counters.
func (r *RunReport) Record(outcome Outcome) {
	r.Total++

	switch outcome {
	case OutcomeSuccess:
		r.Success++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailure:
		r.Failure++
	}
}
