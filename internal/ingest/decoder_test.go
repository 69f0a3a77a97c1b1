package ingest

import (
	"errors"
	"testing"
)

// ==============================================================================
// Unit Tests: Envelope Parsing
// ==============================================================================

func TestParseEnvelope_Valid(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	line := []byte(`{
		"header": {
			"uploaderID": "eddn-relay",
			"gameversion": "4.0.0.1905",
			"gamebuild": "r302475/r0",
			"softwareName": "E:D Market Connector",
			"softwareVersion": "5.10.1",
			"gatewayTimestamp": "2026-01-15T12:00:01.042Z"
		},
		"message": {
			"event": "FSDJump",
			"timestamp": "2026-01-15T12:00:00Z",
			"horizons": true,
			"odyssey": true,
			"SystemAddress": 10477373803
		}
	}`)

	env, err := ParseEnvelope(line)
	if err != nil {
		t.Fatalf("ParseEnvelope() unexpected error: %v", err)
	}

	if env.Header.UploaderID != "eddn-relay" {
		t.Errorf("UploaderID = %s, want eddn-relay", env.Header.UploaderID)
	}

	if env.Header.SoftwareName != "E:D Market Connector" {
		t.Errorf("SoftwareName = %s, want E:D Market Connector", env.Header.SoftwareName)
	}

	if env.Meta.Event != "FSDJump" {
		t.Errorf("Meta.Event = %s, want FSDJump", env.Meta.Event)
	}

	if env.Meta.Timestamp != "2026-01-15T12:00:00Z" {
		t.Errorf("Meta.Timestamp = %s, want 2026-01-15T12:00:00Z", env.Meta.Timestamp)
	}

	if !env.Meta.Horizons || !env.Meta.Odyssey {
		t.Error("galaxy flags should both be true")
	}

	// The raw message must survive for the strict per-dataset decode.
	if len(env.Message) == 0 {
		t.Error("Message should retain the raw event body")
	}
}

func TestParseEnvelope_EventTagOptional(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// Commodity-style schemas carry no event tag.
	line := []byte(`{
		"header": {"uploaderID": "u1", "softwareName": "EDDI", "softwareVersion": "4.0"},
		"message": {"timestamp": "2026-01-15T12:00:00Z", "horizons": true, "odyssey": true, "marketId": 128016384}
	}`)

	env, err := ParseEnvelope(line)
	if err != nil {
		t.Fatalf("ParseEnvelope() unexpected error: %v", err)
	}

	if env.Meta.Event != "" {
		t.Errorf("Meta.Event = %s, want empty for commodity schema", env.Meta.Event)
	}
}

func TestParseEnvelope_Malformed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		line string
	}{
		{
			name: "truncated JSON",
			line: `{"header":`,
		},
		{
			name: "missing message",
			line: `{"header": {"uploaderID": "u1", "softwareName": "s", "softwareVersion": "1"}}`,
		},
		{
			name: "missing uploaderID",
			line: `{"header": {"softwareName": "s", "softwareVersion": "1"}, "message": {"timestamp": "2026-01-15T12:00:00Z"}}`,
		},
		{
			name: "missing software name",
			line: `{"header": {"uploaderID": "u1", "softwareVersion": "1"}, "message": {"timestamp": "2026-01-15T12:00:00Z"}}`,
		},
		{
			name: "missing software version",
			line: `{"header": {"uploaderID": "u1", "softwareName": "s"}, "message": {"timestamp": "2026-01-15T12:00:00Z"}}`,
		},
		{
			name: "message is not an object",
			line: `{"header": {"uploaderID": "u1", "softwareName": "s", "softwareVersion": "1"}, "message": 5}`,
		},
		{
			name: "missing message timestamp",
			line: `{"header": {"uploaderID": "u1", "softwareName": "s", "softwareVersion": "1"}, "message": {"event": "Docked"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.line))
			if !errors.Is(err, ErrEnvelopeParse) {
				t.Errorf("ParseEnvelope() error = %v, want ErrEnvelopeParse", err)
			}
		})
	}
}

func TestEnvelopeProcessable(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name     string
		horizons bool
		odyssey  bool
		want     bool
	}{
		{name: "live galaxy", horizons: true, odyssey: true, want: true},
		{name: "horizons only", horizons: true, odyssey: false, want: false},
		{name: "odyssey only", horizons: false, odyssey: true, want: false},
		{name: "legacy galaxy", horizons: false, odyssey: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &Envelope{Meta: MessageMeta{Horizons: tt.horizons, Odyssey: tt.odyssey}}

			if got := env.Processable(); got != tt.want {
				t.Errorf("Processable() = %v, want %v", got, tt.want)
			}
		})
	}
}
