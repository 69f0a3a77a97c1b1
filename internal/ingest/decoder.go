package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for envelope and event decoding.
var (
	// ErrEnvelopeParse is returned when an archive line is not a
	// well-formed EDDN envelope.
	ErrEnvelopeParse = errors.New("malformed envelope")

	// ErrEventDecode is returned when the message body of a matching
	// event kind cannot be decoded into its typed form.
	ErrEventDecode = errors.New("event decode failed")
)

// ParseEnvelope decodes one archive line into an envelope. The message
// body stays raw; only the routing fields are extracted, so a line
// parses successfully even when its event body is malformed. Strict
// decoding happens later, per dataset.
func ParseEnvelope(line []byte) (*Envelope, error) {
	var env Envelope

	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnvelopeParse, err)
	}

	if len(env.Message) == 0 {
		return nil, fmt.Errorf("%w: message is required", ErrEnvelopeParse)
	}

	if env.Header.UploaderID == "" {
		return nil, fmt.Errorf("%w: header uploaderID is required", ErrEnvelopeParse)
	}

	if env.Header.SoftwareName == "" || env.Header.SoftwareVersion == "" {
		return nil, fmt.Errorf("%w: header software identification is required", ErrEnvelopeParse)
	}

	if err := json.Unmarshal(env.Message, &env.Meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnvelopeParse, err)
	}

	if env.Meta.Timestamp == "" {
		return nil, fmt.Errorf("%w: message timestamp is required", ErrEnvelopeParse)
	}

	return &env, nil
}
