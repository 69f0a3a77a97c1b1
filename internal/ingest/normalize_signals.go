package ingest

// normalizeSAASignalsFound converts a full surface scan into one
// signal row per signal type plus one per biological genus. Genus
// entries carry an implied count of one.
func normalizeSAASignalsFound(e *SAASignalsFoundEvent, _ *Envelope) Bundle {
	signals := make([]Signal, 0, len(e.Signals)+len(e.Genuses))

	for _, s := range e.Signals {
		signals = append(signals, Signal{
			SystemAddress: e.SystemAddress,
			BodyID:        ptr(e.BodyID),
			Type:          s.Type,
			Count:         s.Count,
		})
	}

	for _, g := range e.Genuses {
		signals = append(signals, Signal{
			SystemAddress: e.SystemAddress,
			BodyID:        ptr(e.BodyID),
			Type:          g.Genus,
			Count:         1,
		})
	}

	return Bundle{Signals: signals}
}

// normalizeFSSBodySignals converts a system-scan signal report into
// one signal row per signal type on the body.
func normalizeFSSBodySignals(e *FSSBodySignalsEvent, _ *Envelope) Bundle {
	signals := make([]Signal, 0, len(e.Signals))

	for _, s := range e.Signals {
		signals = append(signals, Signal{
			SystemAddress: e.SystemAddress,
			BodyID:        ptr(e.BodyID),
			Type:          s.Type,
			Count:         s.Count,
		})
	}

	return Bundle{Signals: signals}
}

// normalizeFSSSignalDiscovered converts a batched discovery report
// into one signal row per named signal. Untyped signals carry no
// usable identity and fleet carriers jump away, so both are dropped;
// a batch of nothing but carriers yields an empty bundle.
func normalizeFSSSignalDiscovered(e *FSSSignalDiscoveredEvent, _ *Envelope) Bundle {
	signals := make([]Signal, 0, len(e.Signals))

	for _, s := range e.Signals {
		if s.SignalType == "" || s.SignalType == "FleetCarrier" {
			continue
		}

		address := s.SystemAddress
		if address == 0 {
			address = e.SystemAddress
		}

		signals = append(signals, Signal{
			SystemAddress: address,
			Type:          s.SignalType,
			Count:         1,
			SignalName:    ptr(s.SignalName),
		})
	}

	if len(signals) == 0 {
		return Bundle{}
	}

	return Bundle{Signals: signals}
}
