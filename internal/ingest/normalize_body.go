package ingest

// normalizeScan converts a body scan into one body row. Material,
// atmosphere, and ring collections stay nil unless the scan describes
// them, so an orbital-only rescan never wipes surface detail.
func normalizeScan(e *ScanEvent, _ *Envelope) Bundle {
	var materials []BodyMaterial
	if e.Materials != nil {
		materials = make([]BodyMaterial, 0, len(e.Materials))
		for _, m := range e.Materials {
			materials = append(materials, BodyMaterial{
				SystemAddress: e.SystemAddress,
				BodyID:        e.BodyID,
				Name:          m.Name,
				Percent:       m.Percent,
			})
		}
	}

	var atmosphere []BodyAtmosphereComposition
	if e.AtmosphereComposition != nil {
		atmosphere = make([]BodyAtmosphereComposition, 0, len(e.AtmosphereComposition))
		for _, a := range e.AtmosphereComposition {
			atmosphere = append(atmosphere, BodyAtmosphereComposition{
				SystemAddress: e.SystemAddress,
				BodyID:        e.BodyID,
				Name:          a.Name,
				Percent:       a.Percent,
			})
		}
	}

	var rings []BodyRing
	if e.Rings != nil {
		rings = make([]BodyRing, 0, len(e.Rings))
		for _, r := range e.Rings {
			rings = append(rings, BodyRing{
				SystemAddress: e.SystemAddress,
				BodyID:        e.BodyID,
				Name:          r.Name,
				RingClass:     r.RingClass,
				MassMT:        r.MassMT,
				InnerRad:      r.InnerRad,
				OuterRad:      r.OuterRad,
			})
		}
	}

	bodyType := "Unknown"

	switch {
	case e.StarType != nil && *e.StarType != "":
		bodyType = "Star"
	case e.PlanetClass != nil && *e.PlanetClass != "":
		bodyType = "Planet"
	}

	// The parent chain reduces to the immediate parent's body ID. A
	// present-but-empty chain marks a root body as -1; an absent chain
	// leaves the stored value alone.
	var parent *int64

	if e.Parents != nil {
		if len(e.Parents) > 0 {
			first := e.Parents[0]

			switch {
			case first.Star != nil:
				parent = first.Star
			case first.Planet != nil:
				parent = first.Planet
			case first.Ring != nil:
				parent = first.Ring
			case first.Null != nil:
				parent = first.Null
			}
		} else {
			parent = ptr(int64(-1))
		}
	}

	var compositionIce, compositionMetal, compositionRock *float64
	if e.Composition != nil {
		compositionIce = ptr(e.Composition.Ice)
		compositionMetal = ptr(e.Composition.Metal)
		compositionRock = ptr(e.Composition.Rock)
	}

	var numMaterials, numAtmosphere, numRings *int

	if materials != nil {
		numMaterials = ptr(len(materials))
	}

	if atmosphere != nil {
		numAtmosphere = ptr(len(atmosphere))
	}

	if rings != nil {
		numRings = ptr(len(rings))
	}

	body := Body{
		SystemAddress:            e.SystemAddress,
		BodyID:                   e.BodyID,
		BodyName:                 e.BodyName,
		BodyType:                 bodyType,
		DistanceFromArrivalLS:    ptr(e.DistanceFromArrivalLS),
		MeanAnomaly:              e.MeanAnomaly,
		Eccentricity:             e.Eccentricity,
		AscendingNode:            e.AscendingNode,
		Periapsis:                e.Periapsis,
		SemiMajorAxis:            e.SemiMajorAxis,
		OrbitalPeriod:            e.OrbitalPeriod,
		OrbitalInclination:       e.OrbitalInclination,
		TidalLock:                e.TidalLock,
		RotationPeriod:           e.RotationPeriod,
		AxialTilt:                e.AxialTilt,
		Radius:                   e.Radius,
		MassEM:                   e.MassEM,
		StellarMass:              e.StellarMass,
		AgeMY:                    e.AgeMY,
		StarType:                 e.StarType,
		PlanetClass:              e.PlanetClass,
		Subclass:                 e.Subclass,
		Parent:                   parent,
		AtmosphereType:           e.AtmosphereType,
		AbsoluteMagnitude:        e.AbsoluteMagnitude,
		Luminosity:               e.Luminosity,
		SurfaceTemperature:       e.SurfaceTemperature,
		SurfaceGravity:           e.SurfaceGravity,
		SurfacePressure:          e.SurfacePressure,
		Volcanism:                e.Volcanism,
		TerraformState:           e.TerraformState,
		Landable:                 e.Landable,
		Atmosphere:               e.Atmosphere,
		ReserveLevel:             e.ReserveLevel,
		CompositionIce:           compositionIce,
		CompositionMetal:         compositionMetal,
		CompositionRock:          compositionRock,
		NumMaterials:             numMaterials,
		NumAtmosphereComposition: numAtmosphere,
		NumRings:                 numRings,
		Materials:                materials,
		AtmosphereComposition:    atmosphere,
		Rings:                    rings,
	}

	return Bundle{Bodies: []Body{body}}
}

// normalizeScanBaryCentre records a barycentre as a synthetic body
// carrying only orbital parameters. The body name is derived from the
// system since barycentres have none of their own.
func normalizeScanBaryCentre(e *ScanBaryCentreEvent, _ *Envelope) Bundle {
	body := Body{
		SystemAddress:      e.SystemAddress,
		BodyID:             e.BodyID,
		BodyName:           e.StarSystem + " Barycentre",
		BodyType:           "Barycentre",
		MeanAnomaly:        ptr(e.MeanAnomaly),
		Eccentricity:       ptr(e.Eccentricity),
		AscendingNode:      ptr(e.AscendingNode),
		Periapsis:          ptr(e.Periapsis),
		SemiMajorAxis:      ptr(e.SemiMajorAxis),
		OrbitalPeriod:      ptr(e.OrbitalPeriod),
		OrbitalInclination: ptr(e.OrbitalInclination),
	}

	return Bundle{Bodies: []Body{body}}
}
