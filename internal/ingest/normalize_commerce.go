package ingest

// normalizeMarket converts a commodity market snapshot. The listing is
// a full snapshot, so the commodity collection is always concrete and
// replaces the stored one.
func normalizeMarket(e *MarketEvent, _ *Envelope) Bundle {
	commodities := make([]MarketCommodity, 0, len(e.Commodities))
	for _, c := range e.Commodities {
		commodities = append(commodities, MarketCommodity{
			MarketID:  e.MarketID,
			Name:      c.Name,
			Category:  c.Category,
			Stock:     c.Stock,
			Demand:    c.Demand,
			Supply:    c.Supply,
			BuyPrice:  c.BuyPrice,
			SellPrice: c.SellPrice,
		})
	}

	market := Market{
		MarketID:    e.MarketID,
		Timestamp:   e.Timestamp,
		Commodities: commodities,
	}

	return Bundle{Markets: []Market{market}}
}

// normalizeOutfitting converts an outfitting inventory snapshot.
func normalizeOutfitting(e *OutfittingEvent, _ *Envelope) Bundle {
	items := make([]OutfittingItem, 0, len(e.Modules))
	for _, module := range e.Modules {
		items = append(items, OutfittingItem{
			MarketID: e.MarketID,
			Name:     module,
		})
	}

	outfitting := Outfitting{
		MarketID:  e.MarketID,
		Timestamp: e.Timestamp,
		NumItems:  len(items),
		Items:     items,
	}

	return Bundle{Outfittings: []Outfitting{outfitting}}
}

// normalizeShipyard converts a shipyard inventory snapshot. Only CAPI
// sourced listings are trusted; journal-sourced ones miss ships that
// are out of stock, so they produce an empty bundle and the line is
// counted as skipped.
func normalizeShipyard(e *ShipyardEvent, env *Envelope) Bundle {
	if env.Header.GameVersion != "CAPI-Live-shipyard" {
		return Bundle{}
	}

	ships := make([]ShipyardShip, 0, len(e.Ships))
	for _, ship := range e.Ships {
		ships = append(ships, ShipyardShip{
			MarketID: e.MarketID,
			Name:     ship,
		})
	}

	shipyard := Shipyard{
		MarketID:  e.MarketID,
		Timestamp: e.Timestamp,
		NumShips:  len(ships),
		Ships:     ships,
	}

	return Bundle{Shipyards: []Shipyard{shipyard}}
}
