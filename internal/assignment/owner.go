package assignment

// OwnerPayload is the full-replace body saved for an owner.
type OwnerPayload struct {
	StationIDs []uint64 `json:"station_ids"`
}

// OwnerEditor tracks the working station set of one owner.
// A station owned by someone else is locked; ownership never moves silently.
type OwnerEditor struct {
	selected OwnerState
	stations map[uint64]StationRef
	ownerOf  map[uint64]uint64
	working  *idSet
}

// NewOwnerEditor seeds an editor for selectedID. The station to owner map is built once here.
func NewOwnerEditor(owners []OwnerState, stations []StationRef, selectedID uint64) (*OwnerEditor, error) {
	e := &OwnerEditor{
		stations: make(map[uint64]StationRef, len(stations)),
		ownerOf:  make(map[uint64]uint64),
	}
	for _, s := range stations {
		e.stations[s.ID] = s
	}
	found := false
	for _, o := range owners {
		if o.ID == selectedID {
			e.selected = o
			found = true
		}
		for _, sid := range o.StationIDs {
			if _, exists := e.ownerOf[sid]; !exists {
				e.ownerOf[sid] = o.ID
			}
		}
	}
	if !found {
		return nil, ErrUnknownOwner
	}
	e.working = newIDSet(e.selected.StationIDs)
	return e, nil
}

// Owner returns the selected owner as fetched.
func (e *OwnerEditor) Owner() OwnerState { return e.selected }

// OwnerOf returns the owner currently holding the station.
func (e *OwnerEditor) OwnerOf(stationID uint64) (uint64, bool) {
	id, ok := e.ownerOf[stationID]
	return id, ok
}

// Disabled reports whether the station's checkbox is locked for the selected owner.
func (e *OwnerEditor) Disabled(stationID uint64) bool {
	owner, ok := e.ownerOf[stationID]
	return ok && owner != e.selected.ID
}

// Assigned reports whether the station is in the working set.
func (e *OwnerEditor) Assigned(stationID uint64) bool { return e.working.has(stationID) }

// Toggle adds or removes a station from the working set.
func (e *OwnerEditor) Toggle(stationID uint64) error {
	if _, ok := e.stations[stationID]; !ok {
		return ErrUnknownStation
	}
	if e.working.has(stationID) {
		e.working.remove(stationID)
		return nil
	}
	if e.Disabled(stationID) {
		return ErrStationOwnedByOther
	}
	e.working.add(stationID)
	return nil
}

// Dirty reports whether the working set differs from the fetched one.
func (e *OwnerEditor) Dirty() bool { return !e.working.equal(e.selected.StationIDs) }

// Payload returns the full station set to save.
func (e *OwnerEditor) Payload() OwnerPayload {
	return OwnerPayload{StationIDs: e.working.slice()}
}
