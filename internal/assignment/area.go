package assignment

// AreaPayload is the full-replace body saved for an area.
type AreaPayload struct {
	StationIDs []uint64 `json:"station_ids"`
	ManagerIDs []uint64 `json:"manager_ids"`
}

// ImportResult reports how each bulk import token was handled.
type ImportResult struct {
	Added       []string // Station ids added to the working set.
	Unresolved  []string // Tokens matching no station.
	Conflicting []string // Stations already in another area.
	Unchanged   []string // Stations already in the working set.
}

// Skipped returns the tokens that were not added because they were unresolved or conflicting.
func (r ImportResult) Skipped() []string {
	out := make([]string, 0, len(r.Unresolved)+len(r.Conflicting))
	out = append(out, r.Unresolved...)
	return append(out, r.Conflicting...)
}

// AreaEditor tracks the working assignment of one area against all fetched areas.
type AreaEditor struct {
	selected   AreaState
	stations   map[uint64]StationRef
	byBusiness map[string]StationRef
	otherArea  map[uint64]AreaState // station id -> area holding it, excluding the selected area
	working    *idSet
	manager    *uint64
}

// NewAreaEditor seeds an editor for selectedID from the fetched areas and stations.
func NewAreaEditor(areas []AreaState, stations []StationRef, selectedID uint64) (*AreaEditor, error) {
	e := &AreaEditor{
		stations:   make(map[uint64]StationRef, len(stations)),
		byBusiness: make(map[string]StationRef, len(stations)),
		otherArea:  make(map[uint64]AreaState),
	}
	for _, s := range stations {
		e.stations[s.ID] = s
		e.byBusiness[s.StationID] = s
	}
	found := false
	for _, a := range areas {
		if a.ID == selectedID {
			e.selected = a
			found = true
			continue
		}
		for _, id := range a.StationIDs {
			e.otherArea[id] = a
		}
	}
	if !found {
		return nil, ErrUnknownArea
	}
	e.working = newIDSet(e.selected.StationIDs)
	if len(e.selected.ManagerIDs) > 0 {
		m := e.selected.ManagerIDs[0]
		e.manager = &m
	}
	return e, nil
}

// Area returns the selected area as fetched.
func (e *AreaEditor) Area() AreaState { return e.selected }

// Assigned reports whether the station is in the working set.
func (e *AreaEditor) Assigned(stationID uint64) bool { return e.working.has(stationID) }

// ConflictingArea returns the other area holding the station, if any.
func (e *AreaEditor) ConflictingArea(stationID uint64) (AreaState, bool) {
	if e.working.has(stationID) {
		return AreaState{}, false
	}
	a, ok := e.otherArea[stationID]
	return a, ok
}

// Toggle adds or removes a station from the working set.
// A station held by another area and not part of this one cannot be added.
func (e *AreaEditor) Toggle(stationID uint64) error {
	if _, ok := e.stations[stationID]; !ok {
		return ErrUnknownStation
	}
	if e.working.has(stationID) {
		e.working.remove(stationID)
		return nil
	}
	if _, taken := e.ConflictingArea(stationID); taken {
		return ErrStationInOtherArea
	}
	e.working.add(stationID)
	return nil
}

// Import resolves business station ids from free text and adds the assignable ones.
func (e *AreaEditor) Import(text string) ImportResult {
	var res ImportResult
	for _, token := range ParseStationTokens(text) {
		station, ok := e.byBusiness[token]
		switch {
		case !ok:
			res.Unresolved = append(res.Unresolved, token)
		case e.working.has(station.ID):
			res.Unchanged = append(res.Unchanged, token)
		default:
			if _, taken := e.otherArea[station.ID]; taken {
				res.Conflicting = append(res.Conflicting, token)
				continue
			}
			e.working.add(station.ID)
			res.Added = append(res.Added, token)
		}
	}
	return res
}

// SetManager selects the single area manager; nil clears it.
func (e *AreaEditor) SetManager(userID *uint64) {
	if userID == nil {
		e.manager = nil
		return
	}
	id := *userID
	e.manager = &id
}

// Manager returns the selected manager id.
func (e *AreaEditor) Manager() (uint64, bool) {
	if e.manager == nil {
		return 0, false
	}
	return *e.manager, true
}

// StationIDs returns the working set in insertion order.
func (e *AreaEditor) StationIDs() []uint64 { return e.working.slice() }

// Dirty reports whether the working state differs from the fetched area.
func (e *AreaEditor) Dirty() bool {
	if !e.working.equal(e.selected.StationIDs) {
		return true
	}
	return !newIDSet(e.managerIDs()).equal(e.selected.ManagerIDs)
}

// Payload returns the full station and manager sets to save.
func (e *AreaEditor) Payload() AreaPayload {
	return AreaPayload{StationIDs: e.working.slice(), ManagerIDs: e.managerIDs()}
}

func (e *AreaEditor) managerIDs() []uint64 {
	if e.manager == nil {
		return []uint64{}
	}
	return []uint64{*e.manager}
}
