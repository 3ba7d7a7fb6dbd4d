package model

// POIState represents the per-session state of a circuit stop
type POIState int

const (
	POIStatePending POIState = iota
	POIStateVisiting
	POIStateVisited
	POIStateRemoved
)

// Terminal reports whether no further distance checks apply to the POI
func (s POIState) Terminal() bool {
	return s == POIStateVisited || s == POIStateRemoved
}

func (s POIState) String() string {
	switch s {
	case POIStatePending:
		return "pending"
	case POIStateVisiting:
		return "visiting"
	case POIStateVisited:
		return "visited"
	case POIStateRemoved:
		return "removed"
	}
	return "unknown"
}

// POIRef identifies one stop in a circuit. Immutable once the route starts;
// session state is tracked separately.
type POIRef struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Order     int     `json:"order"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// POIStatus pairs a POI with its current session state. RemainingSeconds is
// populated only while the POI is visiting.
type POIStatus struct {
	POI              POIRef   `json:"poi"`
	State            POIState `json:"-"`
	StateName        string   `json:"state"`
	RemainingSeconds float64  `json:"remainingSeconds,omitempty"`
}
