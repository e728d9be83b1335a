package models

// Category device category
type Category string

const (
	CategoryWearable   Category = "wearable"
	CategoryAmbulance  Category = "ambulance"
	CategoryDrone      Category = "drone"
	CategoryHelicopter Category = "helicopter"
	CategoryJet        Category = "jet"
)

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryWearable, CategoryAmbulance, CategoryDrone, CategoryHelicopter, CategoryJet:
		return true
	}
	return false
}

// Status device liveness
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Location last known coordinate, fixed at registration
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Device a monitored entity
type Device struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Category Category  `json:"category"`
	Location *Location `json:"location,omitempty"`
	Status   Status    `json:"status"`
	LastSeen *int64    `json:"last_seen,omitempty"` // ms since epoch, nil until first reading
	Muted    bool      `json:"muted"`
	Vitals   []Reading `json:"vitals"` // oldest first
}

// Latest returns the newest reading, if any
func (d *Device) Latest() (Reading, bool) {
	if len(d.Vitals) == 0 {
		return Reading{}, false
	}
	return d.Vitals[len(d.Vitals)-1], true
}

// Clone deep-copies d so callers can read it without holding the registry lock
func (d *Device) Clone() Device {
	out := *d
	if d.Location != nil {
		loc := *d.Location
		out.Location = &loc
	}
	if d.LastSeen != nil {
		ls := *d.LastSeen
		out.LastSeen = &ls
	}
	out.Vitals = make([]Reading, len(d.Vitals))
	for i, r := range d.Vitals {
		out.Vitals[i] = r.Clone()
	}
	return out
}
