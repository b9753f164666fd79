package types

import "time"

// ExportVersion is written into every export document.
const ExportVersion = 1

// ExportDocument is the full store content in a portable form.
type ExportDocument struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Locations  []Place   `json:"locations"`
	Route      *Route    `json:"route,omitempty"`
}

// Collection names a group of records that observers can watch.
type Collection string

const (
	CollectionPlaces   Collection = "places"
	CollectionRoute    Collection = "route"
	CollectionSettings Collection = "settings"
)

// Snapshot is the committed store content delivered to observers.
type Snapshot struct {
	Places   []Place   `json:"places"`
	Route    *Route    `json:"route"`
	Settings *Settings `json:"settings,omitempty"`
}

// Change is one notification: which collections a write touched and the state after it.
type Change struct {
	Collections []Collection `json:"collections"`
	Snapshot    Snapshot     `json:"snapshot"`
	At          time.Time    `json:"at"`
}

// Touches reports whether the change affected c.
func (c Change) Touches(col Collection) bool {
	for _, x := range c.Collections {
		if x == col {
			return true
		}
	}
	return false
}
