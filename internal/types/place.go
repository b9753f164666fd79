package types

import (
	"math"
	"strings"
)

// Category classifies a place. The set is closed; anything else is stored as CategoryOther.
type Category string

const (
	CategorySpot  Category = "spot"
	CategoryFood  Category = "food"
	CategoryHotel Category = "hotel"
	CategoryOther Category = "other"
)

// ParseCategory normalises free-form category labels into the closed set.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySpot:
		return CategorySpot
	case CategoryFood:
		return CategoryFood
	case CategoryHotel:
		return CategoryHotel
	default:
		return CategoryOther
	}
}

// Label returns the Chinese label used in prompts and exports.
func (c Category) Label() string {
	switch c {
	case CategorySpot:
		return "景点"
	case CategoryFood:
		return "美食"
	case CategoryHotel:
		return "住宿"
	default:
		return "其他"
	}
}

// Place is a point of interest mentioned in trip notes.
// Latitude and Longitude are both zero until the place is geocoded.
type Place struct {
	ID        string   `json:"id" example:"5f0c7c1e-3c7b-4a4e-9a57-2f4f4f0e7a11"`
	Name      string   `json:"name" example:"武侯祠"`
	City      string   `json:"city" example:"成都"`
	Category  Category `json:"type" example:"spot"`
	Note      string   `json:"context" example:"下午去武侯祠"`
	Latitude  float64  `json:"lat" example:"30.6463"`
	Longitude float64  `json:"lng" example:"104.0482"`
}

// Located reports whether the place carries usable coordinates.
func (p Place) Located() bool {
	if p.Latitude == 0 && p.Longitude == 0 {
		return false
	}
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Unlocated returns a copy of the place with its coordinates reset.
func (p Place) Unlocated() Place {
	p.Latitude, p.Longitude = 0, 0
	return p
}

// CreatePlaceRequest is the body of a manual place entry.
type CreatePlaceRequest struct {
	Name     string   `json:"name" example:"锦里"`
	City     string   `json:"city" example:"成都"`
	Category Category `json:"type,omitempty" example:"food"`
	Note     string   `json:"context,omitempty"`
}

// UpdatePlaceRequest carries a partial edit of a place. Nil fields are left unchanged.
// Changing the name or city drops the coordinates so the place gets geocoded again.
type UpdatePlaceRequest struct {
	Name     *string   `json:"name,omitempty"`
	City     *string   `json:"city,omitempty"`
	Category *Category `json:"type,omitempty"`
	Note     *string   `json:"context,omitempty"`
}

// GeocodeStats is the aggregate outcome of one geocoding batch.
type GeocodeStats struct {
	Requested int `json:"requested"`
	Matched   int `json:"matched"`
	Dropped   int `json:"dropped"`
}
