package types

// ParseRequest carries the trip notes to extract places from.
type ParseRequest struct {
	Text string `json:"text" example:"第一天下午去武侯祠，晚上在锦里吃小吃"`
}

// ParseResponse lists the located places that replaced the stored ones.
type ParseResponse struct {
	Places []Place      `json:"places"`
	Stats  GeocodeStats `json:"stats"`
}

// GeocodeResponse reports a geocoding pass over stored, unlocated places.
type GeocodeResponse struct {
	Places []Place      `json:"places"`
	Stats  GeocodeStats `json:"stats"`
}
