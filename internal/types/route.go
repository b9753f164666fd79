package types

// Route is the computed visiting order over a subset of places.
// Sequence holds place ids; every id must reference a stored place.
type Route struct {
	Sequence             []string `json:"sequence"`
	TotalDurationMinutes int      `json:"totalDurationMinutes" example:"10"`
	Advice               string   `json:"advice"`
}

// PlanRequest selects the places to order. An empty selection means every located place.
type PlanRequest struct {
	PlaceIDs []string `json:"placeIds"`
}

// PlanResponse returns the route together with the ordered places it references.
type PlanResponse struct {
	Route  Route   `json:"route"`
	Places []Place `json:"places"`
	Saved  bool    `json:"saved"`
}
