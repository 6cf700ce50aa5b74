package model

// Activity holds the full details of an activity as returned by the
// planning service's catalog lookup. Schedule entries reference
// activities by ID; details are fetched separately and cached.
type Activity struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Description     string  `json:"description,omitempty"`
	Location        string  `json:"location"`
	Cost            float64 `json:"cost,omitempty"`
	AgeMin          int     `json:"age_min,omitempty"`
	AgeMax          int     `json:"age_max,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
}
