package domain

import "strconv"

// Unit is a sellable unit as supplied by the inventory.
type Unit struct {
	ID       int64    `json:"id"`
	Project  string   `json:"project"`
	Category Category `json:"category"`
	Price    float64  `json:"price"`
	Area     float64  `json:"area"`
	Floor    int      `json:"floor"`
	Rooms    int      `json:"rooms"`
	Status   string   `json:"status"`
}

// RoomsLabel groups units by room count; zero rooms is a studio.
func (u Unit) RoomsLabel() string {
	if u.Rooms <= 0 {
		return "studio"
	}
	return strconv.Itoa(u.Rooms)
}
