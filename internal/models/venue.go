package models

// Venue is an exam room with a fixed seating capacity.
type Venue struct {
	ID          string `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
	Capacity    int    `db:"capacity" json:"capacity"`
	IsAvailable bool   `db:"is_available" json:"is_available"`
}
