package models

import "time"

type Lot struct {
	ID          int64     `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Address     string    `yaml:"address" json:"address"`
	PinCode     string    `yaml:"pin_code" json:"pin_code"`
	RatePerHour float64   `yaml:"rate_per_hour" json:"rate_per_hour"`
	TotalSpots  int64     `yaml:"total_spots" json:"total_spots"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
}

type Spot struct {
	ID         int64     `json:"id"`
	LotID      int64     `json:"lot_id"`
	SpotNumber int64     `json:"spot_number"`
	Status     string    `json:"status"` // available, occupied
	CreatedAt  time.Time `json:"created_at"`
}

// OccupancyView is a read-only snapshot of a lot's spot usage.
type OccupancyView struct {
	LotID     int64 `json:"lot_id"`
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Occupied  int64 `json:"occupied"`
}

// LotAvailability is the lot listing entry served to the routing layer.
type LotAvailability struct {
	Lot
	AvailableSpots int64 `json:"available_spots"`
	OccupiedSpots  int64 `json:"occupied_spots"`
}
