package models

import "time"

type Reservation struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	SpotID        int64      `json:"spot_id"`
	SpotNumber    int64      `json:"spot_number"`
	LotID         int64      `json:"lot_id"`
	LotName       string     `json:"lot_name"`
	VehicleNumber string     `json:"vehicle_number"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Cost          *float64   `json:"cost,omitempty"`
	Status        string     `json:"status"` // open, closed
	CreatedAt     time.Time  `json:"created_at"`
}

// IsOpen reports whether the reservation still holds its spot.
func (r *Reservation) IsOpen() bool {
	return r.Status == ReservationOpen
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// ReservationPage is a paginated slice of a user's history.
type ReservationPage struct {
	Reservations []*Reservation `json:"reservations"`
	Pagination   Pagination     `json:"pagination"`
}

// DashboardStats aggregates a user's parking usage.
type DashboardStats struct {
	TotalReservations     int64        `json:"total_reservations"`
	CompletedReservations int64        `json:"completed_reservations"`
	ActiveReservations    int64        `json:"active_reservations"`
	TotalSpent            float64      `json:"total_spent"`
	MostUsedLot           string       `json:"most_used_lot,omitempty"`
	CurrentReservation    *Reservation `json:"current_reservation,omitempty"`
	RecentReservations    []*Reservation `json:"recent_reservations"`
	LotsCount             int64        `json:"lots_count"`
}
