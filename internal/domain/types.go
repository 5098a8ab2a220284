package domain

import "time"

type ReservationStatus string

const (
	StatusBooked    ReservationStatus = "booked"
	StatusSeated    ReservationStatus = "seated"
	StatusFinished  ReservationStatus = "finished"
	StatusCancelled ReservationStatus = "cancelled"
)

// Statuses lists every known reservation status in lifecycle order.
var Statuses = []ReservationStatus{StatusBooked, StatusSeated, StatusFinished, StatusCancelled}

// ParseStatus reports whether s names a known reservation status.
func ParseStatus(s string) (ReservationStatus, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}

	return "", false
}

// IsTerminal reports whether no further transition may leave the status.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Reservation is a booking for a party on a given calendar date and time of day.
// Date is kept as YYYY-MM-DD and Time as HH:MM or HH:MM:SS in the venue's local zone.
type Reservation struct {
	ID           int64             `json:"reservation_id"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	MobileNumber string            `json:"mobile_number"`
	Date         string            `json:"date"`
	Time         string            `json:"time"`
	PartySize    int               `json:"party_size"`
	Status       ReservationStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Table is a physical table. ReservationID marks occupancy: nil means the table is free.
type Table struct {
	ID            int64     `json:"table_id"`
	Name          string    `json:"table_name"`
	Capacity      int       `json:"capacity"`
	ReservationID *int64    `json:"reservation_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (t Table) Occupied() bool {
	return t.ReservationID != nil
}
