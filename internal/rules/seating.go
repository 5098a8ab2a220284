package rules

import "github.com/kirinyoku/tablego/internal/domain"

// SeatRequest is the request context of a seating operation: the table and
// reservation loaded (and locked) before any check runs.
type SeatRequest struct {
	Table       domain.Table
	Reservation domain.Reservation
}

var seatChecks = []Check[SeatRequest]{
	func(r SeatRequest) error {
		if r.Reservation.Status == domain.StatusSeated {
			return Conflict("reservation is already seated")
		}
		return nil
	},
	func(r SeatRequest) error {
		if r.Reservation.Status.IsTerminal() {
			return Conflict("reservation is %s", r.Reservation.Status)
		}
		return nil
	},
	func(r SeatRequest) error {
		if r.Reservation.PartySize > r.Table.Capacity {
			return Validation("Table capacity not sufficient")
		}
		return nil
	},
	func(r SeatRequest) error {
		if r.Table.Occupied() {
			return Conflict("table_id is occupied")
		}
		return nil
	},
}

// ValidateSeat checks that the reservation can be seated at the table.
func ValidateSeat(r SeatRequest) error {
	return Run(r, seatChecks...)
}

// ValidateFree checks that the table currently holds a reservation.
func ValidateFree(t domain.Table) error {
	if !t.Occupied() {
		return Conflict("table_id is not occupied")
	}
	return nil
}
