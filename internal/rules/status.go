package rules

import "github.com/kirinyoku/tablego/internal/domain"

// transitions lists, for every non-terminal status, the statuses it may move to.
var transitions = map[domain.ReservationStatus][]domain.ReservationStatus{
	domain.StatusBooked: {domain.StatusSeated, domain.StatusCancelled},
	domain.StatusSeated: {domain.StatusFinished, domain.StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the reservation
// lifecycle.
func CanTransition(from, to domain.ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusChange is a requested move of a reservation from Current to Target.
// Target is the raw requested value and may not name a known status.
type StatusChange struct {
	Current domain.ReservationStatus
	Target  string
}

var statusChecks = []Check[StatusChange]{
	func(c StatusChange) error {
		if _, ok := domain.ParseStatus(c.Target); !ok {
			return Validation("Unknown status %s", c.Target)
		}
		return nil
	},
	func(c StatusChange) error {
		if c.Current == domain.StatusFinished {
			return Conflict("A finished reservation cannot be updated")
		}
		return nil
	},
	func(c StatusChange) error {
		if !CanTransition(c.Current, domain.ReservationStatus(c.Target)) {
			return Conflict("Reservation status cannot change from %s to %s", c.Current, c.Target)
		}
		return nil
	},
}

// ValidateStatusChange returns the parsed target status when current may move to it.
func ValidateStatusChange(current domain.ReservationStatus, target string) (domain.ReservationStatus, error) {
	if err := Run(StatusChange{Current: current, Target: target}, statusChecks...); err != nil {
		return "", err
	}
	return domain.ReservationStatus(target), nil
}

// ValidateEdit allows field edits only while the party has not been seated yet.
func ValidateEdit(current domain.ReservationStatus) error {
	if current != domain.StatusBooked {
		return Conflict("Only booked reservations can be edited, reservation is %s", current)
	}
	return nil
}
