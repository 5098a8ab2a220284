// Package rules holds the business rules that gate every mutation: the ordered
// validation pipeline for reservation and table payloads, the seating
// preconditions and the reservation status state machine.
//
// Every check is a pure function of its input. Lookups happen before a pipeline
// runs and their results travel inside the input value.
package rules

// Check inspects in and returns a non-nil error to reject it.
type Check[T any] func(in T) error

// Run evaluates checks in order and returns the first failure. Checks after a
// failing one are never called, so a check may rely on everything earlier in
// the list having passed.
func Run[T any](in T, checks ...Check[T]) error {
	for _, check := range checks {
		if err := check(in); err != nil {
			return err
		}
	}

	return nil
}
