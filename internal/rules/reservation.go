package rules

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/kirinyoku/tablego/internal/domain"
)

const DateLayout = "2006-01-02"

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// ReservationPayload carries the raw, loosely typed values of a reservation
// request body. A nil *ReservationPayload means the request had no data object.
type ReservationPayload struct {
	FirstName    any
	LastName     any
	MobileNumber any
	Date         any
	Time         any
	PartySize    any
	Status       any
}

// NewReservationPayload maps a decoded data object onto a payload. Both the
// current field names and the legacy reservation_date, reservation_time and
// people spellings are accepted.
func NewReservationPayload(data map[string]any) *ReservationPayload {
	if data == nil {
		return nil
	}

	return &ReservationPayload{
		FirstName:    data["first_name"],
		LastName:     data["last_name"],
		MobileNumber: data["mobile_number"],
		Date:         firstPresent(data, "date", "reservation_date"),
		Time:         firstPresent(data, "time", "reservation_time"),
		PartySize:    firstPresent(data, "party_size", "people"),
		Status:       data["status"],
	}
}

// Reservation converts a payload that passed ValidateReservation into a
// domain value. Status is left for the caller to set.
func (p *ReservationPayload) Reservation() domain.Reservation {
	date, _ := parseDate(p.Date)
	t, _ := p.Time.(string)
	size, _ := asInt(p.PartySize)

	return domain.Reservation{
		FirstName:    strings.TrimSpace(p.FirstName.(string)),
		LastName:     strings.TrimSpace(p.LastName.(string)),
		MobileNumber: strings.TrimSpace(p.MobileNumber.(string)),
		Date:         date,
		Time:         t,
		PartySize:    size,
	}
}

// ReservationInput is what the reservation pipeline inspects.
type ReservationInput struct {
	Payload *ReservationPayload
	Policy  Policy
}

var reservationChecks = []Check[ReservationInput]{
	hasReservationData,
	requiredText("first_name", func(p *ReservationPayload) any { return p.FirstName }),
	requiredText("last_name", func(p *ReservationPayload) any { return p.LastName }),
	requiredText("mobile_number", func(p *ReservationPayload) any { return p.MobileNumber }),
	validDate,
	hasTime,
	validTime,
	validPartySize,
	notClosedWeekday,
	inFuture,
	withinBusinessHours,
	statusIsBooked,
}

// ValidateReservation runs the reservation pipeline used by both create and
// full edit requests.
func ValidateReservation(p *ReservationPayload, policy Policy) error {
	return Run(ReservationInput{Payload: p, Policy: policy}, reservationChecks...)
}

func hasReservationData(in ReservationInput) error {
	if in.Payload == nil {
		return Validation("Reservation information required")
	}
	return nil
}

func requiredText(field string, get func(*ReservationPayload) any) Check[ReservationInput] {
	return func(in ReservationInput) error {
		s, ok := get(in.Payload).(string)
		if !ok || strings.TrimSpace(s) == "" {
			return Validation("%s is required", field)
		}
		return nil
	}
}

func validDate(in ReservationInput) error {
	if _, ok := parseDate(in.Payload.Date); !ok {
		return Validation("date must be valid")
	}
	return nil
}

func hasTime(in ReservationInput) error {
	if s, ok := in.Payload.Time.(string); !ok || s == "" {
		return Validation("time is required")
	}
	return nil
}

func validTime(in ReservationInput) error {
	if !timeOfDay.MatchString(in.Payload.Time.(string)) {
		return Validation("time must be valid")
	}
	return nil
}

func validPartySize(in ReservationInput) error {
	if n, ok := asInt(in.Payload.PartySize); !ok || n <= 0 {
		return Validation("party_size is required")
	}
	return nil
}

func notClosedWeekday(in ReservationInput) error {
	at := in.at()
	if at.Weekday() == in.Policy.ClosedWeekday {
		return Validation("The restaurant is closed on %s!", in.Policy.ClosedWeekday)
	}
	return nil
}

func inFuture(in ReservationInput) error {
	if in.at().Before(in.Policy.now()) {
		return Validation("Reservation must be made for the future")
	}
	return nil
}

// withinBusinessHours compares at minute precision, so both bounds are
// bookable and 21:30:45 counts as 21:30.
func withinBusinessHours(in ReservationInput) error {
	at := in.at()
	minute := time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute

	if minute < in.Policy.Open.Truncate(time.Minute) || minute > in.Policy.Close.Truncate(time.Minute) {
		return Validation("%s", in.Policy.hoursMessage())
	}
	return nil
}

func statusIsBooked(in ReservationInput) error {
	if in.Payload.Status == nil {
		return nil
	}

	if s, ok := in.Payload.Status.(string); ok && s == string(domain.StatusBooked) {
		return nil
	}

	return Validation("Status cannot be %v", in.Payload.Status)
}

// at combines the date and time of an input whose date and time checks
// already passed.
func (in ReservationInput) at() time.Time {
	date, _ := parseDate(in.Payload.Date)
	layout := DateLayout + " 15:04"
	if len(in.Payload.Time.(string)) > 5 {
		layout = DateLayout + " 15:04:05"
	}

	at, _ := time.ParseInLocation(layout, date+" "+in.Payload.Time.(string), in.Policy.location())
	return at
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date as YYYY-MM-DD.
func parseDate(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}

	s = strings.TrimSpace(s)
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d.Format(DateLayout), true
	}

	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.Format(DateLayout), true
	}

	return "", false
}

// ParseDate validates a YYYY-MM-DD query value.
func ParseDate(s string) (string, error) {
	d, ok := parseDate(s)
	if !ok {
		return "", Validation("date must be valid")
	}
	return d, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

func firstPresent(data map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			return v
		}
	}
	return nil
}
