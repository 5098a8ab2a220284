package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tablego/internal/domain"
)

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Location = time.UTC
	p.Now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return p
}

func validData() map[string]any {
	return map[string]any{
		"first_name":    "A",
		"last_name":     "B",
		"mobile_number": "555",
		"date":          "2024-06-05",
		"time":          "12:00",
		"party_size":    float64(2),
	}
}

func with(data map[string]any, key string, v any) map[string]any {
	data[key] = v
	return data
}

func without(data map[string]any, key string) map[string]any {
	delete(data, key)
	return data
}

func TestValidateReservation_Valid(t *testing.T) {
	p := NewReservationPayload(validData())

	require.NoError(t, ValidateReservation(p, testPolicy()))

	r := p.Reservation()
	assert.Equal(t, "A", r.FirstName)
	assert.Equal(t, "B", r.LastName)
	assert.Equal(t, "555", r.MobileNumber)
	assert.Equal(t, "2024-06-05", r.Date)
	assert.Equal(t, "12:00", r.Time)
	assert.Equal(t, 2, r.PartySize)
}

func TestValidateReservation_LegacyFieldNames(t *testing.T) {
	data := map[string]any{
		"first_name":       "A",
		"last_name":        "B",
		"mobile_number":    "555",
		"reservation_date": "2024-06-05",
		"reservation_time": "12:00:30",
		"people":           json.Number("3"),
	}

	p := NewReservationPayload(data)
	require.NoError(t, ValidateReservation(p, testPolicy()))
	assert.Equal(t, 3, p.Reservation().PartySize)
	assert.Equal(t, "12:00:30", p.Reservation().Time)
}

func TestValidateReservation_Rejections(t *testing.T) {
	cases := []struct {
		name string
		data map[string]any
		msg  string
	}{
		{"no data", nil, "Reservation information required"},
		{"missing first name", without(validData(), "first_name"), "first_name is required"},
		{"blank first name", with(validData(), "first_name", "  "), "first_name is required"},
		{"first name not a string", with(validData(), "first_name", 7.0), "first_name is required"},
		{"missing last name", without(validData(), "last_name"), "last_name is required"},
		{"missing mobile", without(validData(), "mobile_number"), "mobile_number is required"},
		{"bad date", with(validData(), "date", "not-a-date"), "date must be valid"},
		{"impossible date", with(validData(), "date", "2024-02-30"), "date must be valid"},
		{"missing time", without(validData(), "time"), "time is required"},
		{"time not a string", with(validData(), "time", 1200.0), "time is required"},
		{"malformed time", with(validData(), "time", "24:00"), "time must be valid"},
		{"single digit hour", with(validData(), "time", "9:00"), "time must be valid"},
		{"party size missing", without(validData(), "party_size"), "party_size is required"},
		{"party size string", with(validData(), "party_size", "2"), "party_size is required"},
		{"party size zero", with(validData(), "party_size", 0.0), "party_size is required"},
		{"party size fraction", with(validData(), "party_size", 2.5), "party_size is required"},
		{"tuesday", with(validData(), "date", "2024-06-04"), "The restaurant is closed on Tuesday!"},
		{"past", with(validData(), "date", "2024-05-30"), "Reservation must be made for the future"},
		{"too early", with(validData(), "time", "09:00"), "Reservation must be within business hour 10:30 to 21:30"},
		{"one minute early", with(validData(), "time", "10:29"), "Reservation must be within business hour 10:30 to 21:30"},
		{"too late", with(validData(), "time", "22:00"), "Reservation must be within business hour 10:30 to 21:30"},
		{"one minute late", with(validData(), "time", "21:31"), "Reservation must be within business hour 10:30 to 21:30"},
		{"seated status", with(validData(), "status", "seated"), "Status cannot be seated"},
		{"finished status", with(validData(), "status", "finished"), "Status cannot be finished"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateReservation(NewReservationPayload(tc.data), testPolicy())
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func TestValidateReservation_BusinessHourBoundsAreBookable(t *testing.T) {
	for _, tm := range []string{"10:30", "21:30", "21:30:59", "10:30:00"} {
		err := ValidateReservation(NewReservationPayload(with(validData(), "time", tm)), testPolicy())
		assert.NoError(t, err, tm)
	}
}

func TestValidateReservation_BookedStatusAllowed(t *testing.T) {
	err := ValidateReservation(NewReservationPayload(with(validData(), "status", "booked")), testPolicy())
	assert.NoError(t, err)
}

func TestValidateReservation_FirstFailureWins(t *testing.T) {
	// Tuesday, in the past and outside business hours: the weekday check runs first.
	data := validData()
	data["date"] = "2024-05-28"
	data["time"] = "08:00"

	err := ValidateReservation(NewReservationPayload(data), testPolicy())
	assert.EqualError(t, err, "The restaurant is closed on Tuesday!")

	// Missing last name hides every later problem.
	data = without(validData(), "last_name")
	data["time"] = "bogus"
	err = ValidateReservation(NewReservationPayload(data), testPolicy())
	assert.EqualError(t, err, "last_name is required")
}

func TestValidateReservation_PastIsJudgedAgainstPolicyClock(t *testing.T) {
	p := testPolicy()
	p.Now = func() time.Time { return time.Date(2024, 6, 5, 12, 0, 1, 0, time.UTC) }

	err := ValidateReservation(NewReservationPayload(validData()), p)
	assert.EqualError(t, err, "Reservation must be made for the future")

	p.Now = func() time.Time { return time.Date(2024, 6, 5, 11, 59, 0, 0, time.UTC) }
	assert.NoError(t, ValidateReservation(NewReservationPayload(validData()), p))
}

func TestValidateReservation_ConfigurableClosedDay(t *testing.T) {
	p := testPolicy()
	p.ClosedWeekday = time.Wednesday

	err := ValidateReservation(NewReservationPayload(validData()), p)
	assert.EqualError(t, err, "The restaurant is closed on Wednesday!")

	data := with(validData(), "date", "2024-06-04")
	assert.NoError(t, ValidateReservation(NewReservationPayload(data), p))
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	var calls []int
	check := func(i int, fail bool) Check[struct{}] {
		return func(struct{}) error {
			calls = append(calls, i)
			if fail {
				return Validation("check %d failed", i)
			}
			return nil
		}
	}

	err := Run(struct{}{}, check(1, false), check(2, true), check(3, false))

	assert.EqualError(t, err, "check 2 failed")
	assert.Equal(t, []int{1, 2}, calls)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-05", d)

	d, err = ParseDate("2024-06-05T18:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-05", d)

	_, err = ParseDate("06/05/2024")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestParseClockAndWeekday(t *testing.T) {
	d, err := ParseClock("10:30")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Hour+30*time.Minute, d)
	assert.Equal(t, "21:30", FormatClock(21*time.Hour+30*time.Minute))

	_, err = ParseClock("25:00")
	assert.Error(t, err)

	wd, err := ParseWeekday("tuesday")
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, wd)

	_, err = ParseWeekday("caturday")
	assert.Error(t, err)
}

func TestNewReservationPayload_NilData(t *testing.T) {
	assert.Nil(t, NewReservationPayload(nil))
	assert.Equal(t, domain.Reservation{}.Status, NewReservationPayload(validData()).Reservation().Status)
}
