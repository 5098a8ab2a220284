package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository/gormstore"
	"github.com/kirinyoku/tablego/internal/rules"
	"github.com/kirinyoku/tablego/internal/service"
	"github.com/kirinyoku/tablego/internal/service/reservation"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := gormstore.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	policy := rules.DefaultPolicy()
	policy.Location = time.UTC
	policy.Now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(store, nil, events.Nop{}, nil, logger, service.Config{
		Reservation: reservation.Config{Policy: policy},
	})

	return NewRouter(svcs, nil, logger)
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type dataResp[T any] struct {
	Data T `json:"data"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out dataResp[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out.Data
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out.Message
}

func reservationBody(overrides map[string]any) map[string]any {
	data := map[string]any{
		"first_name":    "A",
		"last_name":     "B",
		"mobile_number": "555",
		"date":          "2024-06-05",
		"time":          "12:00",
		"party_size":    2,
	}
	for k, v := range overrides {
		data[k] = v
	}
	return map[string]any{"data": data}
}

type reservationJSON struct {
	ID        int64  `json:"reservation_id"`
	FirstName string `json:"first_name"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	PartySize int    `json:"party_size"`
	Status    string `json:"status"`
}

type tableJSON struct {
	ID            int64  `json:"table_id"`
	Name          string `json:"table_name"`
	Capacity      int    `json:"capacity"`
	ReservationID *int64 `json:"reservation_id"`
}

func TestHealthz(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateReservation(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/reservations", reservationBody(nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[reservationJSON](t, w)
	assert.NotZero(t, res.ID)
	assert.Equal(t, "booked", res.Status)
	assert.Equal(t, "A", res.FirstName)
	assert.Equal(t, "2024-06-05", res.Date)
	assert.Equal(t, 2, res.PartySize)

	w = do(t, r, http.MethodGet, "/reservations/"+strconv.FormatInt(res.ID, 10), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, res.ID, decode[reservationJSON](t, w).ID)
}

func TestCreateReservation_Rejections(t *testing.T) {
	r := setupRouter(t)

	cases := []struct {
		name string
		body any
		msg  string
	}{
		{"tuesday", reservationBody(map[string]any{"date": "2024-06-04"}), "The restaurant is closed on Tuesday!"},
		{"before opening", reservationBody(map[string]any{"time": "09:00"}), "Reservation must be within business hour 10:30 to 21:30"},
		{"after closing", reservationBody(map[string]any{"time": "22:00"}), "Reservation must be within business hour 10:30 to 21:30"},
		{"string party size", reservationBody(map[string]any{"party_size": "2"}), "party_size is required"},
		{"no data", map[string]any{}, "Reservation information required"},
		{"no body", nil, "Reservation information required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/reservations", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.msg, message(t, w))
		})
	}
}

func TestGetReservation_NotFound(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodGet, "/reservations/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Reservation 99 cannot be found", message(t, w))

	w = do(t, r, http.MethodGet, "/reservations/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListReservations_ETag(t *testing.T) {
	r := setupRouter(t)

	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/reservations", reservationBody(map[string]any{"time": "19:00"})).Code)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/reservations", reservationBody(map[string]any{"time": "11:00", "mobile_number": "800-123"})).Code)

	w := do(t, r, http.MethodGet, "/reservations?date=2024-06-05", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]reservationJSON](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, "11:00", list[0].Time)
	assert.Equal(t, "19:00", list[1].Time)

	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)

	req := httptest.NewRequest(http.MethodGet, "/reservations?date=2024-06-05", nil)
	req.Header.Set("If-None-Match", tag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusNotModified, w2.Code)

	w = do(t, r, http.MethodGet, "/reservations?mobile_number=800123", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]reservationJSON](t, w), 1)

	w = do(t, r, http.MethodGet, "/reservations?mobile_number=&date=2024-06-05", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]reservationJSON](t, w), 2, "empty mobile_number lists by date")

	w = do(t, r, http.MethodGet, "/reservations?mobile_number=&date=2024-06-06", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]reservationJSON](t, w))

	w = do(t, r, http.MethodGet, "/reservations?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeatingFlow(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/tables", map[string]any{"data": map[string]any{"table_name": "#1", "capacity": 6}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tbl := decode[tableJSON](t, w)
	assert.Nil(t, tbl.ReservationID)

	w = do(t, r, http.MethodPost, "/tables", map[string]any{"data": map[string]any{"table_name": "Bar #1", "capacity": 1}})
	require.Equal(t, http.StatusCreated, w.Code)
	bar := decode[tableJSON](t, w)

	res := decode[reservationJSON](t, do(t, r, http.MethodPost, "/reservations", reservationBody(map[string]any{"party_size": 4})))
	tablePath := "/tables/" + strconv.FormatInt(tbl.ID, 10)
	seat := map[string]any{"data": map[string]any{"reservation_id": res.ID}}

	w = do(t, r, http.MethodPut, "/tables/"+strconv.FormatInt(bar.ID, 10)+"/seat", seat)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Table capacity not sufficient", message(t, w))

	w = do(t, r, http.MethodPut, tablePath+"/seat", map[string]any{"data": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "reservation_id required", message(t, w))

	w = do(t, r, http.MethodPut, "/tables/404/seat", seat)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "table_id 404 does not exist", message(t, w))

	w = do(t, r, http.MethodPut, tablePath+"/seat", seat)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	seated := decode[tableJSON](t, w)
	require.NotNil(t, seated.ReservationID)
	assert.Equal(t, res.ID, *seated.ReservationID)

	w = do(t, r, http.MethodGet, "/reservations/"+strconv.FormatInt(res.ID, 10), nil)
	assert.Equal(t, "seated", decode[reservationJSON](t, w).Status)

	w = do(t, r, http.MethodPut, tablePath+"/seat", seat)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "reservation is already seated", message(t, w))

	w = do(t, r, http.MethodDelete, tablePath+"/seat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[tableJSON](t, w).ReservationID)

	w = do(t, r, http.MethodGet, "/reservations/"+strconv.FormatInt(res.ID, 10), nil)
	assert.Equal(t, "finished", decode[reservationJSON](t, w).Status)

	w = do(t, r, http.MethodDelete, tablePath+"/seat", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "table_id is not occupied", message(t, w))

	w = do(t, r, http.MethodPut, "/reservations/"+strconv.FormatInt(res.ID, 10)+"/status",
		map[string]any{"data": map[string]any{"status": "cancelled"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "A finished reservation cannot be updated", message(t, w))

	w = do(t, r, http.MethodGet, "/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	names := []string{}
	for _, tb := range decode[[]tableJSON](t, w) {
		names = append(names, tb.Name)
	}
	assert.Equal(t, []string{"#1", "Bar #1"}, names)
}

func TestSeat_TableCheckedFirst(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/tables", map[string]any{"data": map[string]any{"table_name": "#1", "capacity": 4}})
	require.Equal(t, http.StatusCreated, w.Code)
	tablePath := "/tables/" + strconv.FormatInt(decode[tableJSON](t, w).ID, 10)

	w = do(t, r, http.MethodPut, "/tables/999/seat", map[string]any{"data": map[string]any{}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "table_id 999 does not exist", message(t, w))

	w = do(t, r, http.MethodPut, "/tables/999/seat", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "table_id 999 does not exist", message(t, w))

	w = do(t, r, http.MethodPut, tablePath+"/seat", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Table information required", message(t, w))

	w = do(t, r, http.MethodPut, tablePath+"/seat", map[string]any{"data": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "reservation_id required", message(t, w))
}

func TestUpdateStatusAndEdit(t *testing.T) {
	r := setupRouter(t)

	res := decode[reservationJSON](t, do(t, r, http.MethodPost, "/reservations", reservationBody(nil)))
	path := "/reservations/" + strconv.FormatInt(res.ID, 10)

	w := do(t, r, http.MethodPut, path, reservationBody(map[string]any{"party_size": 3}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 3, decode[reservationJSON](t, w).PartySize)

	w = do(t, r, http.MethodPut, path+"/status", map[string]any{"data": map[string]any{"status": "unknown"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unknown status unknown", message(t, w))

	w = do(t, r, http.MethodPut, path+"/status", map[string]any{"data": map[string]any{"status": "cancelled"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode[reservationJSON](t, w).Status)

	w = do(t, r, http.MethodPut, path, reservationBody(nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTable_Invalid(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/tables", map[string]any{"data": map[string]any{"table_name": "X", "capacity": 2}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "table_name is required", message(t, w))

	w = do(t, r, http.MethodGet, "/tables/12", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidJSON(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/tables", bytes.NewBufferString("{nope"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEtagMatches(t *testing.T) {
	tag := `W/"abc"`

	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`W/"abc"`, true},
		{`"abc"`, true},
		{`W/"xyz", W/"abc"`, true},
		{"*", true},
		{`W/"xyz"`, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, etagMatches(tc.header, tag), tc.header)
	}
}
