package httpgin

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kirinyoku/tablego/internal/domain"
)

// dataRequest is the body of every write request: the fields live under a
// top-level "data" object.
type dataRequest struct {
	Data map[string]any `json:"data"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type ReservationResponse struct {
	Data domain.Reservation `json:"data"`
}

type ReservationListResponse struct {
	Data []domain.Reservation `json:"data"`
}

type TableResponse struct {
	Data domain.Table `json:"data"`
}

type TableListResponse struct {
	Data []domain.Table `json:"data"`
}

// Swagger request shapes. Handlers decode into dataRequest so that missing
// and mistyped fields reach the validation rules untouched.
type ReservationRequest struct {
	Data struct {
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		MobileNumber string `json:"mobile_number"`
		Date         string `json:"date" example:"2030-06-05"`
		Time         string `json:"time" example:"18:30"`
		PartySize    int    `json:"party_size"`
	} `json:"data"`
}

type StatusRequest struct {
	Data struct {
		Status  string `json:"status" example:"seated"`
		TableID int64  `json:"table_id,omitempty"`
	} `json:"data"`
}

type TableRequest struct {
	Data struct {
		TableName string `json:"table_name"`
		Capacity  int    `json:"capacity"`
	} `json:"data"`
}

type SeatRequest struct {
	Data struct {
		ReservationID int64 `json:"reservation_id"`
	} `json:"data"`
}

type envelope struct {
	Data any `json:"data"`
}

// idFromData reads an integer id from a decoded data object. Numbers and
// numeric strings are accepted; anything else reads as zero.
func idFromData(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func stringFromData(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}
