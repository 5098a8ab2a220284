package httpgin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/tablego/internal/repository"
	redisrepo "github.com/kirinyoku/tablego/internal/repository/redis"
	"github.com/kirinyoku/tablego/internal/rules"
	"github.com/kirinyoku/tablego/internal/service"
	"github.com/kirinyoku/tablego/internal/service/reservation"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	reservations := r.Group("/reservations")
	{
		reservations.GET("", handleListReservations(svcs))
		reservations.POST("", handleCreateReservation(svcs, idem))
		reservations.GET("/:reservation_id", handleGetReservation(svcs))
		reservations.PUT("/:reservation_id", handleUpdateReservation(svcs))
		reservations.PUT("/:reservation_id/status", handleUpdateStatus(svcs))
	}

	tables := r.Group("/tables")
	{
		tables.GET("", handleListTables(svcs))
		tables.POST("", handleCreateTable(svcs))
		tables.GET("/:table_id", handleGetTable(svcs))
		tables.PUT("/:table_id/seat", handleSeat(svcs))
		tables.DELETE("/:table_id/seat", handleFree(svcs))
	}

	return r
}

// @Summary  List reservations
// @Description  Reservations of one day ordered by time, or a search by mobile number.
// @Param    date           query  string  false  "YYYY-MM-DD, defaults to today"
// @Param    mobile_number  query  string  false  "fragment of a mobile number"
// @Param    active         query  bool    false  "also hide cancelled reservations"
// @Success  200  {object}  ReservationListResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /reservations [get]
func handleListReservations(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if mobile := c.Query("mobile_number"); mobile != "" {
			list, err := svcs.Reservation.Search(ctx, mobile)
			if err != nil {
				respondErr(c, err)
				return
			}
			writeCachedData(c, list)
			return
		}

		active, _ := strconv.ParseBool(c.Query("active"))
		list, err := svcs.Reservation.List(ctx, c.Query("date"), active)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCachedData(c, list)
	}
}

// @Summary  Create reservation (idempotent)
// @Param    Idempotency-Key  header  string  false  "replays the first response for the same key"
// @Param    req  body  ReservationRequest  true  "payload"
// @Success  201  {object}  ReservationResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "idempotency key in progress"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /reservations [post]
func handleCreateReservation(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		data, ok := bindData(c)
		if !ok {
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var storageKey string
		if idem != nil && idemKey != "" {
			storageKey = redisrepo.KeyIdemReservation(idemKey)

			if payload, ok, _ := idem.GetResult(ctx, storageKey); ok {
				replay(c, idemKey, payload)
				return
			}

			locked, err := idem.AcquireLock(ctx, storageKey, time.Minute)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(ctx, storageKey); ok {
					replay(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Message: "idempotency key in progress"})
				return
			}
		}

		res, err := svcs.Reservation.Create(ctx, rules.NewReservationPayload(data), "ip:"+c.ClientIP())
		if err != nil {
			if storageKey != "" {
				_ = idem.Release(ctx, storageKey)
			}
			respondErr(c, err)
			return
		}

		body, err := json.Marshal(envelope{res})
		if err != nil {
			respondErr(c, err)
			return
		}

		if storageKey != "" {
			_ = idem.SaveResult(ctx, storageKey, string(body))
			c.Header("Idempotency-Key", idemKey)
		}

		c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
	}
}

// @Summary  Get reservation
// @Param    reservation_id  path  int  true  "Reservation ID"
// @Success  200  {object}  ReservationResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /reservations/{reservation_id} [get]
func handleGetReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := reservationIDParam(c)
		if !ok {
			return
		}

		res, err := svcs.Reservation.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCachedData(c, res)
	}
}

// @Summary  Edit reservation
// @Description  Replaces every editable field. Only booked reservations can be edited.
// @Param    reservation_id  path  int  true  "Reservation ID"
// @Param    req  body  ReservationRequest  true  "payload"
// @Success  200  {object}  ReservationResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /reservations/{reservation_id} [put]
func handleUpdateReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := reservationIDParam(c)
		if !ok {
			return
		}

		data, ok := bindData(c)
		if !ok {
			return
		}

		res, err := svcs.Reservation.Update(c.Request.Context(), id, rules.NewReservationPayload(data))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, envelope{res})
	}
}

// @Summary  Update reservation status
// @Description  Seating requires table_id and runs the same checks as PUT /tables/{table_id}/seat.
// @Param    reservation_id  path  int  true  "Reservation ID"
// @Param    req  body  StatusRequest  true  "payload"
// @Success  200  {object}  ReservationResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /reservations/{reservation_id}/status [put]
func handleUpdateStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := reservationIDParam(c)
		if !ok {
			return
		}

		data, ok := bindData(c)
		if !ok {
			return
		}

		res, err := svcs.Reservation.UpdateStatus(
			c.Request.Context(),
			id,
			stringFromData(data, "status"),
			idFromData(data, "table_id"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, envelope{res})
	}
}

// @Summary  List tables
// @Success  200  {object}  TableListResponse
// @Router   /tables [get]
func handleListTables(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Tables.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCachedData(c, list)
	}
}

// @Summary  Create table
// @Param    req  body  TableRequest  true  "payload"
// @Success  201  {object}  TableResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /tables [post]
func handleCreateTable(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, ok := bindData(c)
		if !ok {
			return
		}

		t, err := svcs.Tables.Create(c.Request.Context(), rules.NewTablePayload(data))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, envelope{t})
	}
}

// @Summary  Get table
// @Param    table_id  path  int  true  "Table ID"
// @Success  200  {object}  TableResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /tables/{table_id} [get]
func handleGetTable(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := tableIDParam(c)
		if !ok {
			return
		}

		t, err := svcs.Tables.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCachedData(c, t)
	}
}

// @Summary  Seat a reservation at a table
// @Param    table_id  path  int  true  "Table ID"
// @Param    req  body  SeatRequest  true  "payload"
// @Success  200  {object}  TableResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /tables/{table_id}/seat [put]
func handleSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := tableIDParam(c)
		if !ok {
			return
		}

		data, ok := bindData(c)
		if !ok {
			return
		}

		if data == nil {
			// The table must exist before the body is looked at.
			if _, err := svcs.Tables.Get(c.Request.Context(), id); err != nil {
				respondErr(c, err)
				return
			}
			badRequest(c, "Table information required")
			return
		}

		t, err := svcs.Seating.Assign(c.Request.Context(), id, idFromData(data, "reservation_id"))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, envelope{t})
	}
}

// @Summary  Free a table
// @Description  Finishes the reservation seated at the table.
// @Param    table_id  path  int  true  "Table ID"
// @Success  200  {object}  TableResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /tables/{table_id}/seat [delete]
func handleFree(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := tableIDParam(c)
		if !ok {
			return
		}

		t, err := svcs.Seating.Free(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, envelope{t})
	}
}

// --- Helpers ---

// bindData decodes the request body. An empty body yields nil data so the
// validation rules report the missing object.
func bindData(c *gin.Context) (map[string]any, bool) {
	var req dataRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid JSON body")
		return nil, false
	}
	return req.Data, true
}

func reservationIDParam(c *gin.Context) (int64, bool) {
	raw := c.Param("reservation_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Reservation " + raw + " cannot be found"})
		return 0, false
	}
	return id, true
}

func tableIDParam(c *gin.Context) (int64, bool) {
	raw := c.Param("table_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "table_id " + raw + " does not exist"})
		return 0, false
	}
	return id, true
}

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	if msg, ok := rules.MessageOf(err); ok {
		status := http.StatusBadRequest
		if rules.KindOf(err) == rules.KindNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Message: msg})
		return
	}

	var rl *reservation.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Round(time.Second).Seconds())))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: rl.Error()})
		return
	}

	if errors.Is(err, repository.ErrConflict) {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Message: "conflicting concurrent update, retry"})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
}
