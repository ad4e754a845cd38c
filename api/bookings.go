package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Domenick1991/flightbookings/internal/domain"
	"github.com/Domenick1991/flightbookings/internal/service/booking"
	"github.com/gin-gonic/gin"
)

const defaultPageSize = 10

type BookingHandler struct {
	service booking.BookingUseCase
}

type countResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Code  domain.ErrorKind `json:"code"`
	Error string           `json:"error"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("", h.create)
	router.GET("/count", h.count)
	router.GET("/search", h.search)
	router.GET("/page", h.paginated)
	router.GET("/range", h.byTimeRange)
	router.GET("/:id", h.get)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req domain.FlightBookingPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.InvalidInput(err.Error()))
		return
	}

	b, err := h.service.Add(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) update(c *gin.Context) {
	var req domain.FlightBookingPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.InvalidInput(err.Error()))
		return
	}

	b, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) delete(c *gin.Context) {
	b, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) search(c *gin.Context) {
	bookings, err := h.service.Search(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) count(c *gin.Context) {
	n, err := h.service.Count(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, countResponse{Count: n})
}

func (h *BookingHandler) paginated(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		writeError(c, domain.InvalidInput("page must be an integer"))
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil {
		writeError(c, domain.InvalidInput("page_size must be an integer"))
		return
	}

	bookings, err := h.service.Paginated(c.Request.Context(), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) byTimeRange(c *gin.Context) {
	start, err := strconv.ParseUint(c.Query("start"), 10, 64)
	if err != nil {
		writeError(c, domain.InvalidInput("start must be an unsigned integer timestamp"))
		return
	}
	end, err := strconv.ParseUint(c.Query("end"), 10, 64)
	if err != nil {
		writeError(c, domain.InvalidInput("end must be an unsigned integer timestamp"))
		return
	}

	bookings, err := h.service.ByTimeRange(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func writeError(c *gin.Context, err error) {
	var storeErr *domain.Error
	if !errors.As(err, &storeErr) {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: domain.KindStorageFault, Error: err.Error()})
		return
	}
	c.JSON(statusFor(storeErr.Kind), errorResponse{Code: storeErr.Kind, Error: storeErr.Message})
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindInvalidTimeRange:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
