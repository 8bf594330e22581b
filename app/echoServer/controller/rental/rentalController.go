package rental

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ARUSH-R/rent-and-return/app/echoServer/jwtx"
	"github.com/ARUSH-R/rent-and-return/model"
	authsvc "github.com/ARUSH-R/rent-and-return/service/auth"
	rs "github.com/ARUSH-R/rent-and-return/service/rental"
)

type Controller struct {
	Svc  rs.Service
	Auth authsvc.Service
	V    *validator.Validate
	Log  *slog.Logger
}

// POST /v1/rentals
func (h *Controller) Create(c echo.Context) error {
	var req CreateRentalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	user, err := h.Auth.CurrentUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	start := time.Now().UTC()
	end := start.Add(time.Duration(req.DurationDays) * 24 * time.Hour)

	out, err := h.Svc.Create(c.Request().Context(), user, req.ProductID, start, end)
	if err != nil {
		switch rs.Code(err) {
		case rs.ErrBadPeriod:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "rental duration must be between 1 and 30 days"})
		case rs.ErrActiveRental:
			return c.JSON(http.StatusConflict, echo.Map{"message": "you already have an active rental"})
		case rs.ErrNoStock:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no stock available"})
		case rs.ErrProductUnavailable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "product is not available for rental"})
		case rs.ErrProductNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "product not found"})
		default:
			h.Log.Error("rental create", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}

	return c.JSON(http.StatusCreated, out)
}

// POST /v1/rentals/:id/return
func (h *Controller) Return(c echo.Context) error {
	id, uid, ok := h.idAndUser(c)
	if !ok {
		return nil
	}
	if err := h.Svc.Return(c.Request().Context(), uid, id); err != nil {
		return h.mapLifecycleErr(c, "rental return", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "returned"})
}

// POST /v1/rentals/:id/cancel
func (h *Controller) Cancel(c echo.Context) error {
	id, uid, ok := h.idAndUser(c)
	if !ok {
		return nil
	}
	if err := h.Svc.Cancel(c.Request().Context(), uid, id); err != nil {
		return h.mapLifecycleErr(c, "rental cancel", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "cancelled"})
}

// POST /v1/rentals/:id/extend
func (h *Controller) Extend(c echo.Context) error {
	id, uid, ok := h.idAndUser(c)
	if !ok {
		return nil
	}
	var req ExtendRentalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	out, err := h.Svc.Extend(c.Request().Context(), uid, id, req.ExtraDays)
	if err != nil {
		return h.mapLifecycleErr(c, "rental extend", err)
	}
	return c.JSON(http.StatusOK, out)
}

// GET /v1/rentals?status=  (admin)
func (h *Controller) ListByStatus(c echo.Context) error {
	role, _ := jwtx.RoleFromContext(c)
	if role != "admin" {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	st := model.RentalStatus(strings.ToUpper(c.QueryParam("status")))
	if !st.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown status"})
	}
	rows, err := h.Svc.ListByStatus(c.Request().Context(), st)
	if err != nil {
		h.Log.Error("rental list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/rentals/my
func (h *Controller) MyHistory(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	rows, err := h.Svc.MyHistory(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("history", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

func (h *Controller) idAndUser(c echo.Context) (rentalID, userID int64, ok bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
		return 0, 0, false
	}
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		return 0, 0, false
	}
	return id, uid, true
}

func (h *Controller) mapLifecycleErr(c echo.Context, op string, err error) error {
	switch rs.Code(err) {
	case rs.ErrNotOwner:
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	case rs.ErrInvalidState:
		return c.JSON(http.StatusConflict, echo.Map{"message": "rental state does not allow this"})
	case rs.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"message": "concurrent update, retry"})
	case rs.ErrBadPeriod:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid period"})
	case rs.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": "rental not found"})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
