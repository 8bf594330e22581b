package payment

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ARUSH-R/rent-and-return/app/echoServer/jwtx"
	paymentsvc "github.com/ARUSH-R/rent-and-return/service/payment"
)

type Controller struct {
	Svc paymentsvc.Service
	Log *slog.Logger
}

// POST /v1/payments/intents
func (h *Controller) CreateIntent(c echo.Context) error {
	var req struct {
		RentalID int64 `json:"rental_id"`
	}
	if err := c.Bind(&req); err != nil || req.RentalID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	out, err := h.Svc.CreateIntent(c.Request().Context(), uid, req.RentalID)
	if err != nil {
		switch paymentsvc.Code(err) {
		case paymentsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "rental not found"})
		case paymentsvc.ErrInvalidState:
			return c.JSON(http.StatusConflict, echo.Map{"message": "rental is not awaiting payment"})
		default:
			h.Log.Error("create intent", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, out)
}

// GET /v1/payments/:id
func (h *Controller) Detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	p, err := h.Svc.ByID(c.Request().Context(), id)
	if err != nil {
		if paymentsvc.Code(err) == paymentsvc.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "payment not found"})
		}
		h.Log.Error("payment detail", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, p)
}

// POST /v1/payments/webhook
//
// Response codes matter here: the processor redelivers on non-2xx, so only
// genuinely retryable failures say so.
func (h *Controller) HandleWebhook(c echo.Context) error {
	sig := c.Request().Header.Get("Stripe-Signature")
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unreadable body"})
	}

	if err := h.Svc.HandleWebhook(c.Request().Context(), sig, raw); err != nil {
		switch paymentsvc.Code(err) {
		case paymentsvc.ErrBadSignature:
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "bad signature"})
		case paymentsvc.ErrBadPayload:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "bad payload"})
		case paymentsvc.ErrUnknownTransaction:
			// Reported and rejected; the processor will retry delivery.
			return c.JSON(http.StatusNotFound, echo.Map{"message": "unknown transaction"})
		default:
			h.Log.Error("payment webhook", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}
