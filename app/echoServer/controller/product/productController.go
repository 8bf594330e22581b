package product

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/ARUSH-R/rent-and-return/app/echoServer/jwtx"
	"github.com/ARUSH-R/rent-and-return/model"
	productsvc "github.com/ARUSH-R/rent-and-return/service/product"
)

type Controller struct {
	Svc productsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

func isAdmin(c echo.Context) bool {
	role, _ := jwtx.RoleFromContext(c)
	return role == "admin"
}

// POST /v1/products  (admin)
func (h *Controller) Create(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	var req CreateProductReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	price, err := decimal.NewFromString(req.PricePerDay)
	if err != nil || price.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid price_per_day"})
	}

	by := updater(c)
	p := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		PricePerDay: price,
		Stock:       req.Stock,
		CreatedBy:   &by,
	}
	if err := h.Svc.Create(c.Request().Context(), p); err != nil {
		if err == productsvc.ErrBadPayload {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid payload"})
		}
		h.Log.Error("product create", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, p)
}

// GET /v1/products?available=true&q=&category=
func (h *Controller) List(c echo.Context) error {
	ctx := c.Request().Context()

	if q := c.QueryParam("q"); q != "" {
		rows, err := h.Svc.Search(ctx, q)
		return h.listResp(c, rows, err)
	}
	if cat := c.QueryParam("category"); cat != "" {
		rows, err := h.Svc.ByCategory(ctx, cat)
		return h.listResp(c, rows, err)
	}
	onlyAvailable := c.QueryParam("available") == "true"
	rows, err := h.Svc.List(ctx, onlyAvailable)
	return h.listResp(c, rows, err)
}

func (h *Controller) listResp(c echo.Context, rows []model.Product, err error) error {
	if err != nil {
		h.Log.Error("product list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/products/:id
func (h *Controller) Detail(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return nil
	}
	p, err := h.Svc.ByID(c.Request().Context(), id)
	if err != nil {
		if err == productsvc.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "not found"})
		}
		h.Log.Error("product detail", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, p)
}

// PUT /v1/products/:id  (admin)
func (h *Controller) Update(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, ok := h.pathID(c)
	if !ok {
		return nil
	}
	var req UpdateProductReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	price, err := decimal.NewFromString(req.PricePerDay)
	if err != nil || price.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid price_per_day"})
	}

	by := updater(c)
	p := &model.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		PricePerDay: price,
		UpdatedBy:   &by,
	}
	if err := h.Svc.Update(c.Request().Context(), p); err != nil {
		switch err {
		case productsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "not found"})
		case productsvc.ErrBadPayload:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid payload"})
		}
		h.Log.Error("product update", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "updated"})
}

// DELETE /v1/products/:id  (admin, soft delete)
func (h *Controller) Delete(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, ok := h.pathID(c)
	if !ok {
		return nil
	}
	if err := h.Svc.SoftDelete(c.Request().Context(), id, updater(c)); err != nil {
		if err == productsvc.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "not found"})
		}
		h.Log.Error("product delete", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

// PUT /v1/products/:id/restock  (admin)
func (h *Controller) Restock(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, ok := h.pathID(c)
	if !ok {
		return nil
	}
	var req RestockReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	if err := h.Svc.Restock(c.Request().Context(), id, req.Stock, updater(c)); err != nil {
		switch err {
		case productsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "not found"})
		case productsvc.ErrBadPayload:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid payload"})
		}
		h.Log.Error("product restock", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "restocked"})
}

func (h *Controller) pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
		return 0, false
	}
	return id, true
}

func updater(c echo.Context) string {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return "system"
	}
	return "user:" + strconv.FormatInt(uid, 10)
}
