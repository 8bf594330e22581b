package echoServer

import (
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/ARUSH-R/rent-and-return/app/echoServer/controller/auth"
	"github.com/ARUSH-R/rent-and-return/app/echoServer/controller/payment"
	"github.com/ARUSH-R/rent-and-return/app/echoServer/controller/product"
	"github.com/ARUSH-R/rent-and-return/app/echoServer/controller/rental"
)

type C struct {
	Auth      *auth.Controller
	Product   *product.Controller
	Rental    *rental.Controller
	Payment   *payment.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)

	// Processor callback; authenticated by signature, not by JWT.
	pub.POST("/payments/webhook", c.Payment.HandleWebhook)

	// Auth
	authed := e.Group("/v1")
	authed.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
	}))

	// Products
	authed.GET("/products", c.Product.List)
	authed.GET("/products/:id", c.Product.Detail)
	// Admin endpoints
	authed.POST("/products", c.Product.Create)
	authed.PUT("/products/:id", c.Product.Update)
	authed.DELETE("/products/:id", c.Product.Delete)
	authed.PUT("/products/:id/restock", c.Product.Restock)

	// Rentals
	authed.POST("/rentals", c.Rental.Create)
	authed.POST("/rentals/:id/return", c.Rental.Return)
	authed.POST("/rentals/:id/cancel", c.Rental.Cancel)
	authed.POST("/rentals/:id/extend", c.Rental.Extend)
	authed.GET("/rentals/my", c.Rental.MyHistory)
	// Admin endpoint
	authed.GET("/rentals", c.Rental.ListByStatus)

	// Payments
	authed.POST("/payments/intents", c.Payment.CreateIntent)
	authed.GET("/payments/:id", c.Payment.Detail)
}
