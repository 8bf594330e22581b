// Package main rent & return API.
//
// @title           Rent & Return API
// @version         1.0
// @description     product rental service (products, rentals, payments, users).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/ARUSH-R/rent-and-return/app/echoServer"
	authctrl "github.com/ARUSH-R/rent-and-return/app/echoServer/controller/auth"
	paymentctrl "github.com/ARUSH-R/rent-and-return/app/echoServer/controller/payment"
	productctrl "github.com/ARUSH-R/rent-and-return/app/echoServer/controller/product"
	rentalctrl "github.com/ARUSH-R/rent-and-return/app/echoServer/controller/rental"
	"github.com/ARUSH-R/rent-and-return/app/echoServer/validation"
	"github.com/ARUSH-R/rent-and-return/config"
	authrepo "github.com/ARUSH-R/rent-and-return/repository/auth"
	cartrepo "github.com/ARUSH-R/rent-and-return/repository/cart"
	paymentrepo "github.com/ARUSH-R/rent-and-return/repository/payment"
	productrepo "github.com/ARUSH-R/rent-and-return/repository/product"
	rentalrepo "github.com/ARUSH-R/rent-and-return/repository/rental"
	striperepo "github.com/ARUSH-R/rent-and-return/repository/stripe"
	authsvc "github.com/ARUSH-R/rent-and-return/service/auth"
	paymentsvc "github.com/ARUSH-R/rent-and-return/service/payment"
	productsvc "github.com/ARUSH-R/rent-and-return/service/product"
	rentalsvc "github.com/ARUSH-R/rent-and-return/service/rental"
	"github.com/ARUSH-R/rent-and-return/util/database"
	"github.com/ARUSH-R/rent-and-return/util/mail"
)

func main() {

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ar := authrepo.New(db)
	pr := productrepo.New(db)
	rr := rentalrepo.New(db)
	payr := paymentrepo.New(db)
	cr := cartrepo.New(db)
	xr := striperepo.NewHTTP(cfg.StripeAPIKey, cfg.StripeWebhookSecret)

	// mail
	var mailer mail.Sender
	if cfg.SMTPAddr != "" {
		mailer = mail.NewSMTP(cfg.SMTPAddr, cfg.SMTPFrom)
	} else {
		mailer = mail.NewLog(log)
	}

	// services
	as := authsvc.New(ar, cfg.JWTSecret)
	ps := productsvc.New(pr)
	rs := rentalsvc.New(rr, pr, cr, mailer, log)
	whs := paymentsvc.New(payr, rs, xr, mailer, log)

	// overdue sweeper
	sweeper := rentalsvc.NewSweeper(rr, log)
	go rentalsvc.RunSweeper(ctx, sweeper, cfg.SweepInterval, log)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	productC := &productctrl.Controller{Svc: ps, V: v, Log: log}
	rentalC := &rentalctrl.Controller{Svc: rs, Auth: as, V: v, Log: log}
	paymentC := &paymentctrl.Controller{Svc: whs, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:    authC,
		Product: productC,
		Rental:  rentalC,
		Payment: paymentC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Info("starting server", "port", port, "sweep_interval", cfg.SweepInterval.String())

	e.Logger.Fatal(e.Start(":" + port))
}
