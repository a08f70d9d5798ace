package main

//go:generate swag init

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/satheeshds/lexbill/config"
	"github.com/satheeshds/lexbill/db"
	_ "github.com/satheeshds/lexbill/docs"
	"github.com/satheeshds/lexbill/handlers"
	"github.com/satheeshds/lexbill/models"
	"github.com/satheeshds/lexbill/pricing"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/urfave/cli/v2"
)

// @title           LexBill API
// @version         1.0.0
// @description     API for pricing, issuing and collecting legal invoices: billing lines, discounts, VAT and amounts advanced by the attorney.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.basic  BasicAuth

func main() {
	app := &cli.App{
		Name:  "lexbill",
		Usage: "price and track legal invoices",
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
			c.App.Metadata = map[string]any{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:      "quote",
				Usage:     "price an invoice draft from a JSON file and print the submission",
				ArgsUsage: "<draft.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "catalog",
						Usage:   "YAML catalog overriding the built-in prices",
						EnvVars: []string{"CATALOG_PATH"},
					},
				},
				Action: quote,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("lexbill failed", "error", err)
		os.Exit(1)
	}
}

func appConfig(c *cli.Context) config.Config {
	return c.App.Metadata["config"].(config.Config)
}

func serve(c *cli.Context) error {
	cfg := appConfig(c)

	if cfg.CatalogPath != "" {
		catalog, err := pricing.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		handlers.SetBaseCatalog(pricing.DefaultCatalog().Merge(catalog))
		slog.Info("catalog loaded", "path", cfg.CatalogPath,
			"procedures", len(catalog.Procedures), "services", len(catalog.Services))
	}

	database, err := db.Open(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}

	// Set shared DB for handlers
	handlers.DB = database

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router(cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func router(cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health routes, no auth
	r.Get("/health/live", handlers.Live)
	r.Get("/health/ready", handlers.Ready)

	// API routes with basic auth
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(handlers.BasicAuth(cfg.AuthUser, cfg.AuthPass))

		// Clients
		r.Get("/clients", handlers.ListClients)
		r.Post("/clients", handlers.CreateClient)
		r.Get("/clients/{id}", handlers.GetClient)
		r.Put("/clients/{id}", handlers.UpdateClient)
		r.Delete("/clients/{id}", handlers.DeleteClient)
		r.Get("/clients/{id}/invoices", handlers.ListClientInvoices)

		// Tariffs
		r.Get("/tariffs", handlers.ListTariffs)
		r.Put("/tariffs", handlers.UpsertTariff)
		r.Get("/tariffs/catalog", handlers.GetCatalog)
		r.Delete("/tariffs/{id}", handlers.DeleteTariff)

		// Invoices
		r.Get("/invoices", handlers.ListInvoices)
		r.Post("/invoices", handlers.CreateInvoice)
		r.Post("/invoices/compute", handlers.ComputeInvoice)
		r.Get("/invoices/export", handlers.ExportInvoices)
		r.Get("/invoices/{id}", handlers.GetInvoice)
		r.Put("/invoices/{id}", handlers.UpdateInvoice)
		r.Delete("/invoices/{id}", handlers.DeleteInvoice)
		r.Post("/invoices/{id}/issue", handlers.IssueInvoice)
		r.Post("/invoices/{id}/cancel", handlers.CancelInvoice)
		r.Get("/invoices/{id}/pdf", handlers.InvoicePDF)

		// Payments
		r.Get("/invoices/{id}/payments", handlers.ListPayments)
		r.Post("/invoices/{id}/payments", handlers.CreatePayment)
		r.Delete("/invoices/{id}/payments/{paymentId}", handlers.DeletePayment)

		// Dashboard
		r.Get("/dashboard", handlers.GetDashboard)
	})

	// Swagger UI
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	return r
}

func migrate(c *cli.Context) error {
	cfg := appConfig(c)
	database, err := db.Open(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()
	return db.Migrate(database)
}

func quote(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: lexbill quote [--catalog file.yaml] <draft.json>", 2)
	}

	catalog := pricing.DefaultCatalog()
	if path := c.String("catalog"); path != "" {
		loaded, err := pricing.LoadCatalog(path)
		if err != nil {
			return err
		}
		catalog = catalog.Merge(loaded)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	var input models.InvoiceInput
	if err := json.NewDecoder(f).Decode(&input); err != nil {
		return fmt.Errorf("decoding draft: %w", err)
	}
	if msg := input.Validate(); msg != "" {
		return cli.Exit(msg, 2)
	}
	draft, err := input.BuildDraft(pricing.NewEngine(catalog))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(models.NewInvoiceSubmission(draft.Compute()))
}
