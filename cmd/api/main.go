package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazarly/backend/api/controllers"
	"github.com/bazarly/backend/api/routes"
	"github.com/bazarly/backend/internal/catalog"
	"github.com/bazarly/backend/internal/courier"
	ordersvc "github.com/bazarly/backend/internal/orders"
	"github.com/bazarly/backend/internal/pixel"
	"github.com/bazarly/backend/internal/store"
	"github.com/bazarly/backend/pkg/config"
	"github.com/bazarly/backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	st, err := store.Open(cfg.Snapshot.Path, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open record store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stats := pixel.NewStats(registry)
	pipeline, err := pixel.NewPipeline(pixel.PipelineParams{
		Sender: func() (pixel.Sender, error) {
			return pixel.NewClient(cfg.Pixel.GraphHost, st.PixelSettings(), cfg.Pixel.Timeout, logg)
		},
		Stats:  stats,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build conversion pipeline", err)
		os.Exit(1)
	}
	if st.PixelSettings().Status == store.PixelActive {
		pipeline.Init()
	}

	providerFactory := func(name string, settings store.CourierSettings) (courier.Provider, error) {
		return courier.FromSettings(name, settings, courier.Options{
			Timeout:          cfg.Courier.Timeout,
			Logger:           logg,
			PathaoBaseURL:    cfg.Courier.PathaoBaseURL,
			SteadfastBaseURL: cfg.Courier.SteadfastBaseURL,
		})
	}

	catalogService, err := catalog.NewService(st, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(ordersvc.ServiceParams{
		Store:    st,
		Provider: providerFactory,
		Tracker:  pipeline,
		Logger:   logg,
		Currency: func() string { return st.PixelSettings().Currency },
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			Store:           st,
			Catalog:         catalogService,
			Orders:          ordersService,
			Pipeline:        pipeline,
			ProviderFactory: providerFactory,
			PixelVerifier: func(settings store.PixelSettings) (controllers.PixelVerifier, error) {
				return pixel.NewClient(cfg.Pixel.GraphHost, settings, cfg.Pixel.Timeout, logg)
			},
			Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
