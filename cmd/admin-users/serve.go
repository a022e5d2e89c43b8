package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/goliatone/go-router"
	"github.com/spf13/cobra"

	users "github.com/goliatone/go-admin-users"
	"github.com/goliatone/go-admin-users/analytics"
)

func newServeCmd(app *App) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin UI and the JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := app.config
			logger := app.GetLogger("serve")

			if migrate {
				applied, err := users.Migrate(ctx, app.db)
				if err != nil {
					return err
				}
				logger.Info("migrations applied", "count", len(applied))
			}

			sinks := []users.ActivitySink{
				analytics.NewLogSink(app.GetLogger("activity")),
			}

			reg := prometheus.NewRegistry()
			if cfg.Metrics.Enabled {
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				metrics, err := analytics.NewMetricsSink(reg)
				if err != nil {
					return err
				}
				sinks = append(sinks, metrics)
			}

			if cfg.Analytics.RedisURL != "" {
				stream, err := analytics.NewRedisStreamSink(cfg.Analytics.RedisURL,
					analytics.WithStream(cfg.Analytics.Stream),
					analytics.WithStreamMaxLen(cfg.Analytics.MaxLen),
				)
				if err != nil {
					return err
				}
				defer stream.Close()

				if err := stream.Ping(ctx); err != nil {
					logger.Warn("activity stream unreachable, events will be dropped", "error", err)
				}
				sinks = append(sinks, stream)
			}

			module := users.NewModule(cfg, users.NewRepositoryManager(app.db),
				users.WithModuleLoggerProvider(app.LoggerProvider()),
				users.WithModuleDebug(cfg.Debug),
				users.WithModuleActivitySink(analytics.NewMultiSink(sinks...)),
				users.WithModuleRecordTimeout(cfg.Analytics.RecordTimeout()),
			)

			defer func() {
				if err := module.Close(); err != nil {
					logger.Warn("activity recorder close failed", "error", err)
				}
			}()

			srv := module.NewServer(fiber.Config{
				AppName:               "admin-users",
				DisableStartupMessage: !cfg.Debug,
				Views:                 users.NewViewEngine(cfg.Server.ViewsDir),
			})

			srv.Router().Get("/healthz", func(c router.Context) error {
				if err := app.db.PingContext(c.Context()); err != nil {
					return c.JSON(fiber.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
				}
				return c.JSON(router.StatusOK, map[string]any{"status": "ok"})
			}).SetName("healthz")

			if cfg.Metrics.Enabled {
				srv.WrappedRouter().Get(cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
			}

			errc := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Server.Addr)
				errc <- srv.Serve(cfg.Server.Addr)
			}()

			select {
			case err := <-errc:
				return err
			case sig := <-waitSignal():
				logger.Info("shutting down", "signal", sig.String())
			}

			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")

	return cmd
}
