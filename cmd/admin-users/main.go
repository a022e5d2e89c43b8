package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	users "github.com/goliatone/go-admin-users"
	"github.com/goliatone/go-admin-users/config"
)

// App holds what every command shares
type App struct {
	config *config.Config
	logger *glog.BaseLogger
	db     *bun.DB
}

// GetLogger returns a named logger
func (a *App) GetLogger(name string) users.Logger {
	return a.logger.GetLogger(name)
}

// LoggerProvider adapts the glog logger to the users package
func (a *App) LoggerProvider() users.LoggerProvider {
	return users.LoggerProviderFunc(a.GetLogger)
}

// Close releases the database
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	app := &App{}

	cmd := &cobra.Command{
		Use:           "admin-users",
		Short:         "User administration with impersonation and a token API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd.Context(), configPath)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return app.Close()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")

	cmd.AddCommand(
		newServeCmd(app),
		newMigrateCmd(app),
		newUsersCmd(app),
	)

	return cmd
}

func (a *App) setup(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a.config = cfg

	if cfg.Debug {
		a.logger = glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("admin-users"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	} else {
		a.logger = glog.NewLogger(
			glog.WithName("admin-users"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}

	if cfg.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg.Redacted()))
		fmt.Println("============")
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Persistence.DSN)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}
	sqldb.SetMaxOpenConns(1)

	a.db = bun.NewDB(sqldb, sqlitedialect.New())

	if err := a.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to reach database")
	}

	return nil
}

func waitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
