package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/app"
	"github.com/MarcoPoloResearchLab/pks/internal/config"
	"github.com/MarcoPoloResearchLab/pks/internal/logging"
	"github.com/MarcoPoloResearchLab/pks/internal/metrics"
	"github.com/MarcoPoloResearchLab/pks/internal/session"
	"github.com/MarcoPoloResearchLab/pks/internal/storage"
	"github.com/MarcoPoloResearchLab/pks/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	annotationSession    = "pks/session"
	annotationStandalone = "pks/standalone"

	sessionAuth  = "auth"
	sessionGuest = "guest"

	refreshSkew      = time.Minute
	metricsNamespace = "pks"
)

var (
	errNotLoggedIn     = errors.New("not logged in; run pks login")
	errAlreadyLoggedIn = errors.New("already logged in; run pks logout first")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newCLI()
	root := c.rootCommand()
	err := root.ExecuteContext(ctx)
	c.close()
	if err != nil {
		if transport.KindOf(err) == "" || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// cli carries what PersistentPreRunE builds for the subcommands.
type cli struct {
	viper   *viper.Viper
	cfgFile string
	asJSON  bool

	config config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
	app    *app.App

	// registry is set when request metrics are exported to a textfile on exit.
	registry *prometheus.Registry

	// expired is set once the navigator has told the user the session ended.
	expired atomic.Bool
}

func newCLI() *cli {
	return &cli{viper: config.NewViper(), logger: zap.NewNop()}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pks",
		Short:         "Personal knowledge system client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.prepare(cmd)
		},
	}
	c.setupFlags(root)

	root.AddCommand(
		c.loginCommand(),
		c.registerCommand(),
		c.logoutCommand(),
		c.whoamiCommand(),
		c.cardsCommand(),
		c.tagsCommand(),
		c.searchCommand(),
		c.kanbanCommand(),
		c.linksCommand(),
		c.serveFakeCommand(),
	)
	return root
}

func (c *cli) setupFlags(cmd *cobra.Command) {
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print results as JSON")
	cmd.PersistentFlags().String("api-base-url", defaults.GetString("api.base_url"), "API base URL")
	cmd.PersistentFlags().Duration("api-timeout", defaults.GetDuration("api.timeout"), "Per-request timeout")
	cmd.PersistentFlags().Float64("rate-limit-rps", defaults.GetFloat64("api.rate_limit_rps"), "Outbound requests per second (0 disables)")
	cmd.PersistentFlags().Int("rate-limit-burst", defaults.GetInt("api.rate_limit_burst"), "Outbound request burst")
	cmd.PersistentFlags().String("state-path", defaults.GetString("state.path"), "SQLite file holding the session")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (console, json)")
	cmd.PersistentFlags().Int("page-size", defaults.GetInt("pagination.page_size"), "Cards per page")
	cmd.PersistentFlags().String("metrics-textfile", defaults.GetString("metrics.textfile"), "Write request metrics in Prometheus text format to this file on exit")

	c.bindFlag(cmd, "api.base_url", "api-base-url")
	c.bindFlag(cmd, "api.timeout", "api-timeout")
	c.bindFlag(cmd, "api.rate_limit_rps", "rate-limit-rps")
	c.bindFlag(cmd, "api.rate_limit_burst", "rate-limit-burst")
	c.bindFlag(cmd, "state.path", "state-path")
	c.bindFlag(cmd, "log.level", "log-level")
	c.bindFlag(cmd, "log.format", "log-format")
	c.bindFlag(cmd, "pagination.page_size", "page-size")
	c.bindFlag(cmd, "metrics.textfile", "metrics-textfile")
}

func (c *cli) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := c.viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (c *cli) initConfig() error {
	if c.cfgFile == "" {
		return nil
	}
	c.viper.SetConfigFile(c.cfgFile)
	return c.viper.ReadInConfig()
}

// prepare loads configuration, opens the state database, wires the client,
// restores the persisted session and applies the command's session requirement.
func (c *cli) prepare(cmd *cobra.Command) error {
	if err := c.initConfig(); err != nil {
		return err
	}
	appConfig, err := config.Load(c.viper)
	if err != nil {
		return err
	}
	c.config = appConfig

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	c.logger = logger

	if cmd.Annotations[annotationStandalone] == "true" {
		return nil
	}

	db, err := storage.OpenSQLite(appConfig.StatePath, logger)
	if err != nil {
		return err
	}
	c.db = db
	state, err := storage.NewSQLiteStore(db, time.Now)
	if err != nil {
		return err
	}

	recorder := metrics.Nop
	if appConfig.MetricsTextfile != "" {
		c.registry = prometheus.NewRegistry()
		recorder = metrics.NewCollector(c.registry, metricsNamespace)
	}

	stderr := cmd.ErrOrStderr()
	c.app, err = app.New(app.Config{
		BaseURL:        appConfig.APIBaseURL,
		Timeout:        appConfig.APITimeout,
		RateLimitRPS:   appConfig.RateLimitRPS,
		RateLimitBurst: appConfig.RateLimitBurst,
		PageSize:       appConfig.PageSize,
		Storage:        state,
		Metrics:        recorder,
		Navigator: session.NavigatorFunc(func(reason string) {
			c.expired.Store(true)
			fmt.Fprintf(stderr, "session expired (%s); run pks login\n", reason)
		}),
		Notifier: transport.NotifierFunc(func(notice transport.Notice) {
			// The expiry line above already covers a 401 that ended a session.
			if notice.Kind == transport.KindAuthExpired && c.expired.Load() {
				return
			}
			fmt.Fprintf(stderr, "Error: %s\n", notice.Message)
		}),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := c.app.Session.RestoreFromPersistence(ctx); err != nil {
		return err
	}
	if c.app.Session.IsAuthenticated() {
		if _, err := c.app.Session.RefreshIfExpiring(ctx, refreshSkew); err != nil {
			logger.Debug("token refresh failed", zap.Error(err))
		}
	}

	switch c.app.Session.Gate(requirementOf(cmd)) {
	case session.RedirectLogin:
		return errNotLoggedIn
	case session.RedirectHome:
		return errAlreadyLoggedIn
	}
	return nil
}

func requirementOf(cmd *cobra.Command) session.Requirement {
	switch cmd.Annotations[annotationSession] {
	case sessionAuth:
		return session.RequireAuth
	case sessionGuest:
		return session.RequireGuest
	default:
		return session.RequireNone
	}
}

func (c *cli) close() {
	if c.registry != nil {
		if err := prometheus.WriteToTextfile(c.config.MetricsTextfile, c.registry); err != nil {
			c.logger.Warn("metrics export failed", zap.String("path", c.config.MetricsTextfile), zap.Error(err))
		}
		c.registry = nil
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		c.db = nil
	}
	_ = c.logger.Sync()
}

func requireAuth() map[string]string {
	return map[string]string{annotationSession: sessionAuth}
}

func requireGuest() map[string]string {
	return map[string]string{annotationSession: sessionGuest}
}
