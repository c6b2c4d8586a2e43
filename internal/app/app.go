// Package app wires configuration, storage and the dashboard into the
// protodash command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"protodash/internal/config"
	"protodash/internal/dashboard"
	"protodash/internal/logging"
	"protodash/internal/storage"
)

const defaultIdentity = "default"

type cli struct {
	configPath string
	user       string

	cfg        config.Config
	logger     *zap.Logger
	store      storage.Store
	closeStore func() error
	svc        *dashboard.Service
	now        func() time.Time
}

func Main() {
	root, c := newRootCmd()
	err := root.Execute()
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{now: time.Now}

	root := &cobra.Command{
		Use:   "protodash",
		Short: "Productivity metrics for protocol analysis teams",
		Long: `protodash ingests spreadsheet exports of analysed protocols, accumulates
them per user and reports completion counts, average handling time (TMO),
reclassifications, the daily TMO series and the points of attention.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVar(&c.user, "user", "", "dataset identity (default report_user from config)")

	root.AddCommand(
		c.importCmd(),
		c.saveCmd(),
		c.summaryCmd(),
		c.attentionCmd(),
		c.dailyCmd(),
		c.analystsCmd(),
		c.exportCmd(),
		c.reportCmd(),
		c.serveCmd(),
	)
	return root, c
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "help", "completion":
		return nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		return err
	}
	c.logger = logger
	c.logger.Debug("config loaded",
		zap.String("backend", cfg.StorageBackend),
		zap.String("team", cfg.TeamName),
		zap.String("timezone", cfg.Timezone),
		zap.Float64("attention_threshold_minutes", cfg.AttentionThresholdMinutes))

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	c.store = store
	c.closeStore = closeStore
	c.svc = dashboard.NewService(store,
		dashboard.WithThreshold(cfg.AttentionThreshold()),
		dashboard.WithClock(c.now),
		dashboard.WithLogger(logging.Component(logger, "dashboard")),
	)
	return nil
}

func (c *cli) close() {
	if c.closeStore != nil {
		if err := c.closeStore(); err != nil && c.logger != nil {
			c.logger.Warn("failed to close store", zap.Error(err))
		}
		c.closeStore = nil
	}
	if c.logger != nil {
		_ = logging.Sync(c.logger)
	}
}

func (c *cli) identity() string {
	if c.user != "" {
		return c.user
	}
	if c.cfg.ReportUser != "" {
		return c.cfg.ReportUser
	}
	return defaultIdentity
}

// openSession loads the identity's dataset. A load failure is reported on
// stderr and the session continues from an empty dataset unless strict is set.
func (c *cli) openSession(cmd *cobra.Command, strict bool) (*dashboard.Session, error) {
	sess, err := c.svc.Open(commandContext(cmd), c.identity())
	if err == nil {
		return sess, nil
	}
	if strict || !errors.Is(err, storage.ErrUnavailable) {
		return nil, err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "aviso: %v\n", err)
	return sess, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
