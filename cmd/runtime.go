package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nhle/mailtask/internal/credential"
	"github.com/nhle/mailtask/internal/gateway"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/mailbox"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/store"
	"github.com/nhle/mailtask/internal/tracker"
)

// runtime holds the components every command shares.
type runtime struct {
	cfg      *model.AppConfig
	logger   *slog.Logger
	creds    *credential.Store
	store    *store.SQLiteStore
	registry *prometheus.Registry
	notifier *gateway.ChanNotifier
	gateway  *gateway.Gateway
	client   *gateway.Client

	closers []io.Closer
}

// setup loads the configuration and builds the gateway. Logs go to w.
func setup(w io.Writer) (*runtime, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.New(w, level)

	creds, err := credential.Open(model.ConfigDir())
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		creds:    creds,
		store:    st,
		registry: reg,
		notifier: gateway.NewChanNotifier(8),
		closers:  []io.Closer{st},
	}

	apiLogger := logging.WithOperation(logger, "tracker")
	rt.gateway = gateway.New(gateway.Config{
		Tokens: creds,
		NewAPI: func(token string) gateway.API {
			return tracker.NewClient(cfg.API.BaseURL, token,
				tracker.WithRateLimit(cfg.API.RatePerSec),
				tracker.WithLogger(apiLogger),
			)
		},
		Store:    st,
		Notifier: rt.notifier,
		Identity: cfg.ExtensionID,
		Logger:   logger,
		Metrics:  gateway.NewMetrics(reg),
	})
	rt.client = gateway.NewClient(rt.gateway)
	return rt, nil
}

// labeler returns the IMAP labeler when an account is configured.
func (rt *runtime) labeler() mailbox.Labeler {
	mc := rt.cfg.Mail
	if mc.Username == "" {
		return mailbox.Nop{}
	}
	password, err := rt.creds.Get(credential.KeyIMAPPassword)
	if err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			rt.logger.Warn("reading IMAP password", logging.Err(err))
		}
		return mailbox.Nop{}
	}
	return mailbox.NewIMAPLabeler(mc.IMAPHost, mc.IMAPPort, mc.Username, password, mc.TLS, mc.Label, rt.logger)
}

func (rt *runtime) Close() {
	for _, c := range rt.closers {
		if err := c.Close(); err != nil {
			rt.logger.Warn("closing", logging.Err(err))
		}
	}
}

// openLogFile keeps logs off the terminal while a TUI owns it.
func openLogFile() (*os.File, error) {
	dir := model.ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "mailtask.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
