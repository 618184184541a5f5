package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailtask/internal/bridge"
	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/observer"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the page bridge without the terminal UI",
		Long: `Run the page bridge for the in-browser shim.

The shim posts page snapshots, renders the injected triggers, mirrors
queued clicks and relays tracker calls through the gateway. Submission
notifications are handed to the shim on its next poll. Prometheus
metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to bridge_addr)")

	return cmd
}

func runServe(parent context.Context, addr string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	if addr == "" {
		addr = rt.cfg.BridgeAddr
	}

	root, err := html.Parse(strings.NewReader("<html><body></body></html>"))
	if err != nil {
		return err
	}
	page := host.NewLive(root, rt.cfg.Mail.BaseURL, nil)

	srv := bridge.New(bridge.Config{
		Page:          page,
		Gateway:       rt.gateway,
		Notifications: rt.notifier.C(),
		Gatherer:      rt.registry,
		Logger:        rt.logger,
	})
	obs := observer.New(page, rt.cfg.Timing.InjectDebounce(), rt.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.gateway.Serve(gctx)
		return nil
	})
	g.Go(func() error {
		obs.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Listen(gctx, addr)
	})
	// Headless: clicks are answered over HTTP, nothing else consumes them.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case c := <-srv.Clicks():
				rt.logger.Info("trigger clicked",
					slog.String("kind", string(c.Trigger.Kind)),
					slog.Int("thread_messages", len(c.Thread)),
				)
			}
		}
	})

	rt.logger.Info("serving page bridge", slog.String("addr", addr), slog.String("version", version))
	return g.Wait()
}
