package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/app"
	"github.com/nhle/mailtask/internal/bridge"
	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/observer"
)

func newComposeCmd() *cobra.Command {
	var (
		snapshot string
		pageURL  string
		cookies  string
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Open the terminal composer",
		Long: `Open the terminal composer over a conversation.

With --snapshot, the page is read from a saved HTML file and reloaded
whenever the file changes. Otherwise the page bridge listens for the
in-browser shim and the composer follows the live page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompose(cmd.Context(), snapshot, pageURL, cookies)
		},
	}

	cmd.Flags().StringVar(&snapshot, "snapshot", "", "path to a saved conversation page")
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL used to resolve relative links (defaults to mail.base_url)")
	cmd.Flags().StringVar(&cookies, "cookies", "", "webmail Cookie header used to download attachments from a snapshot")

	return cmd
}

func runCompose(parent context.Context, snapshot, pageURL, cookies string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer logFile.Close()

	rt, err := setup(logFile)
	if err != nil {
		return err
	}
	defer rt.Close()

	if pageURL == "" {
		pageURL = rt.cfg.Mail.BaseURL
	}

	page, source, err := openPage(snapshot, pageURL)
	if err != nil {
		return err
	}
	if cookies != "" {
		sess, err := host.NewSession(pageURL, cookies)
		if err != nil {
			return err
		}
		page.SetSession(sess)
	}

	go rt.gateway.Serve(ctx)

	obs := observer.New(page, rt.cfg.Timing.InjectDebounce(), rt.logger)
	go obs.Run(ctx)

	appCfg := app.Config{
		Page:          page,
		Observer:      obs,
		Backend:       rt.client,
		Labeler:       rt.labeler(),
		Timing:        rt.cfg.Timing,
		Logger:        rt.logger,
		Notifications: rt.notifier.C(),
		Source:        source,
	}

	if snapshot != "" {
		go func() {
			if err := host.WatchFile(ctx, snapshot, pageURL, page, rt.logger); err != nil {
				rt.logger.Error("watching snapshot", logging.Err(err))
			}
		}()
	} else {
		srv := bridge.New(bridge.Config{
			Page:     page,
			Gateway:  rt.gateway,
			Gatherer: rt.registry,
			Logger:   rt.logger,
		})
		appCfg.Clicks = srv.Clicks()
		go func() {
			if err := srv.Listen(ctx, rt.cfg.BridgeAddr); err != nil {
				rt.logger.Error("bridge stopped", logging.Err(err))
			}
		}()
		source = "bridge " + rt.cfg.BridgeAddr
		appCfg.Source = source
	}

	rt.logger.Info("composer starting", slog.String("source", source))

	p := tea.NewProgram(app.New(ctx, appCfg), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running composer: %w", err)
	}
	return nil
}

// openPage loads the snapshot, or starts from an empty page the bridge
// will fill.
func openPage(snapshot, pageURL string) (*host.Live, string, error) {
	if snapshot == "" {
		root, err := html.Parse(strings.NewReader("<html><body></body></html>"))
		if err != nil {
			return nil, "", fmt.Errorf("creating empty page: %w", err)
		}
		return host.NewLive(root, pageURL, nil), "", nil
	}

	root, err := host.LoadFile(snapshot)
	if err != nil {
		return nil, "", err
	}
	return host.NewLive(root, pageURL, nil), "snapshot", nil
}
