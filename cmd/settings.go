package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/mailtask/internal/ui/settings"
)

// settingsProgram runs the preferences form on its own.
type settingsProgram struct {
	form  settings.Model
	saved bool
	err   error
}

func (p settingsProgram) Init() tea.Cmd {
	return p.form.Start()
}

func (p settingsProgram) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.form.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return p, tea.Quit
		}
	case settings.SavedMsg:
		p.saved = msg.Err == nil
		p.err = msg.Err
		return p, tea.Quit
	case settings.CancelMsg:
		return p, tea.Quit
	}

	var cmd tea.Cmd
	p.form, cmd = p.form.Update(msg)
	return p, cmd
}

func (p settingsProgram) View() string {
	return p.form.View()
}

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Edit composer preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent := cmd.Context()
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

			go rt.gateway.Serve(ctx)

			prog := settingsProgram{form: settings.New(ctx, rt.client, 80, 24)}
			final, err := tea.NewProgram(prog, tea.WithContext(ctx)).Run()
			if err != nil {
				return fmt.Errorf("running settings: %w", err)
			}

			res, ok := final.(settingsProgram)
			if !ok {
				return nil
			}
			if res.err != nil {
				return fmt.Errorf("saving preferences: %w", res.err)
			}
			if res.saved {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Preferences saved.")
			}
			return err
		},
	}
}
