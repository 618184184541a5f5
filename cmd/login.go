package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mailtask/internal/credential"
)

func newLoginCmd() *cobra.Command {
	var (
		token        string
		imapPassword string
		logout       bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the tracker access token in the system keyring",
		Long: `Store the tracker personal access token, and optionally the IMAP
password used to label filed messages, in the system keyring.

Without flags the values are prompted for. The token is verified
against the tracker before the command returns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(io.Discard)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			if logout {
				for _, k := range []string{credential.KeyAccessToken, credential.KeyAuthenticatedUser, credential.KeyIMAPPassword} {
					if err := rt.creds.Delete(k); err != nil {
						return err
					}
				}
				_, err := fmt.Fprintln(out, "Signed out.")
				return err
			}

			askIMAP := rt.cfg.Mail.Username != "" && imapPassword == ""
			if token == "" || askIMAP {
				if err := promptCredentials(&token, &imapPassword, askIMAP, rt.cfg.Mail.Username); err != nil {
					return err
				}
			}

			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("an access token is required")
			}
			if err := rt.creds.Set(credential.KeyAccessToken, token); err != nil {
				return err
			}
			if imapPassword != "" {
				if err := rt.creds.Set(credential.KeyIMAPPassword, imapPassword); err != nil {
					return err
				}
			}

			return verifySession(cmd.Context(), rt, out)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "tracker personal access token")
	cmd.Flags().StringVar(&imapPassword, "imap-password", "", "IMAP password or app password")
	cmd.Flags().BoolVar(&logout, "logout", false, "remove every stored credential")

	return cmd
}

func promptCredentials(token, imapPassword *string, askIMAP bool, username string) error {
	fields := []huh.Field{
		huh.NewInput().
			Title("Tracker access token").
			EchoMode(huh.EchoModePassword).
			Value(token),
	}
	if askIMAP {
		fields = append(fields, huh.NewInput().
			Title(fmt.Sprintf("IMAP password for %s (optional)", username)).
			EchoMode(huh.EchoModePassword).
			Value(imapPassword))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}
	return nil
}

func verifySession(parent context.Context, rt *runtime, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	go rt.gateway.Serve(ctx)

	sess, err := rt.client.CheckSession(ctx)
	if err != nil {
		return fmt.Errorf("verifying token: %w", err)
	}
	if !sess.Authenticated || sess.User == nil {
		return errors.New("the tracker rejected the token")
	}

	_, err = fmt.Fprintf(out, "Signed in as %s <%s>.\n", sess.User.Name, sess.User.Email)
	return err
}
