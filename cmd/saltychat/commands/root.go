package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"saltyrtc/internal/app"
)

const passphraseEnv = "SALTYCHAT_PASSPHRASE"

var (
	home       string
	configFile string
	logLevel   string
	passphrase string

	wire *app.Wire
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "saltychat",
		Short:         "End-to-end encrypted chat over a SaltyRTC signaling server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				passphrase = os.Getenv(passphraseEnv)
			}
			cfg := app.Config{ConfigFile: configFile, Home: home, LogLevel: logLevel}
			if f := cmd.Flags().Lookup("ping-interval"); f != nil && f.Changed {
				n, err := cmd.Flags().GetInt("ping-interval")
				if err != nil {
					return err
				}
				cfg.PingInterval = &n
			}
			w, err := app.NewWire(cfg)
			if err != nil {
				return fmt.Errorf("failed to load config file: %w", err)
			}
			wire = w
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.saltychat)")
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "ERROR, WARNING, NOTICE, INFO or DEBUG")
	root.PersistentFlags().StringVar(&passphrase, "passphrase", "", "passphrase protecting the key pair (or $"+passphraseEnv+")")

	root.AddCommand(initCmd(), fingerprintCmd(), initiatorCmd(), responderCmd(), trustedCmd())
	return root
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (--passphrase or $%s)", passphraseEnv)
	}
	return nil
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	cmd := newRootCmd()
	if err := fang.Execute(
		context.Background(),
		cmd,
		fang.WithVersion(versioninfo.Short()),
		fang.WithErrorHandler(errorHandlerWithUsage(cmd)),
	); err != nil {
		os.Exit(1)
	}
}

// errorHandlerWithUsage prints the error, followed by the usage for
// argument errors.
func errorHandlerWithUsage(cmd *cobra.Command) fang.ErrorHandler {
	return func(w io.Writer, styles fang.Styles, err error) {
		_, _ = fmt.Fprintln(w, styles.ErrorHeader.String())
		_, _ = fmt.Fprintln(w, styles.ErrorText.Render(err.Error()+"."))
		_, _ = fmt.Fprintln(w)

		if isUsageError(err) {
			_ = colorprofile.NewWriter(w, nil)
			cmd.HelpFunc()(cmd, []string{})
			return
		}
		_, _ = fmt.Fprintln(w, lipgloss.JoinHorizontal(
			lipgloss.Left,
			styles.ErrorText.UnsetWidth().Render("Try"),
			styles.Program.Flag.Render("--help"),
			styles.ErrorText.UnsetWidth().UnsetMargins().UnsetTransform().PaddingLeft(1).Render("for usage."),
		))
		_, _ = fmt.Fprintln(w)
	}
}

func isUsageError(err error) bool {
	s := err.Error()
	for _, prefix := range []string{
		"flag needs an argument:",
		"unknown flag:",
		"unknown shorthand flag:",
		"unknown command",
		"invalid argument",
		"required flag",
		"accepts",
		"arg(s), received",
		"failed to load config file",
	} {
		if strings.Contains(s, prefix) {
			return true
		}
	}
	return false
}
