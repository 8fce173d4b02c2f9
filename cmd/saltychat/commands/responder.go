package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"saltyrtc/internal/domain"
	"saltyrtc/internal/services/session"
)

func responderCmd() *cobra.Command {
	var (
		nickname string
		path     string
		token    string
	)
	cmd := &cobra.Command{
		Use:   "responder",
		Short: "Join an initiator's signaling path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			ct, err := newChatTask(nickname, "r3spond3r")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sess, err := wire.Sessions.Start(session.Options{
				Passphrase:   passphrase,
				Role:         domain.Responder,
				Path:         path,
				AuthToken:    token,
				PingInterval: uint32(wire.Config.Client.PingInterval),
				Tasks:        tasksOf(ct),
				OnState:      stateReporter(out),
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			fmt.Fprintln(out, "******************************")
			fmt.Fprintln(out, "Connecting as responder")
			fmt.Fprintf(out, "Signaling path: %s\n", sess.Signaling.Path())
			if sess.Trusted != nil {
				fmt.Fprintln(out, "Initiator is trusted, no auth token needed")
			}
			fmt.Fprintln(out, "******************************")
			return runChat(cmd, sess, ct)
		},
	}
	cmd.Flags().StringVarP(&nickname, "nickname", "n", "", "nickname announced to the peer")
	cmd.Flags().StringVarP(&path, "path", "p", "", "the initiator's public key (hex)")
	cmd.Flags().StringVarP(&token, "authtoken", "a", "", "the auth token (hex), not needed for a trusted initiator")
	cmd.Flags().IntP("ping-interval", "i", 30, "WebSocket ping interval in seconds, 0 disables")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
