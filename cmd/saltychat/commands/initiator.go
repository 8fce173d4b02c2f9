package commands

import (
	"fmt"

	"github.com/katzenpost/qrterminal"
	"github.com/spf13/cobra"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/services/session"
)

func initiatorCmd() *cobra.Command {
	var (
		nickname string
		pair     bool
		qr       bool
	)
	cmd := &cobra.Command{
		Use:   "initiator",
		Short: "Open a signaling path and wait for a responder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			ct, err := newChatTask(nickname, "initiat0r")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sess, err := wire.Sessions.Start(session.Options{
				Passphrase:   passphrase,
				Role:         domain.Initiator,
				Pair:         pair,
				PingInterval: uint32(wire.Config.Client.PingInterval),
				Tasks:        tasksOf(ct),
				OnState:      stateReporter(out),
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			path := sess.Signaling.Path()
			fmt.Fprintln(out, "******************************")
			fmt.Fprintln(out, "Connecting as initiator")
			fmt.Fprintf(out, "Signaling path: %s\n", path)
			if sess.AuthToken != nil {
				token := sess.AuthToken.Hex()
				fmt.Fprintf(out, "Auth token: %s\n\n", token)
				fmt.Fprintln(out, "To connect with a peer:")
				fmt.Fprintf(out, "saltychat responder \\\n    -p %s \\\n    -a %s\n", path, token)
				if qr {
					qrterminal.GenerateWithConfig(path+":"+token, qrterminal.Config{
						Level:      qrterminal.L,
						Writer:     out,
						HalfBlocks: true,
						QuietZone:  1,
					})
				}
			} else {
				fmt.Fprintf(out, "Waiting for trusted responder %s (use --pair for a new one)\n",
					crypto.Fingerprint(sess.Trusted.PublicKey))
			}
			fmt.Fprintln(out, "******************************")
			return runChat(cmd, sess, ct)
		},
	}
	cmd.Flags().StringVarP(&nickname, "nickname", "n", "", "nickname announced to the peer")
	cmd.Flags().BoolVar(&pair, "pair", false, "issue an auth token even if a responder is trusted")
	cmd.Flags().BoolVar(&qr, "qr", false, "also print path and auth token as a QR code")
	cmd.Flags().IntP("ping-interval", "i", 30, "WebSocket ping interval in seconds, 0 disables")
	return cmd
}
