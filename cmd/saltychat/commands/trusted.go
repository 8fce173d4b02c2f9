package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"saltyrtc/internal/crypto"
)

func trustedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trusted",
		Short: "Manage peers remembered after pairing",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List trusted peers, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			peers, err := wire.Trust.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(peers) == 0 {
				fmt.Fprintln(out, "No trusted peers.")
				return nil
			}
			for _, p := range peers {
				fmt.Fprintf(out, "%s  %-9s  paired %s  last seen %s\n",
					crypto.Fingerprint(p.PublicKey), p.PeerRole,
					time.Unix(p.PairedUnix, 0).Format(time.DateTime),
					time.Unix(p.LastSeenUnix, 0).Format(time.DateTime))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget <fingerprint>",
		Short: "Forget a trusted peer; the next contact needs an auth token again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := wire.Trust.Forget(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s %s\n", p.PeerRole, crypto.Fingerprint(p.PublicKey))
			return nil
		},
	})
	return cmd
}
