package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate the permanent key pair and store it securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			kp, fp, err := wire.Identity.Generate(passphrase)
			if err != nil {
				return err
			}
			defer kp.Wipe()
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created.\nPublic key: %s\nFingerprint: %s\n", kp.PublicKeyHex(), fp)
			return nil
		},
	}
}
