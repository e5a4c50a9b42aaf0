package cli

import (
	"fmt"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"github.com/spf13/cobra"
)

func cipherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cipher",
		Short: "Diagnose stored token values",
	}

	cmd.AddCommand(cipherCheckCmd())

	return cmd
}

// cipherCheckCmd never prints the decrypted value
func cipherCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <value>",
		Short: "Classify a stored value and check that the configured key decrypts it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFrom(cmd)
			if err != nil {
				return err
			}

			value := secret.Ciphertext(args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state:    %s\n", domain.StateOf(value))

			if !value.IsEncrypted() {
				return nil
			}

			plaintext, err := backend.Cipher.Decrypt(value)
			if err != nil {
				fmt.Fprintln(out, "decrypts: no")
				return err
			}

			fmt.Fprintln(out, "decrypts: yes")
			fmt.Fprintf(out, "fingerprint: %s\n", secret.Fingerprint(plaintext))
			return nil
		},
	}
}
