package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/prperemyshlev/ebay-connector/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func operatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Operator credentials for the diagnostic endpoints",
	}

	cmd.AddCommand(operatorTokenCmd(), operatorHashPasswordCmd())

	return cmd
}

func operatorTokenCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFrom(cmd)
			if err != nil {
				return err
			}

			token, err := backend.JWTManager.GenerateToken(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Operator name recorded in the token")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

// operatorHashPasswordCmd reads the password from stdin and prints a value for OPERATOR_PASSWORD_HASH
func operatorHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash an operator password read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFrom(cmd)
			if err != nil {
				return err
			}

			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			if !utils.ValidatePassword(password) {
				return errors.New("password must be 12 to 72 characters with upper case, lower case and a digit")
			}

			hash, err := utils.HashPassword(password, backend.BCryptCost)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// readPassword prompts without echo on a terminal and reads one line otherwise
func readPassword(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password must be given on stdin")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
