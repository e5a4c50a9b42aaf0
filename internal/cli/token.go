package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/utils"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Get tokens and show credential status",
	}

	cmd.AddCommand(tokenGetCmd(), tokenStatusCmd())

	return cmd
}

func tokenGetCmd() *cobra.Command {
	var (
		force     bool
		apiFamily string
		showToken bool
	)

	cmd := &cobra.Command{
		Use:   "get <account-id>",
		Short: "Obtain a valid access token through the token provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.ValidateAccountID(args[0]) {
				return fmt.Errorf("account id %q is not a UUID", args[0])
			}

			backend, err := backendFrom(cmd)
			if err != nil {
				return err
			}

			result := backend.TokenProvider.GetValidAccessToken(cmd.Context(), domain.TokenRequest{
				AccountID:    args[0],
				APIFamily:    apiFamily,
				ForceRefresh: force,
				TriggeredBy:  domain.TriggeredByDebug,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "success:      %t\n", result.Success)
			fmt.Fprintf(out, "environment:  %s\n", result.Environment)
			fmt.Fprintf(out, "source:       %s\n", result.Source)

			if !result.Success {
				fmt.Fprintf(out, "error_code:   %s\n", result.ErrorCode)
				if result.ErrorSubCode != "" {
					fmt.Fprintf(out, "sub_code:     %s\n", result.ErrorSubCode)
				}
				fmt.Fprintf(out, "message:      %s\n", result.ErrorMessage)
				if result.NeedsReauth {
					fmt.Fprintln(out, "needs_reauth: true")
				}
				return errors.New(string(result.ErrorCode))
			}

			fmt.Fprintf(out, "expires_at:   %s\n", formatTime(result.ExpiresAt))
			fmt.Fprintf(out, "fingerprint:  %s\n", result.TokenFingerprint)
			if showToken {
				fmt.Fprintf(out, "access_token: %s\n", result.AccessToken.Reveal())
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Refresh even if the stored token is still fresh")
	cmd.Flags().StringVar(&apiFamily, "api-family", "", "API family the token is requested for")
	cmd.Flags().BoolVar(&showToken, "show-token", false, "Print the plaintext access token")

	return cmd
}

func tokenStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [account-id]",
		Short: "Show masked credential status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFrom(cmd)
			if err != nil {
				return err
			}

			var statuses []*domain.CredentialStatus
			if len(args) == 1 {
				if !utils.ValidateAccountID(args[0]) {
					return fmt.Errorf("account id %q is not a UUID", args[0])
				}
				status, err := backend.Status.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			} else {
				statuses, err = backend.Status.List(cmd.Context())
				if err != nil {
					return err
				}
			}

			if len(statuses) == 0 {
				cmd.Println("No credentials stored.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Account", "Env", "Access", "Refresh", "Expires At", "Failures", "Reauth", "Last Error"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)

			for _, s := range statuses {
				lastError := ""
				if s.LastRefreshError != nil {
					lastError = *s.LastRefreshError
				}
				table.Append([]string{
					s.AccountID,
					string(s.Environment),
					string(s.AccessTokenState),
					string(s.RefreshTokenState),
					formatTime(s.ExpiresAt),
					fmt.Sprintf("%d", s.RefreshFailureCount),
					fmt.Sprintf("%t", s.NeedsReauth),
					lastError,
				})
			}

			table.Render()
			return nil
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
