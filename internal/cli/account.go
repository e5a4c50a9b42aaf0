package cli

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/utils"
	"github.com/spf13/cobra"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage eBay seller accounts",
	}

	cmd.AddCommand(
		accountAddCmd(),
		accountListCmd(),
		accountSetActiveCmd("enable", true),
		accountSetActiveCmd("disable", false),
	)

	return cmd
}

func accountAddCmd() *cobra.Command {
	var (
		name        string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a seller account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := domain.ParseEnvironment(strings.ToLower(environment))
			if err != nil {
				return err
			}

			backend, err := backendFrom(cmd)
			if err != nil {
				return err
			}

			account := &domain.Account{
				Name:        name,
				Environment: env,
				IsActive:    true,
			}
			if err := backend.Accounts.Create(cmd.Context(), account); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name of the account")
	cmd.Flags().StringVar(&environment, "env", string(domain.EnvironmentProduction), "eBay environment: production or sandbox")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func accountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List seller accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFrom(cmd)
			if err != nil {
				return err
			}

			accounts, err := backend.Accounts.List(cmd.Context())
			if err != nil {
				return err
			}

			if len(accounts) == 0 {
				cmd.Println("No accounts registered. Use `tokenctl account add` to register one.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "Name", "Env", "Active"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)

			for _, account := range accounts {
				table.Append([]string{
					account.ID,
					account.Name,
					string(account.Environment),
					fmt.Sprintf("%t", account.IsActive),
				})
			}

			table.Render()
			return nil
		},
	}
}

func accountSetActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <account-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.ValidateAccountID(args[0]) {
				return fmt.Errorf("account id %q is not a UUID", args[0])
			}

			backend, err := backendFrom(cmd)
			if err != nil {
				return err
			}

			return backend.Accounts.SetActive(cmd.Context(), args[0], active)
		},
	}
}
