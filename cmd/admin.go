package main

import (
	"errors"
	"fmt"

	"github.com/kovalyov-valentin/newsletter-board/internal/auth"
	"github.com/kovalyov-valentin/newsletter-board/internal/config"
	"github.com/spf13/cobra"
)

var errVolatileAdmins = errors.New("admins are persisted only by the postgres backend, use NB_ADMIN_EMAIL instead")

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage board administrators",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator who can log in to the board",
	Long: `Create an administrator account.

Examples:
  newsboard admin create --name Ana --email ana@example.com --password s3cret!`,
	Args: cobra.NoArgs,
	RunE: runAdminCreate,
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().String("name", "", "administrator name")
	adminCreateCmd.Flags().String("email", "", "login e-mail")
	adminCreateCmd.Flags().String("password", "", "login password")
	_ = adminCreateCmd.MarkFlagRequired("name")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
}

func runAdminCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	if !b.durableAdmins {
		return errVolatileAdmins
	}

	id, err := auth.New(b.admins, cfg.SessionTTL, cfg.SessionReapInterval).CreateAdmin(ctx, name, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %s\n", email, id)

	return nil
}
