package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create or promote an admin account",
	Long: `Create an admin account, or promote an existing account with the same
email to admin. Flags fall back to ADMIN_EMAIL, ADMIN_PASSWORD and ADMIN_NAME.
Running it again for the same email changes nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := flagOrEnv(cmd, "email", "ADMIN_EMAIL")
		password := flagOrEnv(cmd, "password", "ADMIN_PASSWORD")
		name := flagOrEnv(cmd, "name", "ADMIN_NAME")
		if email == "" {
			return fmt.Errorf("--email or ADMIN_EMAIL is required")
		}

		repo, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer repo.Close()

		user, created, err := newAuthService(repo).EnsureAdmin(cmd.Context(), email, password, name)
		if err != nil {
			return err
		}

		if created {
			printSuccess(cmd.OutOrStdout(), "Created admin %s (%s)", user.Email, user.ID)
		} else {
			printSuccess(cmd.OutOrStdout(), "%s is an admin (%s)", user.Email, user.ID)
		}
		return nil
	},
}

func flagOrEnv(cmd *cobra.Command, flag, env string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	return os.Getenv(env)
}

func init() {
	createAdminCmd.Flags().String("email", "", "admin email (env ADMIN_EMAIL)")
	createAdminCmd.Flags().String("password", "", "admin password, used only when creating (env ADMIN_PASSWORD)")
	createAdminCmd.Flags().String("name", "", "display name (env ADMIN_NAME)")
	rootCmd.AddCommand(createAdminCmd)
}
