package commands

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inventra-labs/inventra/gateway/internal/models"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role [user-id|email] [role]",
	Short: "Change a user's role",
	Long: `Change a user's role directly in the identity store. Roles: admin,
manager, staff, user. Credentials already issued keep their old role until
they expire or are refreshed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := models.ParseRole(args[1])
		if err != nil {
			return err
		}

		repo, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer repo.Close()

		id := args[0]
		if strings.Contains(id, "@") {
			user, err := repo.GetUserByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(id)))
			if err != nil {
				return err
			}
			id = user.ID
		}

		user, err := repo.UpdateUserRole(cmd.Context(), id, role, time.Now().UTC())
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "%s is now %s", user.Email, user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setRoleCmd)
}
