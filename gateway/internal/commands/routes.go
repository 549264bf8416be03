package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inventra-labs/inventra/gateway/internal/routes"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Route table commands",
}

var routesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the route table",
	Long: `Load the route table the gateway would use, resolve upstreams from the
environment, and print it. Exits non-zero when the table is invalid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var descs []routes.Descriptor
		var err error
		if file != "" {
			descs, err = routes.LoadFile(file)
		} else {
			descs, err = cfg.RouteDescriptors()
		}
		if err != nil {
			return err
		}

		table, err := routes.Load(descs, routes.LoadOptions{Logger: logger.Logger})
		if err != nil {
			return fmt.Errorf("route table is invalid: %w", err)
		}
		if err := cfg.CheckRouteTimeouts(table); err != nil {
			return fmt.Errorf("route table is invalid: %w", err)
		}

		rows := make([][]string, 0, table.Len())
		for _, r := range table.Routes() {
			rewrite := r.Rewrite
			if rewrite == "" {
				rewrite = "-"
			}
			rows = append(rows, []string{
				r.Name,
				r.Prefix,
				r.Upstream.String(),
				rewrite,
				strings.Join(r.RoleNames(), ","),
				r.Timeout.String(),
			})
		}
		if err := printTable(cmd.OutOrStdout(), []string{"NAME", "PREFIX", "UPSTREAM", "REWRITE", "ROLES", "TIMEOUT"}, rows); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "%d routes OK", table.Len())
		return nil
	},
}

func init() {
	routesCheckCmd.Flags().String("file", "", "routes file to check instead of the configured table")
	routesCmd.AddCommand(routesCheckCmd)
	rootCmd.AddCommand(routesCmd)
}
