package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(newUpgradeCmd())
	cmd.AddCommand(newDowngradeCmd())
	cmd.AddCommand(newCurrentCmd())
	return cmd
}

func newUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := loadApp()
			if err != nil {
				return err
			}
			defer done()

			if err := app.Migrator.Upgrade(cmd.Context()); err != nil {
				return err
			}
			version, err := app.Migrator.CurrentVersion(cmd.Context())
			if err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "Schema upgraded to version %d\n", version)
			return nil
		},
	}
}

func newDowngradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "downgrade VERSION",
		Short: "Migrate the schema down to VERSION",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[0])
			if err != nil {
				return err
			}

			app, done, err := loadApp()
			if err != nil {
				return err
			}
			defer done()

			if err := app.Migrator.MigrateTo(cmd.Context(), version); err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "Schema migrated to version %d\n", version)
			return nil
		},
	}
}

func newCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := loadApp()
			if err != nil {
				return err
			}
			defer done()

			version, err := app.Migrator.CurrentVersion(cmd.Context())
			if err != nil {
				return err
			}
			latest, err := app.Migrator.Latest()
			if err != nil {
				return err
			}
			infoColor.Fprintf(cmd.OutOrStdout(), "Current version %d of %d\n", version, latest)
			return nil
		},
	}
}

func parseVersion(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q", s)
	}
	return int32(v), nil
}
