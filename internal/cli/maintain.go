package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var skipHistory bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert legacy tabs and history",
		Long: `Convert the legacy tab list into the tab archive and set the migrated
preference. Legacy history is copied into the history database unless
--skip-history is given. Legacy files are only read, so the command can be
re-run after an interruption.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.openEngine(true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			n, err := eng.MigrateTabs(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrating tabs: %w", err)
			}
			printf(out, "Migrated %d tab(s).\n", n)

			if skipHistory {
				return nil
			}
			data, err := eng.MigrateHistory(cmd.Context(), nil)
			if err != nil {
				return fmt.Errorf("migrating history: %w", err)
			}
			printf(out, "Migrated %d visit(s) across %d site(s).\n", len(data.Visits), len(data.Sites))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipHistory, "skip-history", false, "Do not migrate legacy history")
	return cmd
}

func newGCCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove screenshots of tabs missing from the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.openEngine(true)
			if err != nil {
				return err
			}

			removed, err := eng.CollectGarbage()
			if err != nil {
				return fmt.Errorf("collecting screenshots: %w", err)
			}
			if removed == 0 {
				printf(cmd.OutOrStdout(), "No orphaned screenshots.\n")
				return nil
			}
			printf(cmd.OutOrStdout(), "Removed %d orphaned screenshot(s).\n", removed)
			return nil
		},
	}
}

func newClearCommand(opts *rootOptions) *cobra.Command {
	var withAssets bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the tab archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.openEngine(true)
			if err != nil {
				return err
			}

			if err := eng.ClearArchive(); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Archive removed.\n")

			if withAssets {
				n := eng.Assets().ClearExcluding(nil)
				printf(cmd.OutOrStdout(), "Removed %d screenshot(s).\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withAssets, "assets", false, "Also delete every stored screenshot")
	return cmd
}
