package cli

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
)

// inspectReport is the document printed by "tabsession inspect"
type inspectReport struct {
	Archive  string           `json:"archive" yaml:"archive"`
	Version  int              `json:"version" yaml:"version"`
	Error    string           `json:"error,omitempty" yaml:"error,omitempty"`
	Migrated bool             `json:"migrated" yaml:"migrated"`
	Tabs     []session.Record `json:"tabs" yaml:"tabs"`
	Assets   []string         `json:"assets" yaml:"assets"`
}

func newInspectCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the saved tabs and screenshots",
		Long: `Decode the tab archive without modifying it and print its tabs together
with the stored screenshot keys and the legacy migration flag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "yaml" && format != "json" {
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}

			eng, err := opts.openEngine(true)
			if err != nil {
				return err
			}

			report := inspectReport{
				Archive: eng.Archive().Path(),
				Tabs:    []session.Record{},
				Assets:  eng.Assets().Keys(),
			}
			records, version, err := eng.Archive().Peek()
			if err != nil {
				report.Error = err.Error()
			} else if records != nil {
				report.Tabs = records
			}
			report.Version = int(version)
			if report.Assets == nil {
				report.Assets = []string{}
			}
			if report.Migrated, err = eng.Migrated(); err != nil {
				return fmt.Errorf("reading preferences: %w", err)
			}

			var out []byte
			if format == "json" {
				out, err = sonic.ConfigStd.MarshalIndent(report, "", "  ")
			} else {
				out, err = yaml.Marshal(report)
			}
			if err != nil {
				return fmt.Errorf("encoding report: %w", err)
			}
			printf(cmd.OutOrStdout(), "%s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	return cmd
}
