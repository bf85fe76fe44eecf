// Package cli defines the Cobra commands of the tabsession tool.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/tabsession/internal/engine"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/config"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/logging"
)

var version = "dev" // set via ldflags at build time

type rootOptions struct {
	profile  string
	logLevel string
	dev      bool
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tabsession",
		Short: "Inspect and maintain saved browser tab sessions",
		Long: `tabsession manages the tab archive, screenshots and legacy migration
of one browser profile. Settings come from TABSESSION_* environment
variables; --profile overrides the profile directory.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.profile, "profile", "", "Profile directory (overrides TABSESSION_PROFILE_DIR)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.dev, "dev", false, "Human-readable development logging")

	root.AddCommand(newInspectCommand(opts))
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newGCCommand(opts))
	root.AddCommand(newClearCommand(opts))
	root.AddCommand(newServeCommand(opts))

	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig merges environment configuration with command-line overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.profile != "" {
		cfg = cfg.WithProfileDir(o.profile)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.dev {
		cfg.Logging.Development = true
	}
	return cfg, nil
}

// openEngine creates an engine for the command. Maintenance commands log
// warnings only unless a level was requested.
func (o *rootOptions) openEngine(quiet bool) (*engine.Engine, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if quiet && o.logLevel == "" {
		cfg.Logging.Level = "warn"
	}
	return engine.New(cfg, logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development))
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
