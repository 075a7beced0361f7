package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/FgForrest/evitaDB-sub062/internal/config"
	"github.com/FgForrest/evitaDB-sub062/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Storage    string

	// EngineOptions are passed to engine.Open after the logger option (for
	// testing).
	EngineOptions []engine.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the evitactl CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evitactl",
		Short: "Manage the catalogs of an evitaDB engine",
		Long: `Manage the catalogs of an evitaDB engine.

Every catalog command runs as one engine transaction: it is admitted under
the engine state lock, written to the WAL and made visible once durable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "configuration file (.yaml, .yml or .cue)")
	cmd.PersistentFlags().StringVar(&opts.Storage, "storage", "", "storage directory (overrides the configuration)")

	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  o.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: o.Verbose,
	}
}

// openEngine loads the configuration and opens the engine. Failures are
// reported through f.
func (o *RootOptions) openEngine(cmd *cobra.Command, f *OutputFormatter) (*engine.Engine, error) {
	cfg := config.Default()
	if o.ConfigFile != "" {
		loaded, err := config.Load(o.ConfigFile)
		if err != nil {
			return nil, f.fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
		}
		cfg = loaded
	}
	if o.Storage != "" {
		cfg.Storage.Directory = o.Storage
	}

	logger := cfg.Log.NewLogger(cmd.ErrOrStderr(), o.Verbose)
	opts := append([]engine.Option{engine.WithLogger(logger)}, o.EngineOptions...)
	e, err := engine.Open(commandContext(cmd), cfg, opts...)
	if err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeStorage, "failed to open engine", err)
	}
	return e, nil
}

// commandContext returns the command's context, or a background context when
// the command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
