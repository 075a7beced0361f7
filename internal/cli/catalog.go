package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FgForrest/evitaDB-sub062/internal/engine"
	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Create, change and inspect catalogs",
	}

	cmd.AddCommand(
		mutationCommand(rootOpts, "create <name>", "Create an empty catalog", 1,
			func(args []string) (mutation.EngineMutation, error) {
				return mutation.NewCreateCatalog(args[0]), nil
			}),
		mutationCommand(rootOpts, "duplicate <source> <target>", "Copy a catalog into a new inactive catalog", 2,
			func(args []string) (mutation.EngineMutation, error) {
				return mutation.NewDuplicateCatalog(args[0], args[1]), nil
			}),
		mutationCommand(rootOpts, "rename <name> <new-name>", "Rename a catalog", 2,
			func(args []string) (mutation.EngineMutation, error) {
				return mutation.NewModifyCatalogName(args[0], args[1], false), nil
			}),
		mutationCommand(rootOpts, "replace <source> <target>", "Replace target with source, discarding target", 2,
			func(args []string) (mutation.EngineMutation, error) {
				return mutation.NewModifyCatalogName(args[0], args[1], true), nil
			}),
		mutationCommand(rootOpts, "restore <name> <backup-dir>", "Restore a catalog from a backup folder", 2,
			func(args []string) (mutation.EngineMutation, error) {
				return mutation.NewRestoreCatalog(args[0], args[1]), nil
			}),
		mutationCommand(rootOpts, "alive <name>", "Switch a warming-up catalog to alive", 1,
			func(args []string) (mutation.EngineMutation, error) {
				return mutation.NewMakeCatalogAlive(args[0]), nil
			}),
		mutationCommand(rootOpts, "mutability <name> read-only|read-write", "Change whether a catalog accepts writes", 2,
			func(args []string) (mutation.EngineMutation, error) {
				switch args[1] {
				case "read-only":
					return mutation.NewSetCatalogMutability(args[0], false), nil
				case "read-write":
					return mutation.NewSetCatalogMutability(args[0], true), nil
				}
				return nil, fmt.Errorf("mutability must be read-only or read-write, got %q", args[1])
			}),
		mutationCommand(rootOpts, "activate <name>", "Load an inactive catalog", 1,
			func(args []string) (mutation.EngineMutation, error) {
				return mutation.NewSetCatalogState(args[0], true), nil
			}),
		mutationCommand(rootOpts, "deactivate <name>", "Unload a catalog without removing it", 1,
			func(args []string) (mutation.EngineMutation, error) {
				return mutation.NewSetCatalogState(args[0], false), nil
			}),
		newSchemaCommand(rootOpts),
		newRemoveCommand(rootOpts),
		newDescribeCommand(rootOpts),
		newListCommand(rootOpts),
	)
	return cmd
}

// mutationCommand builds a command that applies the mutation build returns
// and prints the resulting catalog.
func mutationCommand(
	rootOpts *RootOptions,
	use, short string,
	nargs int,
	build func(args []string) (mutation.EngineMutation, error),
) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.ExactArgs(nargs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			m, err := build(args)
			if err != nil {
				return f.fail(ExitCommandError, ErrCodeGeneric, "invalid arguments", err)
			}
			return runMutation(rootOpts, cmd, f, m)
		},
	}
}

// runMutation applies m, waits for it and prints the catalog it produced.
func runMutation(rootOpts *RootOptions, cmd *cobra.Command, f *OutputFormatter, m mutation.EngineMutation) error {
	e, err := rootOpts.openEngine(cmd, f)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := commandContext(cmd)
	p, err := e.Apply(ctx, m, func(percent int) {
		if f.Verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d%%\n", m.Kind(), percent)
		}
	})
	if err != nil {
		return f.fail(ExitFailure, ErrorCode(err), fmt.Sprintf("%s rejected", m.Kind()), err)
	}
	res, err := p.Wait(ctx)
	if err != nil {
		return f.fail(ExitFailure, ErrCodeExecution, fmt.Sprintf("%s failed", p.Name()), err)
	}
	return f.Success(newCatalogView(e.Config().Storage.Directory, res.Catalog, res.EngineVersion))
}

func newSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		description string
		set         []string
		remove      []string
	)
	cmd := &cobra.Command{
		Use:           "schema <name>",
		Short:         "Change the description or attributes of a catalog",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			attrs := make(map[string]string, len(set))
			for _, kv := range set {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return f.fail(ExitCommandError, ErrCodeGeneric, "invalid arguments",
						fmt.Errorf("attribute %q must be key=value", kv))
				}
				attrs[k] = v
			}
			var desc *string
			if cmd.Flags().Changed("description") {
				desc = &description
			}
			return runMutation(rootOpts, cmd, f, mutation.NewModifyCatalogSchema(args[0], desc, attrs, remove...))
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "new catalog description")
	cmd.Flags().StringArrayVar(&set, "set", nil, "set an attribute (key=value, repeatable)")
	cmd.Flags().StringArrayVar(&remove, "remove", nil, "remove an attribute (repeatable)")
	return cmd
}

func newRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <name>",
		Short:         "Remove a catalog and its files",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			e, err := rootOpts.openEngine(cmd, f)
			if err != nil {
				return err
			}
			defer e.Close()

			removed, err := e.DeleteCatalogIfExists(commandContext(cmd), args[0])
			if err != nil {
				return f.fail(ExitFailure, ErrorCode(err), "failed to remove catalog", err)
			}
			return f.Success(removal{Name: args[0], Removed: removed})
		},
	}
}

func newDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "describe <name>",
		Short:         "Show a catalog",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withEngine(rootOpts, cmd, f, func(e *engine.Engine) error {
				c, ok := e.Catalog(args[0])
				if !ok {
					return f.fail(ExitFailure, ErrCodeNotFound, "failed to describe catalog",
						fmt.Errorf("%w: %q", mutation.ErrCatalogNotFound, args[0]))
				}
				return f.Success(newCatalogView(e.Config().Storage.Directory, c, 0))
			})
		},
	}
}

func newListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List every catalog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withEngine(rootOpts, cmd, f, func(e *engine.Engine) error {
				list := catalogList{Catalogs: []catalogView{}}
				for _, c := range e.State().Catalogs() {
					list.Catalogs = append(list.Catalogs, newCatalogView(e.Config().Storage.Directory, c, 0))
				}
				return f.Success(list)
			})
		},
	}
}

// withEngine opens the engine, runs fn and closes the engine.
func withEngine(rootOpts *RootOptions, cmd *cobra.Command, f *OutputFormatter, fn func(e *engine.Engine) error) error {
	e, err := rootOpts.openEngine(cmd, f)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}
