package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// DiffOptions holds the parsed flags for "diff".
type DiffOptions struct {
	Old          string
	New          string
	Package      string
	From         string
	To           string
	FailBreaking bool
}

// Local reports whether both versions are read from directories.
func (o DiffOptions) Local() bool {
	return o.Old != "" || o.New != ""
}

// DiffRunFunc is the function signature for the diff command handler.
// It is injected by the wiring layer (cmd/tsexports/main.go).
type DiffRunFunc func(ctx context.Context, env *Env, opts DiffOptions) error

// NewDiffCmd creates the "diff" subcommand.
func NewDiffCmd(runFunc DiffRunFunc) *cobra.Command {
	var opts DiffOptions

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Report export changes between two package versions",
		Long: "Compare the exports of two versions of a package, either unpacked in " +
			"--old and --new or downloaded from the registry with --package, --from and --to.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateDiffFlags(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ok := EnvFromContext(cmd.Context())
			if !ok {
				return fmt.Errorf("command environment not initialized")
			}
			return runFunc(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Old, "old", "", "Directory holding the old package version")
	cmd.Flags().StringVar(&opts.New, "new", "", "Directory holding the new package version")
	cmd.Flags().StringVar(&opts.Package, "package", "", "npm package name to download")
	cmd.Flags().StringVar(&opts.From, "from", "", "Old version or dist-tag")
	cmd.Flags().StringVar(&opts.To, "to", "", "New version or dist-tag")
	cmd.Flags().BoolVar(&opts.FailBreaking, "fail-on-breaking", false, "Exit with an error when breaking changes are found")
	cmd.Flags().String("format", "json", "Output format: json, yaml, text")
	cmd.Flags().StringSlice("registry", nil, "npm registry URLs tried in order")

	return cmd
}

func validateDiffFlags(opts DiffOptions) error {
	if opts.Local() {
		if opts.Package != "" || opts.From != "" || opts.To != "" {
			return fmt.Errorf("--old/--new cannot be combined with --package/--from/--to")
		}
		if opts.Old == "" || opts.New == "" {
			return fmt.Errorf("--old and --new must be given together")
		}
		if err := checkDir(opts.Old, "old dir"); err != nil {
			return err
		}
		return checkDir(opts.New, "new dir")
	}

	if opts.Package == "" {
		return fmt.Errorf("either --old/--new or --package is required")
	}
	if opts.From == "" {
		return fmt.Errorf("--from is required")
	}
	if opts.To == "" {
		return fmt.Errorf("--to is required")
	}
	if opts.From == opts.To {
		return fmt.Errorf("--from and --to are both %s", opts.From)
	}
	return nil
}
