package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ExportsOptions holds the parsed arguments for "exports". Flags backed by
// configuration keys are read from Env.Config instead.
type ExportsOptions struct {
	Files      []string
	PackageDir string
}

// ExportsRunFunc is the function signature for the exports command handler.
// It is injected by the wiring layer (cmd/tsexports/main.go).
type ExportsRunFunc func(ctx context.Context, env *Env, opts ExportsOptions) error

// NewExportsCmd creates the "exports" subcommand.
func NewExportsCmd(runFunc ExportsRunFunc) *cobra.Command {
	var opts ExportsOptions

	cmd := &cobra.Command{
		Use:   "exports [files...]",
		Short: "List the exports of TypeScript modules",
		Long: "List the exports of the given files, resolved relative to --base-dir. " +
			"Without files, the package in --package-dir is read through its package.json entry points.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			opts.Files = args
			return validateExportsFlags(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ok := EnvFromContext(cmd.Context())
			if !ok {
				return fmt.Errorf("command environment not initialized")
			}
			return runFunc(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.PackageDir, "package-dir", "", "Directory containing package.json (used when no files are given)")
	cmd.Flags().String("base-dir", ".", "Directory file names are resolved against")
	cmd.Flags().String("format", "json", "Output format: json, yaml, text")
	cmd.Flags().StringSlice("extensions", nil, "Module file extensions in resolution order (default .ts,.js)")
	cmd.Flags().String("charset", "utf8", "Source file character set")

	return cmd
}

func validateExportsFlags(opts ExportsOptions) error {
	if len(opts.Files) > 0 && opts.PackageDir != "" {
		return fmt.Errorf("--package-dir cannot be combined with file arguments")
	}
	if opts.PackageDir != "" {
		return checkDir(opts.PackageDir, "package dir")
	}
	return nil
}

func checkDir(path, what string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist: %s", what, path)
		}
		return fmt.Errorf("cannot access %s: %w", what, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %s", what, path)
	}
	return nil
}
