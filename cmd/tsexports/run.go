package main

import (
	"context"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/emenda-labs/tsexports/core/cli"
	"github.com/emenda-labs/tsexports/core/driver"
	"github.com/emenda-labs/tsexports/drivers/typescript"
	"github.com/emenda-labs/tsexports/drivers/typescript/tsparser"
	"github.com/emenda-labs/tsexports/pkg/npmregistry"
)

func newDriver(env *cli.Env, extensions []string) (driver.LanguageDriver, *npmregistry.Client) {
	registry := npmregistry.NewClient(env.Config.Registries...).WithLogger(env.Log)
	parser := tsparser.New(env.Log,
		tsparser.WithExtensions(extensions...),
		tsparser.WithCharset(env.Config.Charset))
	return typescript.NewDriver(env.Log, typescript.WithRegistry(registry), typescript.WithParser(parser)), registry
}

func runExports(ctx context.Context, env *cli.Env, opts cli.ExportsOptions) error {
	cfg := env.Config

	if len(opts.Files) > 0 {
		drv, _ := newDriver(env, cfg.Extensions)
		syms, err := drv.ExtractExports(ctx, cfg.BaseDir, opts.Files)
		if err != nil {
			return err
		}
		return cli.WriteSymbols(env.Out, cfg.Format, syms)
	}

	dir := opts.PackageDir
	if dir == "" {
		dir = cfg.BaseDir
	}
	drv, _ := newDriver(env, typescript.PackageExtensions)
	syms, err := drv.ExtractExports(ctx, dir, nil)
	if err != nil {
		return err
	}
	return cli.WriteSymbols(env.Out, cfg.Format, syms)
}

func runDiff(ctx context.Context, env *cli.Env, opts cli.DiffOptions) error {
	drv, registry := newDriver(env, typescript.PackageExtensions)

	oldPath, newPath := opts.Old, opts.New
	var oldVersion, newVersion string

	if !opts.Local() {
		from, err := registry.ResolveVersion(ctx, opts.Package, opts.From)
		if err != nil {
			return fmt.Errorf("resolving --from: %w", err)
		}
		to, err := registry.ResolveVersion(ctx, opts.Package, opts.To)
		if err != nil {
			return fmt.Errorf("resolving --to: %w", err)
		}
		if from == to {
			return fmt.Errorf("%s and %s both resolve to %s@%s", opts.From, opts.To, opts.Package, from)
		}
		if semver.IsValid("v"+from) && semver.IsValid("v"+to) && semver.Compare("v"+to, "v"+from) < 0 {
			env.Log.Warn("target version is older than current version", "from", from, "to", to)
		}

		env.Log.Info("downloading", "package", opts.Package, "version", from)
		var oldCleanup, newCleanup func()
		oldPath, oldCleanup, err = drv.FetchSource(ctx, opts.Package, from)
		if err != nil {
			return fmt.Errorf("fetching old version: %w", err)
		}
		defer oldCleanup()

		env.Log.Info("downloading", "package", opts.Package, "version", to)
		newPath, newCleanup, err = drv.FetchSource(ctx, opts.Package, to)
		if err != nil {
			return fmt.Errorf("fetching new version: %w", err)
		}
		defer newCleanup()

		oldVersion, newVersion = from, to
	}

	spec, err := drv.ComputeChanges(ctx, oldPath, newPath, oldVersion, newVersion)
	if err != nil {
		return err
	}
	if err := cli.WriteChangeSpec(env.Out, env.Config.Format, spec); err != nil {
		return err
	}

	if breaking := spec.Breaking(); opts.FailBreaking && len(breaking) > 0 {
		return fmt.Errorf("%d breaking changes between %s and %s", len(breaking), spec.OldVersion, spec.NewVersion)
	}
	return nil
}
