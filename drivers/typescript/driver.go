package typescript

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/emenda-labs/tsexports/core/changespec"
	"github.com/emenda-labs/tsexports/core/driver"
	"github.com/emenda-labs/tsexports/drivers/typescript/exportdiff"
	"github.com/emenda-labs/tsexports/drivers/typescript/symbols"
	"github.com/emenda-labs/tsexports/drivers/typescript/tsparser"
	"github.com/emenda-labs/tsexports/pkg/archive"
	"github.com/emenda-labs/tsexports/pkg/npmregistry"
	"github.com/emenda-labs/tsexports/pkg/pkgjson"
)

var _ driver.LanguageDriver = (*Driver)(nil)

// PackageExtensions are probed when resolving imports inside a published
// package, which usually ships declaration files next to compiled sources.
var PackageExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".mjs", ".cjs"}

// fallbackEntries are tried when package.json names no usable entry file.
var fallbackEntries = []string{"index.ts", "index.d.ts", "index.js"}

// Driver implements driver.LanguageDriver for TypeScript and JavaScript
// packages.
type Driver struct {
	registry *npmregistry.Client
	parser   *tsparser.TsParser
	fs       afero.Fs
	log      *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithRegistry replaces the default registry client.
func WithRegistry(c *npmregistry.Client) Option {
	return func(d *Driver) { d.registry = c }
}

// WithParser replaces the default parser.
func WithParser(p *tsparser.TsParser) Option {
	return func(d *Driver) { d.parser = p }
}

// WithFs reads package sources from fsys. The parser is not affected; pass
// one created with tsparser.WithFilesystem as well.
func WithFs(fsys afero.Fs) Option {
	return func(d *Driver) { d.fs = fsys }
}

// NewDriver creates a Driver that reports through log.
func NewDriver(log *slog.Logger, opts ...Option) *Driver {
	if log == nil {
		log = slog.Default()
	}
	d := &Driver{fs: afero.NewOsFs(), log: log}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = npmregistry.NewClient().WithLogger(log)
	}
	if d.parser == nil {
		d.parser = tsparser.New(log, tsparser.WithExtensions(PackageExtensions...))
	}
	return d
}

// FetchSource downloads the package tarball from the registry and extracts
// it to a temp directory.
func (d *Driver) FetchSource(ctx context.Context, pkg, version string) (string, func(), error) {
	data, err := d.registry.DownloadTarball(ctx, pkg, version)
	if err != nil {
		return "", nil, fmt.Errorf("downloading tarball for %s@%s: %w", pkg, version, err)
	}

	dir, cleanup, err := archive.ExtractTarGz(data, pkg+"-"+version)
	if err != nil {
		return "", nil, fmt.Errorf("extracting tarball for %s@%s: %w", pkg, version, err)
	}

	d.log.Debug("package unpacked", "package", pkg, "version", version, "dir", dir)
	return dir, cleanup, nil
}

// ExtractExports parses files relative to dir. With no files it locates the
// package root under dir and uses the entry files its package.json declares.
func (d *Driver) ExtractExports(ctx context.Context, dir string, files []string) (symbols.Symbols, error) {
	var manifest *pkgjson.Manifest
	root := dir

	if len(files) == 0 {
		var err error
		root, err = pkgjson.FindPackageRoot(d.fs, dir)
		if err != nil {
			return symbols.Symbols{}, fmt.Errorf("finding package root in %s: %w", dir, err)
		}
		manifest, err = pkgjson.Read(d.fs, root)
		if err != nil {
			return symbols.Symbols{}, err
		}
		files = d.entryFiles(root, manifest)
		if len(files) == 0 {
			return symbols.Symbols{}, fmt.Errorf("no entry files found in %s", root)
		}
		d.log.Debug("entry files selected", "root", root, "files", strings.Join(files, ","))
	}

	res, err := d.parser.Parse(ctx, files, root)
	if err != nil {
		return symbols.Symbols{}, fmt.Errorf("parsing exports in %s: %w", root, err)
	}
	for _, diag := range res.Program.Diagnostics() {
		d.log.Debug("compiler diagnostic", "diagnostic", diag.String())
	}
	for _, diag := range res.TypeChecker.Diagnostics() {
		d.log.Debug("checker diagnostic", "diagnostic", diag.String())
	}

	syms := symbols.FromResult(res)
	if manifest != nil {
		syms.Package = manifest.Name
		syms.Version = manifest.Version
	}
	return syms, nil
}

// entryFiles keeps the manifest's entry files that exist, preferring
// TypeScript sources and declarations over JavaScript when both are shipped.
func (d *Driver) entryFiles(root string, manifest *pkgjson.Manifest) []string {
	var typed, untyped []string
	seen := make(map[string]bool)
	consider := func(entry string) {
		if seen[entry] || !d.exists(root, entry) {
			return
		}
		seen[entry] = true
		if isTypeScript(entry) {
			typed = append(typed, entry)
		} else {
			untyped = append(untyped, entry)
		}
	}

	for _, entry := range manifest.EntryPoints() {
		consider(entry)
		// A compiled entry often has a declaration file next to it.
		if stem, ok := cutScriptExt(entry); ok {
			consider(stem + ".d.ts")
		}
	}
	if len(typed) > 0 {
		return typed
	}
	if len(untyped) > 0 {
		return untyped
	}

	for _, entry := range fallbackEntries {
		if d.exists(root, entry) {
			return []string{entry}
		}
	}
	return nil
}

func (d *Driver) exists(root, entry string) bool {
	info, err := d.fs.Stat(filepath.Join(root, filepath.FromSlash(entry)))
	return err == nil && !info.IsDir()
}

func isTypeScript(name string) bool {
	switch path.Ext(name) {
	case ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}

func cutScriptExt(name string) (string, bool) {
	for _, ext := range []string{".js", ".mjs", ".cjs"} {
		if stem, ok := strings.CutSuffix(name, ext); ok {
			return stem, true
		}
	}
	return "", false
}

// ComputeChanges diffs two unpacked package versions.
func (d *Driver) ComputeChanges(ctx context.Context, oldPath, newPath, oldVersion, newVersion string) (changespec.ChangeSpec, error) {
	old, err := d.ExtractExports(ctx, oldPath, nil)
	if err != nil {
		return changespec.ChangeSpec{}, fmt.Errorf("extracting exports from %s: %w", oldVersion, err)
	}

	new, err := d.ExtractExports(ctx, newPath, nil)
	if err != nil {
		return changespec.ChangeSpec{}, fmt.Errorf("extracting exports from %s: %w", newVersion, err)
	}

	// Validate both trees hold the same package.
	if old.Package != "" && new.Package != "" && old.Package != new.Package {
		return changespec.ChangeSpec{}, fmt.Errorf("package mismatch: old=%s new=%s", old.Package, new.Package)
	}

	pkg := old.Package
	if pkg == "" {
		pkg = new.Package
	}
	if oldVersion == "" {
		oldVersion = old.Version
	}
	if newVersion == "" {
		newVersion = new.Version
	}

	return changespec.ChangeSpec{
		Package:    pkg,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		Changes:    exportdiff.DiffExports(old, new),
	}, nil
}
