package driver

import (
	"context"

	"github.com/emenda-labs/tsexports/core/changespec"
	"github.com/emenda-labs/tsexports/drivers/typescript/symbols"
)

// LanguageDriver is the interface a language implements to report the public
// API of a package and how it changed between versions.
type LanguageDriver interface {
	// FetchSource downloads a published package version and unpacks it to a
	// local directory. Returns the path to the unpacked source and a cleanup
	// function that removes the temp directory.
	FetchSource(ctx context.Context, pkg, version string) (path string, cleanup func(), err error)

	// ExtractExports lists the exports of files under dir. With no files the
	// driver picks the package's entry files itself.
	ExtractExports(ctx context.Context, dir string, files []string) (symbols.Symbols, error)

	// ComputeChanges diffs two unpacked package versions and returns the
	// changes between them.
	ComputeChanges(ctx context.Context, oldPath, newPath, oldVersion, newVersion string) (changespec.ChangeSpec, error)
}
