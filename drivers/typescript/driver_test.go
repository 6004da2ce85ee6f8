package typescript

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/tsexports/core/changespec"
	"github.com/emenda-labs/tsexports/drivers/typescript/symbols"
	"github.com/emenda-labs/tsexports/drivers/typescript/tsparser"
	"github.com/emenda-labs/tsexports/pkg/npmregistry"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func memDriver(t *testing.T, files map[string]string) *Driver {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, text := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(text), 0o644))
	}
	parser := tsparser.New(discard, tsparser.WithFilesystem(fsys), tsparser.WithExtensions(PackageExtensions...))
	return NewDriver(discard, WithFs(fsys), WithParser(parser))
}

func TestExtractExports_FromManifest(t *testing.T) {
	d := memDriver(t, map[string]string{
		"/v1/package/package.json":    `{"name": "widgets", "version": "1.0.0", "main": "lib/index.js"}`,
		"/v1/package/lib/index.js":    "export function compiled() {}\n",
		"/v1/package/lib/index.d.ts":  "export declare function make(size: number): Widget;\nexport * from './widget';\n",
		"/v1/package/lib/widget.d.ts": "export interface Widget { size: number }\n",
		"/v1/package/lib/internal.ts": "export const hidden = 1;\n",
	})

	syms, err := d.ExtractExports(context.Background(), "/v1", nil)
	require.NoError(t, err)
	assert.Equal(t, "widgets", syms.Package)
	assert.Equal(t, "1.0.0", syms.Version)

	// The declaration file shadows the compiled entry.
	require.Len(t, syms.Modules, 1)
	assert.Equal(t, "lib/index.d.ts", syms.Modules[0].File)

	var names []string
	for _, s := range syms.Modules[0].Exports {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"make", "Widget"}, names)
	assert.Equal(t, symbols.SymbolFunction, syms.Modules[0].Exports[0].Kind)
	assert.Equal(t, symbols.SymbolInterface, syms.Modules[0].Exports[1].Kind)
}

func TestExtractExports_FallbackEntry(t *testing.T) {
	d := memDriver(t, map[string]string{
		"/src/package.json": `{"name": "plain", "main": "missing.js"}`,
		"/src/index.js":     "export const answer = 42;\n",
	})

	syms, err := d.ExtractExports(context.Background(), "/src", nil)
	require.NoError(t, err)
	require.Len(t, syms.Modules, 1)
	assert.Equal(t, "index.js", syms.Modules[0].File)
	assert.Equal(t, "answer", syms.Modules[0].Exports[0].Name)
}

func TestExtractExports_ExplicitFiles(t *testing.T) {
	d := memDriver(t, map[string]string{
		"/repo/a.ts": "export const a = 1;\n",
		"/repo/b.ts": "// nothing here\n",
	})

	syms, err := d.ExtractExports(context.Background(), "/repo", []string{"a.ts", "b.ts"})
	require.NoError(t, err)
	assert.Empty(t, syms.Package)
	require.Len(t, syms.Modules, 1)
	assert.Equal(t, "a.ts", syms.Modules[0].File)

	_, err = d.ExtractExports(context.Background(), "/repo", []string{"missing.ts"})
	require.Error(t, err)
	assert.ErrorIs(t, err, tsparser.ErrInvalidSourceFile)
}

func TestExtractExports_NoPackage(t *testing.T) {
	d := memDriver(t, map[string]string{
		"/empty/readme.md": "hi",
	})

	_, err := d.ExtractExports(context.Background(), "/empty", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finding package root")
}

func TestComputeChanges(t *testing.T) {
	d := memDriver(t, map[string]string{
		"/old/package.json": `{"name": "shapes", "version": "1.0.0", "types": "index.d.ts"}`,
		"/old/index.d.ts": `export declare function area(radius: number): number;
export declare function perimeterOf(radius: number, units: string): number;
export declare const PI: number;
export { Circle } from './circle';
`,
		"/old/circle.d.ts": "export declare class Circle { radius: number }\n",

		"/new/package.json": `{"name": "shapes", "version": "2.0.0", "types": "index.d.ts"}`,
		"/new/index.d.ts": `export declare function area(radius: number, precision: number): number;
export declare function perimeter(radius: number, units: string): number;
export declare const TAU: string;
export { Round as Circle } from './round';
`,
		"/new/round.d.ts": "export declare class Round { radius: number }\n",
	})

	spec, err := d.ComputeChanges(context.Background(), "/old", "/new", "", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "shapes", spec.Package)
	assert.Equal(t, "1.0.0", spec.OldVersion)
	assert.Equal(t, "2.0.0", spec.NewVersion)

	bySymbol := make(map[string]changespec.Change)
	for _, c := range spec.Changes {
		bySymbol[c.Symbol] = c
	}

	assert.Equal(t, changespec.ChangeKindSignatureChanged, bySymbol["area"].Kind)
	assert.Equal(t, changespec.ChangeKindRenamed, bySymbol["perimeterOf"].Kind)
	assert.Equal(t, "perimeter", bySymbol["perimeterOf"].NewName)
	assert.Equal(t, changespec.ChangeKindRetargeted, bySymbol["Circle"].Kind)
	assert.Equal(t, "circle.d.ts#Circle", bySymbol["Circle"].OldTarget)
	assert.Equal(t, "round.d.ts#Round", bySymbol["Circle"].NewTarget)
	assert.Equal(t, changespec.ChangeKindRemoved, bySymbol["PI"].Kind)
	assert.Equal(t, changespec.ChangeKindAdded, bySymbol["TAU"].Kind)
	assert.Len(t, spec.Changes, 5)
}

func TestComputeChanges_PackageMismatch(t *testing.T) {
	d := memDriver(t, map[string]string{
		"/a/package.json": `{"name": "left", "main": "index.js"}`,
		"/a/index.js":     "export const x = 1;\n",
		"/b/package.json": `{"name": "right", "main": "index.js"}`,
		"/b/index.js":     "export const x = 1;\n",
	})

	_, err := d.ComputeChanges(context.Background(), "/a", "/b", "1", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "package mismatch")
}

func TestFetchSource(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := []byte(`{"name":"tiny","version":"0.1.0"}`)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "package/package.json", Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tiny/-/tiny-0.1.0.tgz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	d := NewDriver(discard, WithRegistry(npmregistry.NewClient(srv.URL)))
	dir, cleanup, err := d.FetchSource(context.Background(), "tiny", "0.1.0")
	require.NoError(t, err)
	defer cleanup()

	got, err := os.ReadFile(filepath.Join(dir, "package", "package.json"))
	require.NoError(t, err)
	assert.Equal(t, body, got)

	_, _, err = d.FetchSource(context.Background(), "tiny", "9.9.9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downloading tarball for tiny@9.9.9")
}

func TestEntryHelpers(t *testing.T) {
	assert.True(t, isTypeScript("a/index.d.ts"))
	assert.True(t, isTypeScript("view.tsx"))
	assert.False(t, isTypeScript("index.js"))

	stem, ok := cutScriptExt("lib/index.mjs")
	assert.True(t, ok)
	assert.Equal(t, "lib/index", stem)
	_, ok = cutScriptExt("lib/index.ts")
	assert.False(t, ok)
}
