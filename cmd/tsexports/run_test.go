package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/tsexports/core/changespec"
	"github.com/emenda-labs/tsexports/core/cli"
	"github.com/emenda-labs/tsexports/core/config"
	"github.com/emenda-labs/tsexports/core/logging"
	"github.com/emenda-labs/tsexports/drivers/typescript/symbols"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, text := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
}

func testEnv(cfg *config.Config) (*cli.Env, *bytes.Buffer) {
	var out bytes.Buffer
	return &cli.Env{Config: cfg, Log: logging.Discard(), Out: &out}, &out
}

var (
	oldShapes = map[string]string{
		"package.json": `{"name": "shapes", "version": "1.0.0", "types": "index.d.ts"}`,
		"index.d.ts":   "export declare function area(radius: number): number;\nexport declare const PI: number;\n",
	}
	newShapes = map[string]string{
		"package.json": `{"name": "shapes", "version": "2.0.0", "types": "index.d.ts"}`,
		"index.d.ts":   "export declare function area(radius: number, precision: number): number;\n",
	}
)

func TestRunExports_Files(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.ts": "export { helper } from './util';\nexport const version = '1';\n",
		"util.ts":  "export function helper(): void {}\n",
	})

	cfg := config.DefaultConfig()
	cfg.BaseDir = dir
	env, out := testEnv(cfg)

	require.NoError(t, runExports(context.Background(), env, cli.ExportsOptions{Files: []string{"index.ts"}}))

	var got symbols.Symbols
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.Modules, 1)
	assert.Equal(t, "index.ts", got.Modules[0].File)
	require.Len(t, got.Modules[0].Exports, 2)

	helper := got.Modules[0].Exports[0]
	assert.Equal(t, "helper", helper.Name)
	assert.Equal(t, symbols.SymbolFunction, helper.Kind)
	require.NotNil(t, helper.Alias)
	assert.Equal(t, "util.ts", helper.Alias.Module)
}

func TestRunExports_PackageDir(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, oldShapes)

	cfg := config.DefaultConfig()
	cfg.Format = "text"
	env, out := testEnv(cfg)

	require.NoError(t, runExports(context.Background(), env, cli.ExportsOptions{PackageDir: dir}))
	assert.Contains(t, out.String(), "shapes@1.0.0")
	assert.Contains(t, out.String(), "area")
	assert.Contains(t, out.String(), "PI")
}

func TestRunExports_MissingFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseDir = t.TempDir()
	env, _ := testEnv(cfg)

	err := runExports(context.Background(), env, cli.ExportsOptions{Files: []string{"nope.ts"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source file: nope.ts")
}

func TestRunDiff_LocalDirs(t *testing.T) {
	oldDir, newDir := t.TempDir(), t.TempDir()
	writeTree(t, oldDir, oldShapes)
	writeTree(t, newDir, newShapes)

	env, out := testEnv(config.DefaultConfig())
	require.NoError(t, runDiff(context.Background(), env, cli.DiffOptions{Old: oldDir, New: newDir}))

	var spec changespec.ChangeSpec
	require.NoError(t, json.Unmarshal(out.Bytes(), &spec))
	assert.Equal(t, "shapes", spec.Package)
	assert.Equal(t, "1.0.0", spec.OldVersion)
	assert.Equal(t, "2.0.0", spec.NewVersion)

	kinds := make(map[string]changespec.ChangeKind)
	for _, c := range spec.Changes {
		kinds[c.Symbol] = c.Kind
	}
	assert.Equal(t, map[string]changespec.ChangeKind{
		"PI":   changespec.ChangeKindRemoved,
		"area": changespec.ChangeKindSignatureChanged,
	}, kinds)

	out.Reset()
	err := runDiff(context.Background(), env, cli.DiffOptions{Old: oldDir, New: newDir, FailBreaking: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 breaking changes between 1.0.0 and 2.0.0")
}

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, text := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "package/" + name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(text))}))
		_, err := tw.Write([]byte(text))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestRunDiff_Registry(t *testing.T) {
	oldTgz, newTgz := tarball(t, oldShapes), tarball(t, newShapes)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shapes":
			_, _ = w.Write([]byte(`{"dist-tags": {"latest": "2.0.0"}, "versions": {"1.0.0": {}, "2.0.0": {}}}`))
		case "/shapes/-/shapes-1.0.0.tgz":
			_, _ = w.Write(oldTgz)
		case "/shapes/-/shapes-2.0.0.tgz":
			_, _ = w.Write(newTgz)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Registries = []string{srv.URL}
	cfg.Format = "yaml"
	env, out := testEnv(cfg)

	require.NoError(t, runDiff(context.Background(), env, cli.DiffOptions{Package: "shapes", From: "1.0.0", To: "latest"}))
	assert.Contains(t, out.String(), "package: shapes")
	assert.Contains(t, out.String(), "new_version: 2.0.0")
	assert.Contains(t, out.String(), "kind: signature_changed")

	err := runDiff(context.Background(), env, cli.DiffOptions{Package: "shapes", From: "latest", To: "2.0.0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both resolve to shapes@2.0.0")

	err = runDiff(context.Background(), env, cli.DiffOptions{Package: "shapes", From: "0.9.0", To: "2.0.0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving --from")
}
