package pkgjson

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/pkg/package.json", []byte(`{
  "name": "@acme/widgets",
  "version": "2.1.0",
  "main": "./lib/index.js",
  "types": "./lib/index.d.ts"
}`), 0o644))

	m, err := Read(fsys, "/pkg")
	require.NoError(t, err)
	assert.Equal(t, "@acme/widgets", m.Name)
	assert.Equal(t, "2.1.0", m.Version)
	assert.Equal(t, []string{"lib/index.d.ts", "lib/index.js"}, m.EntryPoints())
}

func TestRead_Errors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/broken/package.json", []byte(`{"name": `), 0o644))

	_, err := Read(fsys, "/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no package.json found")

	_, err = Read(fsys, "/broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestFindPackageRoot(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		want    string
		wantErr bool
	}{
		{"direct", []string{"/x/package.json"}, "/x", false},
		{"npm tarball layout", []string{"/x/package/package.json", "/x/package/index.js"}, "/x/package", false},
		{"two levels", []string{"/x/a/b/package.json"}, "/x/a/b", false},
		{"too deep", []string{"/x/a/b/c/package.json"}, "", true},
		{"node_modules ignored", []string{"/x/node_modules/dep/package.json"}, "", true},
		{"none", []string{"/x/readme.md"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			for _, f := range tt.files {
				require.NoError(t, afero.WriteFile(fsys, f, []byte("{}"), 0o644))
			}
			got, err := FindPackageRoot(fsys, "/x")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManifest_EntryPoints(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		want     []string
	}{
		{"empty", Manifest{}, nil},
		{"main only", Manifest{Main: "index.js"}, []string{"index.js"}},
		{"typings and module", Manifest{Typings: "types.d.ts", Module: "esm/index.mjs", Main: "cjs/index.js"}, []string{"types.d.ts", "esm/index.mjs", "cjs/index.js"}},
		{"duplicates collapse", Manifest{Types: "./dist/index.d.ts", Typings: "dist/index.d.ts", Main: "./dist//index.js", Module: "dist/index.js"}, []string{"dist/index.d.ts", "dist/index.js"}},
		{"string exports", Manifest{Exports: json.RawMessage(`"./src/index.ts"`)}, []string{"src/index.ts"}},
		{"subpath exports", Manifest{Exports: json.RawMessage(`{".": "./main.js", "./extra": "./extra.js"}`)}, []string{"main.js"}},
		{
			"conditional exports",
			Manifest{Exports: json.RawMessage(`{".": {"require": "./cjs.js", "import": "./esm.js", "types": "./index.d.ts"}}`), Main: "cjs.js"},
			[]string{"index.d.ts", "esm.js", "cjs.js"},
		},
		{"nested conditions", Manifest{Exports: json.RawMessage(`{"import": {"types": "./esm.d.ts", "default": "./esm.js"}}`)}, []string{"esm.d.ts", "esm.js"}},
		{"patterns and escapes dropped", Manifest{Main: "../outside.js", Module: "./lib/*.js", Types: "/abs.d.ts"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.manifest.EntryPoints())
		})
	}
}
