package tsparser

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/tsexports/drivers/typescript/compiler"
)

func newTestParser(t *testing.T, files map[string]string, opts ...Option) (*TsParser, *bytes.Buffer) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, text := range files {
		require.NoError(t, afero.WriteFile(fsys, "/project/"+name, []byte(text), 0o644))
	}
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return New(log, append([]Option{WithFilesystem(fsys)}, opts...)...), &logs
}

func exportedNames(m *ModuleSymbol) []string {
	var names []string
	for _, e := range m.ExportArray {
		names = append(names, e.Name())
	}
	return names
}

func TestParse_OneModulePerFileInInputOrder(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"b.ts": "export const b = 1;\n",
		"a.ts": "export function a() {}\n",
		"c.js": "export class C {}\n",
	})

	res, err := p.Parse(context.Background(), []string{"c.js", "a.ts", "b.ts"}, "/project")
	require.NoError(t, err)
	require.Equal(t, 3, res.ModuleSymbols.Len())

	assert.Equal(t, "/project/c.js", res.ModuleSymbols.Modules[0].FileName)
	assert.Equal(t, "/project/a.ts", res.ModuleSymbols.Modules[1].FileName)
	assert.Equal(t, "/project/b.ts", res.ModuleSymbols.Modules[2].FileName)
	assert.Equal(t, `"/project/a"`, res.ModuleSymbols.Modules[1].Name())

	assert.Same(t, res.TypeChecker, res.ModuleSymbols.TypeChecker)
	assert.Same(t, res.TypeChecker, res.Program.TypeChecker())
	assert.Equal(t, "/project", res.Host.BaseDir())
}

func TestParse_EmptyInput(t *testing.T) {
	p, _ := newTestParser(t, nil)

	res, err := p.Parse(context.Background(), nil, "/project")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ModuleSymbols.Len())
}

func TestParse_DuplicateFileNamesYieldDuplicateEntries(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"a.ts": "export const a = 1;\n",
	})

	res, err := p.Parse(context.Background(), []string{"a.ts", "./a.ts", "/project/a.ts"}, "/project")
	require.NoError(t, err)
	require.Equal(t, 3, res.ModuleSymbols.Len())
	require.Len(t, res.Program.SourceFiles(), 1)

	mods := res.ModuleSymbols.Modules
	assert.NotSame(t, mods[0], mods[1])
	assert.NotSame(t, mods[1], mods[2])
	assert.NotSame(t, mods[0], mods[2])
	for _, m := range mods {
		assert.Same(t, mods[0].Symbol, m.Symbol)
		assert.Equal(t, "/project/a.ts", m.FileName)
		require.Len(t, m.ExportArray, 1)
		assert.Equal(t, "a", m.ExportArray[0].Name())
	}

	// Each entry owns its export slice.
	assert.NotSame(t, &mods[0].ExportArray[0], &mods[1].ExportArray[0])
	assert.NotSame(t, &mods[1].ExportArray[0], &mods[2].ExportArray[0])
}

func TestParse_CommentOnlyFileIsSkippedWithWarning(t *testing.T) {
	p, logs := newTestParser(t, map[string]string{
		"notes.ts": "// just a note\n",
		"real.ts":  "export const real = true;\n",
	})

	res, err := p.Parse(context.Background(), []string{"notes.ts", "real.ts"}, "/project")
	require.NoError(t, err)
	require.Equal(t, 1, res.ModuleSymbols.Len())
	assert.Equal(t, "/project/real.ts", res.ModuleSymbols.Modules[0].FileName)

	assert.Equal(t, 1, strings.Count(logs.String(), "No module code found in notes.ts"))
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestParse_MissingFileFailsWholeCall(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"a.ts": "export const a = 1;\n",
	})

	res, err := p.Parse(context.Background(), []string{"a.ts", "missing.ts"}, "/project")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidSourceFile)

	var invalid *InvalidSourceFileError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "missing.ts", invalid.FileName)
	assert.Equal(t, "invalid source file: missing.ts", err.Error())
}

func TestParse_NamedReexportResolvesToDeclaration(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"index.ts": "export { Foo } from './other';\nexport const local = 1;\n",
		"other.ts": "export class Foo {}\n",
	})

	res, err := p.Parse(context.Background(), []string{"index.ts"}, "/project")
	require.NoError(t, err)
	require.Equal(t, 1, res.ModuleSymbols.Len())

	index := res.ModuleSymbols.Modules[0]
	require.Len(t, index.ExportArray, 2)

	foo := index.ExportArray[0]
	assert.Equal(t, "Foo", foo.Name())
	assert.True(t, foo.IsAlias())
	require.NotNil(t, foo.ResolvedSymbol)
	assert.Equal(t, "Foo", foo.ResolvedSymbol.Name)
	assert.True(t, foo.ResolvedSymbol.Flags.Has(compiler.SymbolClass))
	assert.Equal(t, "/project/other.ts", foo.ResolvedSymbol.FileName())
	assert.Same(t, foo.ResolvedSymbol, foo.Target())

	local := index.ExportArray[1]
	assert.False(t, local.IsAlias())
	assert.Nil(t, local.ResolvedSymbol)
	assert.Same(t, local.Symbol, local.Target())
}

func TestParse_StarExportsAreFlattened(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"index.ts":  "export * from './shapes';\nexport const version = '1';\n",
		"shapes.ts": "export interface Circle { r: number }\nexport function area(c: Circle): number { return 0; }\nexport default 3;\n",
	})

	res, err := p.Parse(context.Background(), []string{"index.ts"}, "/project")
	require.NoError(t, err)

	index := res.ModuleSymbols.Modules[0]
	assert.Equal(t, []string{"version", "Circle", "area"}, exportedNames(index))
	for _, e := range index.ExportArray {
		assert.False(t, e.IsAlias(), e.Name())
		assert.Nil(t, e.ResolvedSymbol, e.Name())
	}
}

func TestParse_ResolvedSymbolIffAlias(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"index.ts": strings.Join([]string{
			"import { helper } from './util';",
			"export { helper };",
			"export { nothing } from './util';",
			"export * as util from './util';",
			"export default helper;",
			"export type Local = string;",
		}, "\n"),
		"util.ts": "export function helper() {}\n",
	})

	res, err := p.Parse(context.Background(), []string{"index.ts"}, "/project")
	require.NoError(t, err)

	for _, e := range res.ModuleSymbols.Modules[0].ExportArray {
		if e.IsAlias() {
			assert.NotNil(t, e.ResolvedSymbol, e.Name())
		} else {
			assert.Nil(t, e.ResolvedSymbol, e.Name())
		}
	}

	byName := make(map[string]AugmentedSymbol)
	for _, e := range res.ModuleSymbols.Modules[0].ExportArray {
		byName[e.Name()] = e
	}
	assert.Same(t, res.TypeChecker.UnknownSymbol(), byName["nothing"].ResolvedSymbol)
	assert.Equal(t, "helper", byName["default"].ResolvedSymbol.Name)
	assert.Equal(t, `"/project/util"`, byName["util"].ResolvedSymbol.Name)
}

func TestParse_Idempotent(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"index.ts": "export * from './a';\nexport { b as renamed } from './b';\n",
		"a.ts":     "export const a = 1;\n",
		"b.ts":     "export const b = 2;\n",
	})

	summarize := func() []string {
		res, err := p.Parse(context.Background(), []string{"index.ts", "a.ts"}, "/project")
		require.NoError(t, err)
		var out []string
		for _, m := range res.ModuleSymbols.Modules {
			for _, e := range m.ExportArray {
				out = append(out, m.FileName+"#"+e.Name()+"->"+e.Target().Name)
			}
		}
		return out
	}

	first := summarize()
	assert.Equal(t, []string{
		"/project/index.ts#renamed->b",
		"/project/index.ts#a->a",
		"/project/a.ts#a->a",
	}, first)
	assert.Equal(t, first, summarize())
}

func TestParse_ImportsOutsideTheInputAreLoaded(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"index.ts":         "export { Client } from './lib/client.js';\n",
		"lib/client.ts":    "export class Client {}\n",
		"lib/unrelated.ts": "export const unrelated = 1;\n",
	})

	res, err := p.Parse(context.Background(), []string{"index.ts"}, "/project")
	require.NoError(t, err)
	require.Equal(t, 1, res.ModuleSymbols.Len())

	client := res.ModuleSymbols.Modules[0].ExportArray[0]
	assert.Equal(t, "/project/lib/client.ts", client.ResolvedSymbol.FileName())
	assert.NotNil(t, res.Program.SourceFile("lib/client.ts"))
	assert.Nil(t, res.Program.SourceFile("lib/unrelated.ts"))
}

func TestParse_CanceledContext(t *testing.T) {
	p, _ := newTestParser(t, map[string]string{
		"a.ts": "export const a = 1;\n",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Parse(ctx, []string{"a.ts"}, "/project")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrInvalidSourceFile)
}

func TestNew_Options(t *testing.T) {
	p := New(nil, WithExtensions(".tsx", ".ts"), WithCharset("latin1"))
	assert.Equal(t, []string{".tsx", ".ts"}, p.Extensions)
	assert.Equal(t, "latin1", p.Options.Charset)
	assert.True(t, p.Options.AllowNonTSExtensions)

	p = New(nil, WithExtensions(), WithCharset(""))
	assert.Equal(t, DefaultExtensions, p.Extensions)
	assert.Equal(t, "utf8", p.Options.Charset)
}
